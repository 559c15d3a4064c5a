package plugin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func namedPlugin(t *testing.T, name, pattern string) *Plugin {
	t.Helper()
	m, err := NewRegexpMatcher(pattern, false)
	require.NoError(t, err)
	return &Plugin{Name: name, Help: []string{name}, Matcher: m}
}

func TestRegistry_ReplaceDropsDuplicates(t *testing.T) {
	r := NewRegistry()
	old := r.Replace([]*Plugin{
		namedPlugin(t, "a", "^a$"),
		namedPlugin(t, "b", "^b$"),
		namedPlugin(t, "a", "^other$"),
		nil,
	})

	assert.Empty(t, old)
	assert.Equal(t, []string{"a", "b"}, r.Names())

	p, ok := r.Get("a")
	require.True(t, ok)
	assert.True(t, p.Matches("A"))
}

func TestRegistry_UpsertKeepsPosition(t *testing.T) {
	r := NewRegistry()
	r.Replace([]*Plugin{
		namedPlugin(t, "help", "^help"),
		namedPlugin(t, "ping", "^ping$"),
		namedPlugin(t, "tiktok", "^tiktok"),
	})
	before := r.Snapshot()

	updated := namedPlugin(t, "ping", "^(ping|p)$")
	old, replaced := r.Upsert(updated)

	assert.True(t, replaced)
	assert.Same(t, before[1], old)
	assert.Equal(t, []string{"help", "ping", "tiktok"}, r.Names())
	assert.Same(t, updated, r.Snapshot()[1])
	assert.Same(t, old, before[1], "earlier snapshots are not modified")

	added := namedPlugin(t, "getpp", "^getpp")
	_, replaced = r.Upsert(added)
	assert.False(t, replaced)
	assert.Equal(t, []string{"help", "ping", "tiktok", "getpp"}, r.Names())
	assert.Len(t, before, 3)
}

func TestRegistry_RemoveReindexes(t *testing.T) {
	r := NewRegistry()
	r.Replace([]*Plugin{
		namedPlugin(t, "a", "^a$"),
		namedPlugin(t, "b", "^b$"),
		namedPlugin(t, "c", "^c$"),
	})

	_, err := r.Remove("a")
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, r.Names())

	c, ok := r.Get("c")
	require.True(t, ok)
	assert.Equal(t, "c", c.Name)

	updated := namedPlugin(t, "c", "^cc$")
	_, replaced := r.Upsert(updated)
	assert.True(t, replaced)
	assert.Equal(t, []string{"b", "c"}, r.Names())
	assert.Equal(t, 2, r.Len())

	_, err = r.Remove("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMatch_FirstWins(t *testing.T) {
	plugins := []*Plugin{
		namedPlugin(t, "broad", "^p"),
		namedPlugin(t, "ping", "^ping$"),
	}

	assert.Equal(t, "broad", Match(plugins, "ping").Name)
	assert.Nil(t, Match(plugins, "help"))
	assert.Nil(t, Match(nil, "ping"))
}

func TestPlugin_PrimaryName(t *testing.T) {
	assert.Equal(t, "menu", (&Plugin{Name: "help", Help: []string{"menu", "help"}}).PrimaryName())
	assert.Equal(t, "help", (&Plugin{Name: "help"}).PrimaryName())
}

func TestRegexpMatcher_CaseSensitivity(t *testing.T) {
	insensitive, err := NewRegexpMatcher("^ping$", false)
	require.NoError(t, err)
	assert.True(t, insensitive.Match("PING"))

	sensitive, err := NewRegexpMatcher("^ping$", true)
	require.NoError(t, err)
	assert.False(t, sensitive.Match("PING"))

	_, err = NewRegexpMatcher("(", false)
	assert.Error(t, err)
}
