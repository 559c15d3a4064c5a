package commands

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/plugin"
)

func helpPlugins() []*plugin.Plugin {
	return []*plugin.Plugin{
		{Name: "ping", Help: []string{"ping", "p"}, Tags: []string{"info"}},
		{Name: "help", Help: []string{"help", "menu", "?"}, Tags: []string{"main"}},
		{Name: "hidetag", Help: []string{"hidetag <text>", "h <text>"}, Tags: []string{"group"},
			Description: "Mention every member"},
		{Name: "getpp", Help: []string{"getpp"}, Tags: []string{"tools"}},
		{Name: "translate", Help: []string{"translate <lang>", "t <lang>"}, Tags: []string{"tools"}},
		{Name: "hidden", Help: []string{"hidden"}},
	}
}

func runHelp(t *testing.T, text string) string {
	t.Helper()
	cmd := newCommand(testUser, testUser, text)
	f := newFixture(cmd, helpPlugins()...)
	require.NoError(t, build(t, testDeps(t), "help").Execute(context.Background(), cmd, f.ec))

	texts := sentTexts(f)
	require.Len(t, texts, 1)
	return texts[0]
}

func TestHelp_Menu(t *testing.T) {
	text := runHelp(t, "help")

	assert.Contains(t, text, "*Lynae-MD*")
	assert.Contains(t, text, "👋 *Hi Yui!*")
	assert.Contains(t, text, "Saturday, March 14, 2026")
	assert.Contains(t, text, "3:09 PM")
	assert.Contains(t, text, "[ . ]")
	assert.Contains(t, text, "│ • .translate\n")
	assert.NotContains(t, text, "hidden")

	group := strings.Index(text, "*Group*")
	info := strings.Index(text, "*Info*")
	main := strings.Index(text, "*Main*")
	tools := strings.Index(text, "*Tools*")
	assert.True(t, group < info && info < main && main < tools, "categories must be sorted")
}

func TestHelp_Category(t *testing.T) {
	text := runHelp(t, "help TOOLS")

	assert.Contains(t, text, "*Tools Menu*")
	assert.Contains(t, text, "│ • .getpp\n│ • .translate\n")
}

func TestHelp_CommandByAlias(t *testing.T) {
	text := runHelp(t, "help h")

	assert.Contains(t, text, "📝 *Command:* .hidetag")
	assert.Contains(t, text, "📁 *Category:* Group")
	assert.Contains(t, text, "💡 *Description:* Mention every member")
	assert.Contains(t, text, "🔗 *Usage:* .hidetag <text>")
	assert.Contains(t, text, "🖇️ *Aliases:* h")
}

func TestHelp_NotFound(t *testing.T) {
	assert.Equal(t, "❌ Category or Command \"nope\" not found.", runHelp(t, "help nope"))
}
