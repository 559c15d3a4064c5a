package commands

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/message"
)

func TestLanguageCode(t *testing.T) {
	assert.Equal(t, "id", LanguageCode("Indonesia"))
	assert.Equal(t, "ja", LanguageCode("jepang"))
	assert.Equal(t, "zh-CN", LanguageCode("mandarin"))
	assert.Equal(t, "pt", LanguageCode("pt"))
}

func TestParseTranslation(t *testing.T) {
	got, err := parseTranslation([]byte(`[[["Halo ","Hello ",null,null,10],["dunia","world",null,null,10]],null,"en"]`))
	require.NoError(t, err)
	assert.Equal(t, "Halo dunia", got)

	_, err = parseTranslation([]byte(`{"error":"quota"}`))
	assert.Error(t, err)

	_, err = parseTranslation([]byte(`[[]]`))
	assert.Error(t, err)
}

func TestTranslate(t *testing.T) {
	var query map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		query = map[string]string{"client": q.Get("client"), "tl": q.Get("tl"), "q": q.Get("q")}
		w.Write([]byte(`[[["Selamat pagi","Good morning",null,null,10]],null,"en"]`))
	}))
	defer srv.Close()

	deps := testDeps(t)
	deps.HTTP = srv.Client()
	deps.TranslateURL = srv.URL + "/translate_a/single"

	cmd := newCommand(testGroup, testUser, "t indo")
	cmd.Quoted = &message.Quoted{Text: "Good morning"}
	f := newFixture(cmd)

	require.NoError(t, build(t, deps, "translate").Execute(context.Background(), cmd, f.ec))

	assert.Equal(t, map[string]string{"client": "gtx", "tl": "id", "q": "Good morning"}, query)
	texts := sentTexts(f)
	require.Len(t, texts, 2)
	assert.Equal(t, "⏳ Translating...", texts[0])
	assert.Contains(t, texts[1], "🔤 *To:* ID")
	assert.Contains(t, texts[1], "✨ *Result:*\nSelamat pagi")

	sent := f.client.Sent()
	require.NotNil(t, sent[1].Content.ContextInfo)
	assert.Equal(t, "TRIGGER1", sent[1].Content.ContextInfo.StanzaID)
}

func TestTranslate_Failure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "blocked", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	deps := testDeps(t)
	deps.HTTP = srv.Client()
	deps.TranslateURL = srv.URL

	cmd := newCommand(testUser, testUser, "translate en")
	cmd.Quoted = &message.Quoted{Text: "Selamat pagi"}
	f := newFixture(cmd)

	require.NoError(t, build(t, deps, "translate").Execute(context.Background(), cmd, f.ec))
	texts := sentTexts(f)
	require.Len(t, texts, 2)
	assert.Contains(t, texts[1], "❌ Translation failed: unexpected status 429")
}

func TestTranslate_Usage(t *testing.T) {
	t.Run("no reply", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "translate en")
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "translate").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Please reply to a message")
	})

	t.Run("empty quoted text", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "translate en")
		cmd.Quoted = &message.Quoted{}
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "translate").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{"❌ The replied message does not contain any text to translate."}, sentTexts(f))
	})

	t.Run("no language", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "translate")
		cmd.Quoted = &message.Quoted{Text: "hello"}
		f := newFixture(cmd)
		require.NoError(t, build(t, testDeps(t), "translate").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "Please specify the target language code")
	})
}
