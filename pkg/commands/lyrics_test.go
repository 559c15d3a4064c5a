package commands

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/pkg/transport"
)

const songPage = `<html><head><script>var x = 1;</script></head><body>
<div class="header">Never Gonna Give You Up Lyrics</div>
<div data-lyrics-container="true">12 Contributors Never Gonna Give You Up Lyrics[Verse 1]<br>We're no strangers to love<br/>You know the rules<script>track()</script></div>
<div data-lyrics-container="true"><span>Never gonna give you up</span><br><i>Never gonna let you down</i>Embed</div>
</body></html>`

func TestExtractLyrics(t *testing.T) {
	lyrics, err := ExtractLyrics([]byte(songPage))
	require.NoError(t, err)
	assert.Equal(t, "[Verse 1]\nWe're no strangers to love\nYou know the rules\n\nNever gonna give you up\nNever gonna let you down", lyrics)

	empty, err := ExtractLyrics([]byte("<html><body><p>Not here</p></body></html>"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestParseSongSearch(t *testing.T) {
	song, err := ParseSongSearch([]byte(`{"response":{"hits":[{"result":{"full_title":"Never Gonna Give You Up by Rick Astley","url":"https://genius.com/x","primary_artist":{"name":"Rick Astley"},"header_image_thumbnail_url":"https://img/1.jpg"}}]}}`))
	require.NoError(t, err)
	assert.Equal(t, &Song{
		Title:     "Never Gonna Give You Up by Rick Astley",
		Artist:    "Rick Astley",
		URL:       "https://genius.com/x",
		Thumbnail: "https://img/1.jpg",
	}, song)

	song, err = ParseSongSearch([]byte(`{"response":{"hits":[]}}`))
	require.NoError(t, err)
	assert.Nil(t, song)

	_, err = ParseSongSearch([]byte(`{"response":{"hits":[{"result":{"full_title":"x"}}]}}`))
	assert.Error(t, err)

	_, err = ParseSongSearch([]byte("<html>"))
	assert.Error(t, err)
}

func newGeniusServer(t *testing.T) *httptest.Server {
	t.Helper()
	var srv *httptest.Server
	mux := http.NewServeMux()
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer g-token" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if r.URL.Query().Get("q") != "never gonna give you up" {
			w.Write([]byte(`{"meta":{"status":200},"response":{"hits":[]}}`))
			return
		}
		fmt.Fprintf(w, `{"response":{"hits":[{"result":{"full_title":"Never Gonna Give You Up by Rick Astley","url":"%s/song","primary_artist":{"name":"Rick Astley"}}}]}}`, srv.URL)
	})
	mux.HandleFunc("/song", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(songPage))
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func geniusDeps(t *testing.T, srv *httptest.Server) Deps {
	t.Helper()
	deps := testDeps(t)
	deps.HTTP = srv.Client()
	deps.LyricsSearchURL = srv.URL + "/search"
	deps.GeniusToken = "g-token"
	return deps
}

func TestLyrics_Found(t *testing.T) {
	srv := newGeniusServer(t)
	cmd := newCommand(testUser, testUser, "lyrics never gonna give you up")
	f := newFixture(cmd)

	require.NoError(t, build(t, geniusDeps(t, srv), "lyrics").Execute(context.Background(), cmd, f.ec))

	texts := sentTexts(f)
	require.Len(t, texts, 1)
	assert.Contains(t, texts[0], "🎤 *Never Gonna Give You Up by Rick Astley*\n👤 *Rick Astley*\n\n[Verse 1]\nWe're no strangers to love")
	assert.Equal(t, 1, f.client.PresenceCount(transport.PresenceComposing))
}

func TestLyrics_Failures(t *testing.T) {
	srv := newGeniusServer(t)

	t.Run("no title", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "lirik")
		f := newFixture(cmd)
		require.NoError(t, build(t, geniusDeps(t, srv), "lyrics").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "• .lirik Never Gonna Give You Up")
	})

	t.Run("no token", func(t *testing.T) {
		deps := geniusDeps(t, srv)
		deps.GeniusToken = ""
		cmd := newCommand(testUser, testUser, "lyrics never gonna give you up")
		f := newFixture(cmd)
		require.NoError(t, build(t, deps, "lyrics").Execute(context.Background(), cmd, f.ec))
		texts := sentTexts(f)
		require.Len(t, texts, 1)
		assert.Contains(t, texts[0], "⚠️ Genius API Key is not configured.")
	})

	t.Run("not found", func(t *testing.T) {
		cmd := newCommand(testUser, testUser, "lyrics Unknown Song")
		f := newFixture(cmd)
		require.NoError(t, build(t, geniusDeps(t, srv), "lyrics").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{`❌ Lyrics for "Unknown Song" not found.`}, sentTexts(f))
	})

	t.Run("rejected token", func(t *testing.T) {
		deps := geniusDeps(t, srv)
		deps.GeniusToken = "wrong"
		cmd := newCommand(testUser, testUser, "lyrics never gonna give you up")
		f := newFixture(cmd)
		require.NoError(t, build(t, deps, "lyrics").Execute(context.Background(), cmd, f.ec))
		assert.Equal(t, []string{"❌ An error occurred while fetching lyrics: unexpected status 401"}, sentTexts(f))
	})
}
