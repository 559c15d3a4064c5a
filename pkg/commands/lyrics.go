package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
	"github.com/harun/lynae/pkg/transport"
)

var (
	contributorsHeader = regexp.MustCompile(`^\d+\s+Contributors[\s\S]*?Lyrics\s*`)
	embedTrailer       = regexp.MustCompile(`\s*Embed$`)
	blankRuns          = regexp.MustCompile(`\n{3,}`)
)

// Song is the best search hit for a lyrics query.
type Song struct {
	Title     string
	Artist    string
	URL       string
	Thumbnail string
}

type lyricsHandler struct {
	deps *Deps
}

func (h *lyricsHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	trigger := cmd.Trigger()
	query := cmd.Arg()
	if query == "" {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please provide a song title.\n\nUsage:\n• %[1]s%[2]s <title>\n\n"+
			"Example:\n• %[1]s%[2]s Never Gonna Give You Up", ec.UsedPrefix, trigger))
	}
	if h.deps.GeniusToken == "" {
		return reply(ctx, cmd, ec, "⚠️ Genius API Key is not configured.\n\n"+
			"Please set commands.genius_token in the config.\nYou can get it from: https://genius.com/api-clients")
	}

	if err := ec.Client.SendPresenceUpdate(ctx, transport.PresenceComposing, cmd.Chat); err != nil {
		ec.Logger.Debug().Err(err).Msg("Presence update failed")
	}

	song, err := h.search(ctx, query)
	if err != nil {
		return fail(ctx, cmd, ec, "An error occurred while fetching lyrics", err)
	}
	if song == nil {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Lyrics for %q not found.", query))
	}

	page, err := fetch(ctx, h.deps.HTTP, song.URL)
	if err != nil {
		return fail(ctx, cmd, ec, "An error occurred while fetching lyrics", err)
	}
	lyrics, err := ExtractLyrics(page)
	if err != nil {
		return fail(ctx, cmd, ec, "An error occurred while fetching lyrics", err)
	}
	if lyrics == "" {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Failed to retrieve lyrics content for %q.", song.Title))
	}

	return reply(ctx, cmd, ec, fmt.Sprintf("🎤 *%s*\n👤 *%s*\n\n%s", song.Title, song.Artist, lyrics))
}

func (h *lyricsHandler) search(ctx context.Context, query string) (*Song, error) {
	u := h.deps.LyricsSearchURL + "?" + url.Values{"q": {query}}.Encode()
	header := http.Header{"Authorization": {"Bearer " + h.deps.GeniusToken}}

	body, err := fetchWithHeader(ctx, h.deps.HTTP, u, header)
	if err != nil {
		return nil, err
	}
	return ParseSongSearch(body)
}

// ParseSongSearch returns the first hit of a Genius search response, or nil
// when there are none.
func ParseSongSearch(body []byte) (*Song, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("malformed search response")
	}
	hit := gjson.GetBytes(body, "response.hits.0.result")
	if !hit.Exists() {
		return nil, nil
	}
	song := &Song{
		Title:     hit.Get("full_title").String(),
		Artist:    hit.Get("primary_artist.name").String(),
		URL:       hit.Get("url").String(),
		Thumbnail: hit.Get("header_image_thumbnail_url").String(),
	}
	if song.URL == "" {
		return nil, errors.New("search hit has no lyrics URL")
	}
	return song, nil
}

// ExtractLyrics collects the text of every lyrics container on a song page.
// Line breaks are kept; scripts and styles are dropped.
func ExtractLyrics(page []byte) (string, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return "", fmt.Errorf("failed to parse lyrics page: %w", err)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == atom.Div && attr(n, "data-lyrics-container") == "true" {
			var part strings.Builder
			containerText(n, &part)
			b.WriteString(strings.TrimSpace(part.String()))
			b.WriteString("\n\n")
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	lyrics := strings.TrimSpace(b.String())
	lyrics = contributorsHeader.ReplaceAllString(lyrics, "")
	lyrics = embedTrailer.ReplaceAllString(lyrics, "")
	lyrics = blankRuns.ReplaceAllString(lyrics, "\n\n")
	return lyrics, nil
}

func containerText(n *html.Node, b *strings.Builder) {
	switch {
	case n.Type == html.TextNode:
		b.WriteString(n.Data)
		return
	case n.Type == html.ElementNode && n.DataAtom == atom.Br:
		b.WriteString("\n")
		return
	case n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style):
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		containerText(c, b)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
