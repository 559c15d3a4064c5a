// Package commands implements the handlers that ship with the bot. Each
// handler is registered in a plugin.Catalog under its own name and bound to
// a trigger pattern by a manifest in the plugins directory.
package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/harun/lynae/pkg/downloadcache"
	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

const (
	// DefaultTranslateURL is the public gtx translate endpoint.
	DefaultTranslateURL = "https://translate.googleapis.com/translate_a/single"
	// DefaultLyricsSearchURL is the Genius search API.
	DefaultLyricsSearchURL = "https://api.genius.com/search"

	userAgent       = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	maxResponseSize = 64 << 20
)

// DefaultTikTokEndpoints are tried in order; "{url}" is replaced with the
// escaped video link.
var DefaultTikTokEndpoints = []string{
	"https://tikwm.com/api/?url={url}&hd=1",
	"https://api.tiklydown.eu.org/api/download?url={url}",
	"https://api.ryzumi.vip/api/downloader/ttdl?url={url}",
	"https://api.siputzx.my.id/api/d/tiktok?url={url}",
}

// DefaultInstagramEndpoints are tried in order, like the TikTok ones.
var DefaultInstagramEndpoints = []string{
	"https://api.ryzumi.vip/api/downloader/igdl?url={url}",
	"https://api.tiklydown.eu.org/api/download/ig?url={url}",
	"https://api.faa.my.id/api/download/instagram?url={url}",
	"https://api.agatz.xyz/api/instagram?url={url}",
	"https://api.siputzx.my.id/api/d/igdl?url={url}",
	"https://api.vreden.my.id/api/igdownload?url={url}",
}

// Deps are the collaborators shared by the built-in handlers.
type Deps struct {
	BotName         string
	Owners          []string
	Cache           *downloadcache.Cache
	HTTP            *http.Client
	StartedAt       time.Time
	TranslateURL    string
	TikTokEndpoints []string

	InstagramEndpoints []string
	LyricsSearchURL    string
	// GeniusToken authorizes lyrics searches. Empty disables the command.
	GeniusToken string
	// PluginDir is where sf saves manifests.
	PluginDir string

	// Now is the clock; tests override it.
	Now func() time.Time
}

func (d *Deps) withDefaults() *Deps {
	out := *d
	if out.BotName == "" {
		out.BotName = "Lynae"
	}
	if out.HTTP == nil {
		out.HTTP = &http.Client{Timeout: 30 * time.Second}
	}
	if out.Now == nil {
		out.Now = time.Now
	}
	if out.StartedAt.IsZero() {
		out.StartedAt = out.Now()
	}
	if out.TranslateURL == "" {
		out.TranslateURL = DefaultTranslateURL
	}
	if len(out.TikTokEndpoints) == 0 {
		out.TikTokEndpoints = DefaultTikTokEndpoints
	}
	if len(out.InstagramEndpoints) == 0 {
		out.InstagramEndpoints = DefaultInstagramEndpoints
	}
	if out.LyricsSearchURL == "" {
		out.LyricsSearchURL = DefaultLyricsSearchURL
	}
	return &out
}

// IsOwner reports whether sender is one of the configured owners. Device
// segments and server suffixes are ignored.
func (d *Deps) IsOwner(sender string) bool {
	number := jid.BaseNumber(sender)
	if number == "" {
		return false
	}
	for _, owner := range d.Owners {
		if jid.BaseNumber(owner) == number {
			return true
		}
	}
	return false
}

// Register adds every built-in handler to catalog.
func Register(catalog *plugin.Catalog, deps Deps) error {
	d := deps.withDefaults()

	factories := map[string]plugin.Factory{
		"ping":      static(&pingHandler{deps: d}),
		"help":      static(&helpHandler{deps: d}),
		"hidetag":   static(&hidetagHandler{deps: d}),
		"getpp":     static(&getppHandler{deps: d}),
		"translate": static(&translateHandler{deps: d}),
		"tiktok":    newTikTokFactory(d),
		"pick":      static(&pickHandler{deps: d}),
		"owner":     static(&ownerHandler{deps: d}),
		"picksw":    static(&pickswHandler{deps: d}),
		"instagram": newInstagramFactory(d),
		"lyrics":    static(&lyricsHandler{deps: d}),
		"sf":        static(&sfHandler{deps: d}),
	}

	var errs []error
	for name, f := range factories {
		if err := catalog.Register(name, f); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// static ignores manifest config.
func static(h plugin.Handler) plugin.Factory {
	return func(map[string]any) (plugin.Handler, error) { return h, nil }
}

// reply sends text to the originating chat, threaded to the trigger.
func reply(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, text string) error {
	_, err := ec.Client.SendText(ctx, cmd.Chat, text)
	return err
}

// fail reports err to the chat and logs it. The handler is considered done.
func fail(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, prefix string, err error) error {
	ec.Logger.Warn().Err(err).Str("command", cmd.Trigger()).Msg(prefix)
	if sendErr := reply(ctx, cmd, ec, fmt.Sprintf("❌ %s: %s", prefix, err.Error())); sendErr != nil {
		return errors.Join(err, sendErr)
	}
	return nil
}

// fetch performs a GET and returns the body of a 2xx response.
func fetch(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	return fetchWithHeader(ctx, client, url, nil)
}

// fetchWithHeader is fetch with extra request headers.
func fetchWithHeader(ctx context.Context, client *http.Client, url string, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return body, nil
}

// capitalize upper-cases the first letter of s.
func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
