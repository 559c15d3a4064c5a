package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/harun/lynae/pkg/downloadcache"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

const (
	minMediaSize     = 2048
	defaultThumbnail = "https://i.imgur.com/5Ky6dGk.png"
)

// ErrInvalidMedia is returned for downloads that look like an error page.
var ErrInvalidMedia = errors.New("invalid media file (likely HTML/JSON error response)")

// TikTokResult is a resolved post, cached for follow-up requests.
type TikTokResult struct {
	URL            string   `json:"url"`
	Video          []string `json:"video,omitempty"`
	Audio          string   `json:"audio,omitempty"`
	Images         []string `json:"images,omitempty"`
	Title          string   `json:"title,omitempty"`
	Author         string   `json:"author,omitempty"`
	Thumbnail      string   `json:"thumbnail,omitempty"`
	OriginalSender string   `json:"originalSender"`
}

// IsSlide reports whether the post is an image carousel.
func (r *TikTokResult) IsSlide() bool {
	return len(r.Images) > 0
}

type tiktokHandler struct {
	deps      *Deps
	endpoints []string
}

// newTikTokFactory accepts an "endpoints" list in manifest config that
// overrides the configured ones.
func newTikTokFactory(d *Deps) plugin.Factory {
	return func(config map[string]any) (plugin.Handler, error) {
		h := &tiktokHandler{deps: d, endpoints: d.TikTokEndpoints}
		if raw, ok := config["endpoints"]; ok {
			endpoints, err := endpointList(raw)
			if err != nil {
				return nil, err
			}
			if len(endpoints) > 0 {
				h.endpoints = endpoints
			}
		}
		if d.Cache == nil {
			return nil, errors.New("tiktok requires a download cache")
		}
		return h, nil
	}
}

func (h *tiktokHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	args := cmd.Args()
	trigger := cmd.Trigger()
	if trigger == "" {
		trigger = "tiktok"
	}

	if len(args) >= 2 && !strings.HasPrefix(args[0], "http") {
		switch args[1] {
		case "video", "audio", "slide":
			return h.followUp(ctx, cmd, ec, args[0], args[1])
		}
	}

	var link string
	for _, a := range args {
		if strings.HasPrefix(a, "http") {
			link = a
			break
		}
	}
	if link == "" {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please provide a TikTok link.\n\nExample:\n%s%s https://vm.tiktok.com/xyz/", ec.UsedPrefix, trigger))
	}

	if err := reply(ctx, cmd, ec, "⏳ Fetching data..."); err != nil {
		return err
	}

	result, err := h.resolve(ctx, link)
	if err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}
	result.URL = link
	result.OriginalSender = cmd.Sender

	id, err := downloadcache.NewID()
	if err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}
	if err := h.deps.Cache.Put(id, result); err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}

	_, err = ec.Client.SendMessage(ctx, cmd.Chat, h.card(result, id, ec.UsedPrefix+trigger))
	return err
}

// card builds the answer offering the download options.
func (h *tiktokHandler) card(r *TikTokResult, id, base string) *message.Outgoing {
	author := orDash(r.Author)
	desc := orDash(r.Title)

	var b strings.Builder
	b.WriteString("🎵 *TIKTOK DOWNLOADER*\n\n")
	fmt.Fprintf(&b, "👤 *Author:* %s\n", author)
	fmt.Fprintf(&b, "📝 *Desc:* %s\n\n", desc)
	b.WriteString("_Select an option below or type the command:_\n")
	fmt.Fprintf(&b, "🎥 *Video:* %s %s video\n", base, id)
	fmt.Fprintf(&b, "🎵 *Audio:* %s %s audio", base, id)
	if r.IsSlide() {
		fmt.Fprintf(&b, "\n📸 *Slides:* %s %s slide", base, id)
	}

	var buttons []message.Button
	if r.IsSlide() {
		buttons = append(buttons, message.Button{ButtonID: base + " " + id + " slide", DisplayText: "📸 Download Slides"})
	} else {
		buttons = append(buttons, message.Button{ButtonID: base + " " + id + " video", DisplayText: "🎥 Download Video"})
		if r.Audio != "" {
			buttons = append(buttons, message.Button{ButtonID: base + " " + id + " audio", DisplayText: "🎵 Download Audio"})
		}
	}

	thumb := r.Thumbnail
	if thumb == "" {
		thumb = defaultThumbnail
	}

	return &message.Outgoing{
		Image:   &message.Attachment{URL: thumb},
		Caption: b.String(),
		Buttons: buttons,
		Footer:  h.deps.BotName,
	}
}

func (h *tiktokHandler) followUp(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, id, kind string) error {
	var result TikTokResult
	if err := h.deps.Cache.Get(id, &result); err != nil {
		if errors.Is(err, downloadcache.ErrNotFound) {
			return reply(ctx, cmd, ec, "❌ Session expired. Please request the link again.")
		}
		return fail(ctx, cmd, ec, "Error", err)
	}

	if result.OriginalSender != "" && result.OriginalSender != cmd.Sender {
		return reply(ctx, cmd, ec, "❌ This button is not for you.")
	}

	var err error
	switch kind {
	case "video":
		err = h.sendVideo(ctx, cmd, ec, &result)
	case "audio":
		err = h.sendAudio(ctx, cmd, ec, &result)
	case "slide":
		err = h.sendSlides(ctx, cmd, ec, &result)
	}
	if err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}
	return nil
}

func (h *tiktokHandler) sendVideo(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, r *TikTokResult) error {
	if err := reply(ctx, cmd, ec, "⏳ Downloading & Sending video..."); err != nil {
		return err
	}
	if len(r.Video) == 0 {
		return errors.New("video URL not found")
	}

	var lastErr error
	for _, u := range r.Video {
		data, err := h.download(ctx, u)
		if err != nil {
			lastErr = err
			continue
		}
		_, err = ec.Client.SendMessage(ctx, cmd.Chat, &message.Outgoing{
			Video:    &message.Attachment{Data: data},
			Mimetype: "video/mp4",
		})
		return err
	}
	return fmt.Errorf("failed to send video: %w", lastErr)
}

func (h *tiktokHandler) sendAudio(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, r *TikTokResult) error {
	if err := reply(ctx, cmd, ec, "⏳ Downloading & Sending audio..."); err != nil {
		return err
	}
	if r.Audio == "" {
		return errors.New("audio URL not found")
	}

	data, err := h.download(ctx, r.Audio)
	if err != nil {
		return err
	}
	_, err = ec.Client.SendMessage(ctx, cmd.Chat, &message.Outgoing{
		Audio:    &message.Attachment{Data: data},
		Mimetype: "audio/mpeg",
	})
	return err
}

func (h *tiktokHandler) sendSlides(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, r *TikTokResult) error {
	if err := reply(ctx, cmd, ec, "⏳ Sending slides..."); err != nil {
		return err
	}
	if len(r.Images) == 0 {
		return errors.New("no images found")
	}

	for _, img := range r.Images {
		if _, err := ec.Client.SendMessage(ctx, cmd.Chat, &message.Outgoing{Image: &message.Attachment{URL: img}}); err != nil {
			return err
		}
	}
	return reply(ctx, cmd, ec, "✅ All slides sent.")
}

// download fetches media and rejects bodies that look like an error page.
func (h *tiktokHandler) download(ctx context.Context, u string) ([]byte, error) {
	data, err := fetch(ctx, h.deps.HTTP, u)
	if err != nil {
		return nil, err
	}
	if err := ValidateMedia(data); err != nil {
		return nil, err
	}
	return data, nil
}

// ValidateMedia rejects downloads that are too small or start like markup
// or JSON.
func ValidateMedia(data []byte) error {
	head := data
	if len(head) > 50 {
		head = head[:50]
	}
	head = bytes.TrimSpace(head)

	switch {
	case len(data) < minMediaSize:
		return ErrInvalidMedia
	case bytes.HasPrefix(head, []byte("<")), bytes.HasPrefix(head, []byte("{")):
		return ErrInvalidMedia
	}
	return nil
}

// resolve tries each endpoint in order and returns the first usable result.
func (h *tiktokHandler) resolve(ctx context.Context, link string) (*TikTokResult, error) {
	escaped := url.QueryEscape(link)

	var lastErr error
	for _, tmpl := range h.endpoints {
		endpoint := strings.ReplaceAll(tmpl, "{url}", escaped)
		body, err := fetch(ctx, h.deps.HTTP, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if r := ParseTikTok(body); r != nil {
			return r, nil
		}
		lastErr = fmt.Errorf("unrecognized response from %s", hostOf(endpoint))
	}
	if lastErr == nil {
		lastErr = errors.New("no endpoints configured")
	}
	return nil, fmt.Errorf("media not found or API error: %w", lastErr)
}

// ParseTikTok recognizes the response shapes of the supported downloader
// APIs. It returns nil when none matches.
func ParseTikTok(body []byte) *TikTokResult {
	if !gjson.ValidBytes(body) {
		return nil
	}
	doc := gjson.ParseBytes(body)

	var node gjson.Result
	switch {
	case doc.Get("code").Exists() && doc.Get("code").Int() == 0 && doc.Get("data").IsObject():
		node = doc.Get("data")
	case doc.Get("video.noWatermark").String() != "":
		return &TikTokResult{
			Video:     []string{doc.Get("video.noWatermark").String()},
			Audio:     doc.Get("music.play_url").String(),
			Thumbnail: doc.Get("cover").String(),
			Title:     doc.Get("title").String(),
			Author:    authorName(doc.Get("author")),
		}
	case doc.Get("data.result").IsObject():
		node = doc.Get("data.result")
	case doc.Get("result").IsObject():
		node = doc.Get("result")
	case doc.Get("data").IsObject():
		node = doc.Get("data")
	case doc.Get("status").Bool() && doc.Get("url").String() != "":
		return &TikTokResult{
			Video:     []string{doc.Get("url").String()},
			Title:     doc.Get("title").String(),
			Thumbnail: doc.Get("thumb").String(),
			Audio:     doc.Get("music").String(),
		}
	default:
		return nil
	}

	r := &TikTokResult{
		Video:     firstStrings(node, "nowatermark", "hdplay", "play", "video", "url", "download_url"),
		Audio:     firstString(node, "audio", "music", "music_info.play"),
		Images:    stringList(node, "images", "image"),
		Title:     firstString(node, "description", "title"),
		Thumbnail: firstString(node, "thumbnail", "cover"),
		Author:    firstString(node, "username"),
	}
	if r.Author == "" {
		r.Author = authorName(node.Get("author"))
	}
	if len(r.Video) == 0 && len(r.Images) == 0 {
		return nil
	}
	return r
}

func authorName(v gjson.Result) string {
	if v.IsObject() {
		if name := v.Get("nickname").String(); name != "" {
			return name
		}
		return v.Get("unique_id").String()
	}
	return v.String()
}

func firstString(node gjson.Result, paths ...string) string {
	for _, p := range paths {
		if v := node.Get(p); v.Type == gjson.String && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// firstStrings collects every non-empty string found at paths, in order
// and without duplicates.
func firstStrings(node gjson.Result, paths ...string) []string {
	var out []string
	for _, p := range paths {
		v := node.Get(p)
		if v.Type != gjson.String || v.String() == "" {
			continue
		}
		if s := v.String(); !slices.Contains(out, s) {
			out = append(out, s)
		}
	}
	return out
}

func stringList(node gjson.Result, paths ...string) []string {
	for _, p := range paths {
		v := node.Get(p)
		if !v.IsArray() {
			continue
		}
		var out []string
		v.ForEach(func(_, item gjson.Result) bool {
			if s := item.String(); s != "" {
				out = append(out, s)
			}
			return true
		})
		if len(out) > 0 {
			return out
		}
	}
	return nil
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

func hostOf(endpoint string) string {
	u, err := url.Parse(endpoint)
	if err != nil {
		return endpoint
	}
	return u.Host
}
