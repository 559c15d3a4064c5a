package commands

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/harun/lynae/pkg/downloadcache"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/plugin"
)

// InstagramResult is a resolved post, cached for the download button.
type InstagramResult struct {
	URL            string   `json:"url"`
	Media          []string `json:"media"`
	OriginalSender string   `json:"originalSender"`
}

type instagramHandler struct {
	deps      *Deps
	endpoints []string
}

func newInstagramFactory(d *Deps) plugin.Factory {
	return func(config map[string]any) (plugin.Handler, error) {
		h := &instagramHandler{deps: d, endpoints: d.InstagramEndpoints}
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
			return nil, errors.New("instagram requires a download cache")
		}
		return h, nil
	}
}

func endpointList(raw any) ([]string, error) {
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("endpoints must be a list, got %T", raw)
	}
	out := make([]string, 0, len(list))
	for _, v := range list {
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("invalid endpoint %v", v)
		}
		out = append(out, s)
	}
	return out, nil
}

func (h *instagramHandler) Execute(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext) error {
	args := cmd.Args()
	trigger := cmd.Trigger()
	if trigger == "" {
		trigger = "ig"
	}

	if len(args) >= 2 && !strings.HasPrefix(args[0], "http") && args[1] == "media" {
		return h.followUp(ctx, cmd, ec, args[0])
	}

	if len(args) == 0 || !strings.HasPrefix(args[0], "http") {
		return reply(ctx, cmd, ec, fmt.Sprintf("❌ Please provide an Instagram link.\n\nExample:\n%s%s https://www.instagram.com/p/CzoHzuRvdVh", ec.UsedPrefix, trigger))
	}
	link := args[0]

	if err := reply(ctx, cmd, ec, "⏳ Fetching data..."); err != nil {
		return err
	}

	media, err := h.resolve(ctx, link)
	if err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}
	result := &InstagramResult{URL: link, Media: media, OriginalSender: cmd.Sender}

	id, err := downloadcache.NewID()
	if err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}
	if err := h.deps.Cache.Put(id, result); err != nil {
		return fail(ctx, cmd, ec, "Error", err)
	}

	base := ec.UsedPrefix + trigger
	text := fmt.Sprintf("📸 *INSTAGRAM DOWNLOADER*\n\n🔗 *Link:* %s\n🖼️ *Items:* %d\n\n"+
		"_Select an option below or type the command:_\n📥 *Media:* %s %s media", link, len(media), base, id)

	_, err = ec.Client.SendMessage(ctx, cmd.Chat, &message.Outgoing{
		Text:    text,
		Buttons: []message.Button{{ButtonID: base + " " + id + " media", DisplayText: "📥 Download Media"}},
		Footer:  h.deps.BotName,
	})
	return err
}

func (h *instagramHandler) followUp(ctx context.Context, cmd *message.Command, ec *plugin.ExecutionContext, id string) error {
	var result InstagramResult
	if err := h.deps.Cache.Get(id, &result); err != nil {
		if errors.Is(err, downloadcache.ErrNotFound) {
			return reply(ctx, cmd, ec, "❌ Session expired. Please request the link again.")
		}
		return fail(ctx, cmd, ec, "Error", err)
	}
	if result.OriginalSender != "" && result.OriginalSender != cmd.Sender {
		return reply(ctx, cmd, ec, "❌ This button is not for you.")
	}

	if err := reply(ctx, cmd, ec, "⏳ Downloading media, please wait..."); err != nil {
		return err
	}

	// One bad item does not stop the rest of a carousel.
	for _, u := range result.Media {
		out, err := h.download(ctx, u)
		if err != nil {
			if err := fail(ctx, cmd, ec, "Failed to send media", err); err != nil {
				return err
			}
			continue
		}
		if _, err := ec.Client.SendMessage(ctx, cmd.Chat, out); err != nil {
			return err
		}
	}
	return nil
}

func (h *instagramHandler) download(ctx context.Context, u string) (*message.Outgoing, error) {
	data, err := fetch(ctx, h.deps.HTTP, u)
	if err != nil {
		return nil, err
	}
	if err := ValidateMedia(data); err != nil {
		return nil, err
	}

	kind, mime := DetectMedia(data)
	if kind == "" {
		kind, mime = "image", "image/jpeg"
		if strings.Contains(u, ".mp4") {
			kind, mime = "video", "video/mp4"
		}
	}

	att := &message.Attachment{Data: data}
	if kind == "video" {
		return &message.Outgoing{Video: att, Mimetype: mime}, nil
	}
	return &message.Outgoing{Image: att, Mimetype: mime}, nil
}

// DetectMedia sniffs the magic bytes of common image and video formats. It
// returns an empty kind when the format is unknown.
func DetectMedia(data []byte) (kind, mime string) {
	if len(data) < 12 {
		return "", ""
	}
	switch {
	case bytes.HasPrefix(data, []byte{0xff, 0xd8, 0xff}):
		return "image", "image/jpeg"
	case bytes.HasPrefix(data, []byte{0x89, 'P', 'N', 'G'}):
		return "image", "image/png"
	case bytes.HasPrefix(data, []byte("GIF8")):
		return "image", "image/gif"
	case bytes.Equal(data[4:8], []byte("ftyp")):
		return "video", "video/mp4"
	case bytes.HasPrefix(data, []byte{0x1a, 0x45, 0xdf, 0xa3}):
		return "video", "video/x-matroska"
	}
	return "", ""
}

func (h *instagramHandler) resolve(ctx context.Context, link string) ([]string, error) {
	escaped := url.QueryEscape(link)

	var lastErr error
	for _, tmpl := range h.endpoints {
		endpoint := strings.ReplaceAll(tmpl, "{url}", escaped)
		body, err := fetch(ctx, h.deps.HTTP, endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if media := ParseInstagram(body); len(media) > 0 {
			return media, nil
		}
		lastErr = fmt.Errorf("unrecognized response from %s", hostOf(endpoint))
	}
	if lastErr == nil {
		lastErr = errors.New("no endpoints configured")
	}
	return nil, fmt.Errorf("media not found or API error: %w", lastErr)
}

// ParseInstagram extracts the media links from a downloader API response.
// Carousels yield one link per item.
func ParseInstagram(body []byte) []string {
	if !gjson.ValidBytes(body) {
		return nil
	}
	doc := gjson.ParseBytes(body)

	var node gjson.Result
	for _, path := range []string{"data.result", "data", "result", "url_list", "media"} {
		if v := doc.Get(path); v.Exists() && v.Type != gjson.Null {
			node = v
			break
		}
	}
	if !node.Exists() && doc.IsArray() {
		node = doc
	}
	if !node.Exists() {
		return nil
	}

	var out []string
	add := func(item gjson.Result) {
		if s := mediaLink(item); s != "" {
			out = append(out, s)
		}
	}
	if node.IsArray() {
		node.ForEach(func(_, item gjson.Result) bool {
			add(item)
			return true
		})
	} else {
		add(node)
	}
	return out
}

// mediaLink prefers HD and video links over plain ones.
func mediaLink(item gjson.Result) string {
	if item.Type == gjson.String {
		return item.String()
	}
	if !item.IsObject() {
		return ""
	}
	return firstString(item, "hd_url", "video_hd", "video_url", "hd", "video", "url", "download_url", "link", "_url")
}
