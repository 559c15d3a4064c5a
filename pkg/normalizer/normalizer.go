// Package normalizer turns raw inbound events into message.Command values.
package normalizer

import (
	"errors"
	"strings"
	"time"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
)

var (
	// ErrStale is returned for events older than the age limit.
	ErrStale = errors.New("message too old")
	// ErrEmpty is returned for events without text and without an image.
	ErrEmpty = errors.New("message has no text or image")
	// ErrNoMessage is returned for envelopes without a message body.
	ErrNoMessage = errors.New("envelope has no message")
)

// DefaultPrefixes are the command prefixes recognized when none are
// configured.
var DefaultPrefixes = []string{"!", "/", ".", "#"}

// DefaultMaxAge is the age limit for inbound events.
const DefaultMaxAge = 120 * time.Second

// Config configures a Normalizer.
type Config struct {
	Prefixes []string
	MaxAge   time.Duration
	// Now is the clock; tests override it.
	Now func() time.Time
}

// Normalizer extracts command fields from inbound events.
type Normalizer struct {
	prefixes []string
	maxAge   time.Duration
	now      func() time.Time
}

// New creates a Normalizer. Zero config fields take defaults.
func New(cfg Config) *Normalizer {
	if len(cfg.Prefixes) == 0 {
		cfg.Prefixes = DefaultPrefixes
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = DefaultMaxAge
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Normalizer{prefixes: cfg.Prefixes, maxAge: cfg.MaxAge, now: cfg.Now}
}

// Prefixes returns the recognized prefixes.
func (n *Normalizer) Prefixes() []string {
	return n.prefixes
}

// Fresh reports whether ev is within the age limit. Events without a
// timestamp are considered fresh.
func (n *Normalizer) Fresh(ev *message.Event) bool {
	if ev.Timestamp == 0 {
		return true
	}
	return n.now().Sub(ev.SentAt()) <= n.maxAge
}

// Normalize builds the command view of ev. Sender resolution and admin
// flags are left to the caller; Sender is preset to the raw participant or
// chat. A Command with an empty Prefix means the message is not a command.
func (n *Normalizer) Normalize(ev *message.Event) (*message.Command, error) {
	if ev == nil || ev.Message == nil {
		return nil, ErrNoMessage
	}
	if !n.Fresh(ev) {
		return nil, ErrStale
	}

	content := ev.Message.Unwrap()
	variant := message.Classify(content)
	body := variant.Body()

	hasImage := content.ImageMessage != nil
	ctxInfo := content.Context()
	if !hasImage && ctxInfo != nil && ctxInfo.QuotedMessage != nil && ctxInfo.QuotedMessage.UnwrapViewOnce().ImageMessage != nil {
		hasImage = true
	}

	if strings.TrimSpace(body) == "" && !hasImage {
		return nil, ErrEmpty
	}

	cmd := &message.Command{
		Key:      ev.Key,
		Chat:     ev.Key.RemoteJID,
		PushName: ev.PushName,
		Body:     body,
		IsGroup:  jid.IsGroup(ev.Key.RemoteJID),
		Raw:      ev,
	}
	if cmd.PushName == "" {
		cmd.PushName = "Unknown"
	}
	cmd.Sender = ev.Key.Participant
	if cmd.Sender == "" {
		cmd.Sender = ev.Key.RemoteJID
	}

	n.parsePrefix(cmd, body)
	if cmd.Prefix == "" && content.ImageMessage != nil && content.ImageMessage.Caption != "" {
		n.parsePrefix(cmd, content.ImageMessage.Caption)
	}

	cmd.Quoted = quoted(ev, ctxInfo)
	if ctxInfo != nil {
		cmd.Mentions = userMentions(ctxInfo.MentionedJID)
	}
	attachMedia(cmd, content)

	return cmd, nil
}

// parsePrefix strips the first matching prefix from text. The command is
// left unset when nothing follows the prefix.
func (n *Normalizer) parsePrefix(cmd *message.Command, text string) {
	for _, p := range n.prefixes {
		if p == "" || !strings.HasPrefix(text, p) {
			continue
		}
		rest := strings.TrimSpace(text[len(p):])
		if rest == "" {
			return
		}
		cmd.Prefix = p
		cmd.Text = rest
		cmd.Command = strings.ToLower(rest)
		return
	}
}

func quoted(ev *message.Event, ci *message.ContextInfo) *message.Quoted {
	if ci == nil || (ci.StanzaID == "" && ci.QuotedMessage == nil) {
		return nil
	}

	remote := ci.RemoteJID
	if remote == "" {
		remote = ev.Key.RemoteJID
	}

	inner := ci.QuotedMessage.UnwrapViewOnce()
	return &message.Quoted{
		Key: message.Key{
			RemoteJID:   remote,
			FromMe:      ci.FromMe,
			ID:          ci.StanzaID,
			Participant: ci.Participant,
		},
		Participant: ci.Participant,
		Text:        inner.Text(),
		Message:     inner,
		ViewOnce:    ci.QuotedMessage.IsViewOnce(),
	}
}

// userMentions keeps user ids in order and drops everything else.
func userMentions(ids []string) []string {
	var out []string
	for _, id := range ids {
		if id != "" && jid.IsUser(id) && !jid.IsGroup(id) {
			out = append(out, id)
		}
	}
	return out
}

// attachMedia exposes the message's own media, falling back to media of
// the quoted message.
func attachMedia(cmd *message.Command, content *message.Container) {
	var q *message.Container
	if cmd.Quoted != nil {
		q = cmd.Quoted.Message
	}

	cmd.Image = firstMedia(content.ImageMessage, q, func(c *message.Container) *message.Media { return c.ImageMessage })
	cmd.Video = firstMedia(content.VideoMessage, q, func(c *message.Container) *message.Media { return c.VideoMessage })
	cmd.Audio = firstMedia(content.AudioMessage, q, func(c *message.Container) *message.Media { return c.AudioMessage })
}

func firstMedia(own *message.Media, quoted *message.Container, pick func(*message.Container) *message.Media) *message.Media {
	if own != nil {
		return own
	}
	if quoted != nil {
		return pick(quoted)
	}
	return nil
}
