// Package outbound gates every message a plugin sends. Empty or malformed
// content is dropped before it reaches the transport, the reply target
// defaults to the originating chat and replies are threaded to the
// triggering message.
package outbound

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

// Suppression reasons reported to the Recorder.
const (
	ReasonNil          = "nil_content"
	ReasonEmptyText    = "empty_text"
	ReasonEmptyContent = "empty_content"
	ReasonNoPayload    = "no_payload"
	ReasonEmptyReact   = "empty_react"
)

// Recorder observes guard decisions.
type Recorder interface {
	RecordSend(err error)
	RecordSuppressed(reason string)
}

// Origin is the inbound message a guarded sender replies to.
type Origin struct {
	Event  *message.Event
	Chat   string
	Sender string
}

// GuardedSender wraps a transport.Client for one dispatch.
type GuardedSender struct {
	client   transport.Client
	origin   Origin
	recorder Recorder
	logger   zerolog.Logger
}

// NewGuardedSender creates a guard for messages triggered by origin.
// recorder may be nil.
func NewGuardedSender(client transport.Client, origin Origin, recorder Recorder, logger zerolog.Logger) *GuardedSender {
	return &GuardedSender{
		client:   client,
		origin:   origin,
		recorder: recorder,
		logger:   logger.With().Str("component", "outbound-guard").Logger(),
	}
}

// SendOption customizes a single guarded send.
type SendOption func(*sendOptions)

type sendOptions struct {
	quoted  *message.Event
	noQuote bool
}

// WithQuoted threads the message as a reply to ev instead of the
// triggering message.
func WithQuoted(ev *message.Event) SendOption {
	return func(o *sendOptions) { o.quoted = ev }
}

// WithoutQuote sends the message without reply context.
func WithoutQuote() SendOption {
	return func(o *sendOptions) { o.noQuote = true }
}

// suppressed is the result returned for every dropped send.
func suppressed() *transport.SendResult {
	return &transport.SendResult{Status: 200, Suppressed: true}
}

// SendText sends a plain text message. Blank text is suppressed.
func (g *GuardedSender) SendText(ctx context.Context, to, text string, opts ...SendOption) (*transport.SendResult, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return g.suppress(ReasonEmptyText, nil), nil
	}
	return g.SendMessage(ctx, to, &message.Outgoing{Text: trimmed}, opts...)
}

// SendMessage validates content and forwards it to the transport. Dropped
// content yields a suppressed result and a nil error; transport errors are
// returned as is. content is never modified.
func (g *GuardedSender) SendMessage(ctx context.Context, to string, content *message.Outgoing, opts ...SendOption) (*transport.SendResult, error) {
	if content == nil {
		return g.suppress(ReasonNil, nil), nil
	}

	var o sendOptions
	for _, opt := range opts {
		opt(&o)
	}

	if content.React != nil {
		if !content.IsReaction() {
			return g.suppress(ReasonEmptyReact, content), nil
		}
		return g.forward(ctx, g.defaultTarget(to), content, o)
	}

	if content.IsEmpty() {
		return g.suppress(ReasonEmptyContent, content), nil
	}

	out := content.Clone()
	out.Text = strings.TrimSpace(out.Text)
	if !out.HasPayload() {
		return g.suppress(ReasonNoPayload, content), nil
	}

	target := g.resolveTarget(to)

	if out.ContextInfo == nil && o.quoted == nil && !o.noQuote && g.origin.Event != nil {
		out.ContextInfo = g.replyContext()
	}

	// Re-check after mutation.
	out.Text = strings.TrimSpace(out.Text)
	if !out.HasPayload() {
		return g.suppress(ReasonNoPayload, content), nil
	}

	return g.forward(ctx, target, out, o)
}

func (g *GuardedSender) forward(ctx context.Context, to string, content *message.Outgoing, o sendOptions) (*transport.SendResult, error) {
	var opts transport.SendOptions
	switch {
	case o.quoted != nil:
		opts.Quoted = o.quoted
	case !o.noQuote && content.React == nil:
		opts.Quoted = g.origin.Event
	}

	res, err := g.client.SendMessage(ctx, to, content, opts)
	if g.recorder != nil {
		g.recorder.RecordSend(err)
	}
	if err != nil {
		g.logger.Error().Err(err).Str("to", to).Msg("Send failed")
		return nil, err
	}
	return res, nil
}

func (g *GuardedSender) suppress(reason string, content *message.Outgoing) *transport.SendResult {
	ev := g.logger.Warn().Str("reason", reason).Str("chat", g.origin.Chat)
	if content != nil {
		ev = ev.Bool("has_text", content.Text != "").Bool("has_context", content.ContextInfo != nil)
	}
	ev.Msg("Blocked outbound message")

	if g.recorder != nil {
		g.recorder.RecordSuppressed(reason)
	}
	return suppressed()
}

func (g *GuardedSender) defaultTarget(to string) string {
	if to != "" {
		return to
	}
	return g.origin.Chat
}

// resolveTarget defaults to the originating chat and keeps replies to the
// sender of a group command inside the group.
func (g *GuardedSender) resolveTarget(to string) string {
	if to == "" {
		return g.origin.Chat
	}
	if to == g.origin.Sender && jid.IsGroup(g.origin.Chat) {
		return g.origin.Chat
	}
	return to
}

func (g *GuardedSender) replyContext() *message.ContextInfo {
	ev := g.origin.Event
	participant := ev.Key.Participant
	if participant == "" {
		participant = g.origin.Sender
	}
	return &message.ContextInfo{
		StanzaID:      ev.Key.ID,
		Participant:   participant,
		QuotedMessage: ev.Message,
	}
}

// Origin returns the message this sender replies to.
func (g *GuardedSender) Origin() Origin {
	return g.origin
}

// Self returns the session identity.
func (g *GuardedSender) Self() string {
	return g.client.Self()
}

// SendPresenceUpdate forwards a presence update. An empty target means the
// originating chat.
func (g *GuardedSender) SendPresenceUpdate(ctx context.Context, state transport.Presence, to string) error {
	return g.client.SendPresenceUpdate(ctx, state, g.defaultTarget(to))
}

// GroupMetadata forwards to the transport.
func (g *GuardedSender) GroupMetadata(ctx context.Context, chat string) (*transport.GroupMetadata, error) {
	return g.client.GroupMetadata(ctx, g.defaultTarget(chat))
}

// ReadMessages forwards to the transport.
func (g *GuardedSender) ReadMessages(ctx context.Context, keys []message.Key) error {
	return g.client.ReadMessages(ctx, keys)
}

// ProfilePictureURL forwards to the transport.
func (g *GuardedSender) ProfilePictureURL(ctx context.Context, id, kind string) (string, error) {
	return g.client.ProfilePictureURL(ctx, id, kind)
}

// DownloadMedia forwards to the transport.
func (g *GuardedSender) DownloadMedia(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
	return g.client.DownloadMedia(ctx, media, kind)
}
