// Package identity resolves who sent a message and whether the sender and
// the bot are group admins.
package identity

import (
	"context"
	"strings"

	"github.com/rs/zerolog"

	"github.com/harun/lynae/pkg/jid"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

// MetadataFetcher is the slice of the transport the resolver needs.
type MetadataFetcher interface {
	GroupMetadata(ctx context.Context, chat string) (*transport.GroupMetadata, error)
	Self() string
}

// AdminStatus is the admin resolution for one group message.
type AdminStatus struct {
	IsAdmin    bool
	IsBotAdmin bool
}

// Resolver resolves senders and admin flags.
type Resolver struct {
	client MetadataFetcher
	// fallbackSelf is used when the session does not report its identity.
	fallbackSelf string
	logger       zerolog.Logger
}

// NewResolver creates a resolver. botNumber is the configured bot phone
// number, used only when the session identity is unknown.
func NewResolver(client MetadataFetcher, botNumber string, logger zerolog.Logger) *Resolver {
	return &Resolver{
		client:       client,
		fallbackSelf: botNumber,
		logger:       logger.With().Str("component", "identity").Logger(),
	}
}

// BotID returns the bot's canonical user id.
func (r *Resolver) BotID() string {
	self := r.client.Self()
	if self == "" {
		self = r.fallbackSelf
	}
	return jid.SelfUser(self)
}

// Sender returns the canonical sender of key. The result never ends in the
// group suffix.
func (r *Resolver) Sender(key message.Key) string {
	sender := key.Participant
	if sender == "" {
		sender = key.RemoteJID
	}

	if key.FromMe {
		if bot := r.BotID(); bot != "" {
			sender = bot
		}
	}

	if sender == "" || jid.IsGroup(sender) {
		sender = key.RemoteJID
	}
	return sender
}

// Admin fetches the roster of chat and reports admin rights of sender and
// the bot. Fetch errors fail closed.
func (r *Resolver) Admin(ctx context.Context, chat, sender string) AdminStatus {
	if !jid.IsGroup(chat) {
		return AdminStatus{}
	}

	meta, err := r.client.GroupMetadata(ctx, chat)
	if err != nil || meta == nil {
		r.logger.Warn().Err(err).Str("chat", chat).Msg("Error getting group metadata")
		return AdminStatus{}
	}

	status := AdminStatus{
		IsAdmin:    isAdmin(FindParticipant(meta.Participants, sender)),
		IsBotAdmin: isAdmin(FindParticipant(meta.Participants, r.BotID())),
	}

	r.logger.Debug().
		Str("chat", chat).
		Str("sender", sender).
		Bool("is_admin", status.IsAdmin).
		Bool("is_bot_admin", status.IsBotAdmin).
		Msg("Resolved admin status")

	return status
}

func isAdmin(p *transport.Participant) bool {
	return p != nil && p.Admin.IsAdmin()
}

// FindParticipant locates id in a roster whose members may be encoded as
// standard ids, device ids or linked-device aliases. Passes run from the
// strictest match to the loosest: bare number, normalized id, raw id and
// finally a substring match between bare numbers.
func FindParticipant(participants []transport.Participant, id string) *transport.Participant {
	if id == "" {
		return nil
	}

	base := jid.BaseNumber(id)
	normalized := jid.Normalize(id)
	raw := strings.ToLower(id)

	passes := []func(p transport.Participant) bool{
		func(p transport.Participant) bool {
			return base != "" && jid.BaseNumber(p.Identifier()) == base
		},
		func(p transport.Participant) bool {
			return jid.Normalize(p.Identifier()) == normalized
		},
		func(p transport.Participant) bool {
			return strings.ToLower(p.Identifier()) == raw
		},
		func(p transport.Participant) bool {
			pRaw := strings.ToLower(p.Identifier())
			pBase := jid.BaseNumber(p.Identifier())
			return (base != "" && strings.Contains(pRaw, base)) ||
				(pBase != "" && strings.Contains(raw, pBase))
		},
	}

	for _, match := range passes {
		for i := range participants {
			if participants[i].Identifier() == "" {
				continue
			}
			if match(participants[i]) {
				return &participants[i]
			}
		}
	}
	return nil
}
