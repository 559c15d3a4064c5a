// Package transport defines the messaging client the bot core consumes.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harun/lynae/pkg/message"
)

// Presence states understood by the session layer.
type Presence string

const (
	PresenceComposing   Presence = "composing"
	PresenceAvailable   Presence = "available"
	PresenceUnavailable Presence = "unavailable"
	PresenceRecording   Presence = "recording"
	PresencePaused      Presence = "paused"
)

// Client is the messaging session. Implementations must be safe for
// concurrent use.
type Client interface {
	SendMessage(ctx context.Context, to string, content *message.Outgoing, opts SendOptions) (*SendResult, error)
	SendPresenceUpdate(ctx context.Context, state Presence, to string) error
	GroupMetadata(ctx context.Context, chat string) (*GroupMetadata, error)
	ReadMessages(ctx context.Context, keys []message.Key) error
	ProfilePictureURL(ctx context.Context, jid string, kind string) (string, error)
	DownloadMedia(ctx context.Context, media *message.Media, kind string) ([]byte, error)
	// Self returns the session identity, possibly carrying a device suffix.
	Self() string
	// Upserts delivers inbound message batches. The channel is closed when
	// the client stops for good.
	Upserts() <-chan message.Upsert
}

// SendOptions are per-send knobs forwarded to the session layer.
type SendOptions struct {
	// Quoted renders the message as a reply to this event.
	Quoted *message.Event `json:"quoted,omitempty"`
}

// SendResult is what the transport reports for a send. Suppressed sends
// never reached the transport.
type SendResult struct {
	ID         string `json:"id,omitempty"`
	Status     int    `json:"status"`
	Suppressed bool   `json:"suppressed,omitempty"`
}

// GroupMetadata is the roster of a group chat.
type GroupMetadata struct {
	ID           string        `json:"id"`
	Subject      string        `json:"subject,omitempty"`
	Owner        string        `json:"owner,omitempty"`
	Participants []Participant `json:"participants"`
}

// Participant is one group member. ID may be in standard or linked-device
// form; JID is set by some session versions alongside it.
type Participant struct {
	ID    string    `json:"id"`
	JID   string    `json:"jid,omitempty"`
	Admin AdminRole `json:"admin,omitempty"`
}

// Identifier returns ID, falling back to JID.
func (p Participant) Identifier() string {
	if p.ID != "" {
		return p.ID
	}
	return p.JID
}

// AdminRole is the admin marker of a participant. The session layer sends
// "admin", "superadmin", null or a boolean.
type AdminRole string

// UnmarshalJSON implements json.Unmarshaler.
func (r *AdminRole) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	switch val := v.(type) {
	case nil:
		*r = ""
	case bool:
		if val {
			*r = "true"
		} else {
			*r = ""
		}
	case string:
		*r = AdminRole(val)
	default:
		return fmt.Errorf("unexpected admin value %v", v)
	}
	return nil
}

// IsAdmin reports whether the role grants admin rights.
func (r AdminRole) IsAdmin() bool {
	switch strings.ToLower(strings.TrimSpace(string(r))) {
	case "admin", "superadmin", "true":
		return true
	}
	return false
}
