// Package message models inbound WhatsApp events, the normalized command
// derived from them and the outbound content accepted by the transport.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Upsert types accepted by the dispatcher.
const (
	UpsertNotify = "notify"
	UpsertAppend = "append"
)

// Upsert is one batch delivered by the messages.upsert subscription.
type Upsert struct {
	Type     string  `json:"type"`
	Messages []Event `json:"messages"`
}

// Accepted reports whether the batch type is one the bot acts on.
func (u Upsert) Accepted() bool {
	return u.Type == UpsertNotify || u.Type == UpsertAppend
}

// Key identifies a message within a chat.
type Key struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

// Event is a raw inbound message envelope. It is never mutated after decode.
type Event struct {
	Key       Key        `json:"key"`
	Message   *Container `json:"message,omitempty"`
	Timestamp Long       `json:"messageTimestamp"`
	PushName  string     `json:"pushName,omitempty"`
}

// SentAt converts the protocol timestamp (seconds) to a time.
func (e *Event) SentAt() time.Time {
	if e.Timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(int64(e.Timestamp), 0)
}

// Long is a 64-bit protocol integer. The bridge encodes it as a JSON
// number, a numeric string or a {low, high} pair.
type Long uint64

// UnmarshalJSON implements json.Unmarshaler.
func (l *Long) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*l = 0
		return nil
	}

	switch data[0] {
	case '{':
		var pair struct {
			Low  int64 `json:"low"`
			High int64 `json:"high"`
		}
		if err := json.Unmarshal(data, &pair); err != nil {
			return fmt.Errorf("invalid long object: %w", err)
		}
		*l = Long(uint64(uint32(pair.High))<<32 | uint64(uint32(pair.Low)))
		return nil
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if s == "" {
			*l = 0
			return nil
		}
		v, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid long string %q: %w", s, err)
		}
		*l = Long(v)
		return nil
	default:
		var f float64
		if err := json.Unmarshal(data, &f); err != nil {
			return fmt.Errorf("invalid long: %w", err)
		}
		if f < 0 {
			f = 0
		}
		*l = Long(uint64(f))
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (l Long) MarshalJSON() ([]byte, error) {
	return []byte(strconv.FormatUint(uint64(l), 10)), nil
}
