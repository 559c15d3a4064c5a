package bridge

import (
	"context"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

type sendParams struct {
	JID     string            `json:"jid"`
	Content *message.Outgoing `json:"content"`
	Quoted  *message.Event    `json:"quoted,omitempty"`
}

type presenceParams struct {
	State transport.Presence `json:"state"`
	JID   string             `json:"jid"`
}

type jidParams struct {
	JID  string `json:"jid"`
	Type string `json:"type,omitempty"`
}

type readParams struct {
	Keys []message.Key `json:"keys"`
}

type downloadParams struct {
	Media *message.Media `json:"message"`
	Type  string         `json:"type"`
}

type statusParams struct {
	Status string `json:"status"`
}

// SendMessage delivers content to a chat.
func (c *Client) SendMessage(ctx context.Context, to string, content *message.Outgoing, opts transport.SendOptions) (*transport.SendResult, error) {
	var result transport.SendResult
	if err := c.call(ctx, ActionSendMessage, sendParams{JID: to, Content: content, Quoted: opts.Quoted}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// SendPresenceUpdate sets the bot's presence in a chat.
func (c *Client) SendPresenceUpdate(ctx context.Context, state transport.Presence, to string) error {
	return c.call(ctx, ActionSendPresence, presenceParams{State: state, JID: to}, nil)
}

// GroupMetadata fetches a group's roster.
func (c *Client) GroupMetadata(ctx context.Context, chat string) (*transport.GroupMetadata, error) {
	var meta transport.GroupMetadata
	if err := c.call(ctx, ActionGroupMetadata, jidParams{JID: chat}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// ReadMessages marks messages as read.
func (c *Client) ReadMessages(ctx context.Context, keys []message.Key) error {
	return c.call(ctx, ActionReadMessages, readParams{Keys: keys}, nil)
}

// ProfilePictureURL returns the profile picture URL of jid. kind is
// "image" (full size) or "preview".
func (c *Client) ProfilePictureURL(ctx context.Context, jid string, kind string) (string, error) {
	var url string
	if err := c.call(ctx, ActionProfilePictureURL, jidParams{JID: jid, Type: kind}, &url); err != nil {
		return "", err
	}
	return url, nil
}

// DownloadMedia downloads and decrypts an attachment. The bridge answers
// with base64 data.
func (c *Client) DownloadMedia(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
	var data []byte
	if err := c.call(ctx, ActionDownloadMedia, downloadParams{Media: media, Type: kind}, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// UpdateProfileStatus sets the account's about text.
func (c *Client) UpdateProfileStatus(ctx context.Context, status string) error {
	return c.call(ctx, ActionUpdateProfileStatus, statusParams{Status: status}, nil)
}

// Self returns the bot's own JID once the session has opened.
func (c *Client) Self() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.self
}

// Upserts delivers messages.upsert batches in arrival order.
func (c *Client) Upserts() <-chan message.Upsert {
	return c.queue.out
}
