// Package transporttest provides a recording test double for
// transport.Client.
package transporttest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

// SentMessage is one recorded SendMessage call.
type SentMessage struct {
	To      string
	Content *message.Outgoing
	Opts    transport.SendOptions
}

// PresenceUpdate is one recorded SendPresenceUpdate call.
type PresenceUpdate struct {
	State transport.Presence
	To    string
}

// FakeClient records every call. Set the Func fields to control results;
// unset funcs succeed with zero values. All methods are safe for concurrent
// use.
type FakeClient struct {
	SelfID string

	SendFunc          func(ctx context.Context, to string, content *message.Outgoing, opts transport.SendOptions) (*transport.SendResult, error)
	PresenceFunc      func(ctx context.Context, state transport.Presence, to string) error
	GroupMetadataFunc func(ctx context.Context, chat string) (*transport.GroupMetadata, error)
	ReadFunc          func(ctx context.Context, keys []message.Key) error
	ProfilePicFunc    func(ctx context.Context, jid, kind string) (string, error)
	DownloadFunc      func(ctx context.Context, media *message.Media, kind string) ([]byte, error)

	mu         sync.Mutex
	sent       []SentMessage
	presences  []PresenceUpdate
	reads      [][]message.Key
	groupCalls int
	upserts    chan message.Upsert
}

// New returns a fake client with the given self identity.
func New(self string) *FakeClient {
	return &FakeClient{SelfID: self, upserts: make(chan message.Upsert, 16)}
}

// SendMessage records the call and delegates to SendFunc.
func (f *FakeClient) SendMessage(ctx context.Context, to string, content *message.Outgoing, opts transport.SendOptions) (*transport.SendResult, error) {
	f.mu.Lock()
	f.sent = append(f.sent, SentMessage{To: to, Content: content, Opts: opts})
	n := len(f.sent)
	f.mu.Unlock()

	if f.SendFunc != nil {
		return f.SendFunc(ctx, to, content, opts)
	}
	return &transport.SendResult{ID: fmt.Sprintf("fake-%d", n), Status: 1}, nil
}

// SendPresenceUpdate records the call and delegates to PresenceFunc.
func (f *FakeClient) SendPresenceUpdate(ctx context.Context, state transport.Presence, to string) error {
	f.mu.Lock()
	f.presences = append(f.presences, PresenceUpdate{State: state, To: to})
	f.mu.Unlock()

	if f.PresenceFunc != nil {
		return f.PresenceFunc(ctx, state, to)
	}
	return nil
}

// GroupMetadata delegates to GroupMetadataFunc.
func (f *FakeClient) GroupMetadata(ctx context.Context, chat string) (*transport.GroupMetadata, error) {
	f.mu.Lock()
	f.groupCalls++
	f.mu.Unlock()

	if f.GroupMetadataFunc != nil {
		return f.GroupMetadataFunc(ctx, chat)
	}
	return nil, errors.New("group metadata not configured")
}

// ReadMessages records the call and delegates to ReadFunc.
func (f *FakeClient) ReadMessages(ctx context.Context, keys []message.Key) error {
	f.mu.Lock()
	f.reads = append(f.reads, keys)
	f.mu.Unlock()

	if f.ReadFunc != nil {
		return f.ReadFunc(ctx, keys)
	}
	return nil
}

// ProfilePictureURL delegates to ProfilePicFunc.
func (f *FakeClient) ProfilePictureURL(ctx context.Context, jid, kind string) (string, error) {
	if f.ProfilePicFunc != nil {
		return f.ProfilePicFunc(ctx, jid, kind)
	}
	return "", errors.New("profile picture not configured")
}

// DownloadMedia delegates to DownloadFunc.
func (f *FakeClient) DownloadMedia(ctx context.Context, media *message.Media, kind string) ([]byte, error) {
	if f.DownloadFunc != nil {
		return f.DownloadFunc(ctx, media, kind)
	}
	return nil, errors.New("download not configured")
}

// Self returns SelfID.
func (f *FakeClient) Self() string {
	return f.SelfID
}

// Upserts returns the inbound channel. Use Push to feed it.
func (f *FakeClient) Upserts() <-chan message.Upsert {
	return f.upserts
}

// Push queues an upsert batch for Upserts consumers.
func (f *FakeClient) Push(u message.Upsert) {
	f.upserts <- u
}

// Close closes the upsert channel.
func (f *FakeClient) Close() {
	close(f.upserts)
}

// Sent returns a copy of the recorded sends.
func (f *FakeClient) Sent() []SentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SentMessage(nil), f.sent...)
}

// Presences returns a copy of the recorded presence updates.
func (f *FakeClient) Presences() []PresenceUpdate {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]PresenceUpdate(nil), f.presences...)
}

// PresenceCount counts recorded updates with the given state.
func (f *FakeClient) PresenceCount(state transport.Presence) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.presences {
		if p.State == state {
			n++
		}
	}
	return n
}

// Reads returns a copy of the recorded read receipts.
func (f *FakeClient) Reads() [][]message.Key {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]message.Key(nil), f.reads...)
}

// GroupMetadataCalls returns how many times GroupMetadata was called.
func (f *FakeClient) GroupMetadataCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groupCalls
}

var _ transport.Client = (*FakeClient)(nil)
