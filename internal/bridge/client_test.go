package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harun/lynae/internal/logger"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

// reply is what the fake bridge answers to one request. A nil reply means
// no answer at all.
type reply struct {
	data    any
	retcode int
	message string
}

type incoming struct {
	Action string          `json:"action"`
	Params json.RawMessage `json:"params"`
	Echo   string          `json:"echo"`
}

type serverConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *serverConn) send(t *testing.T, v any) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NoError(t, s.conn.WriteJSON(v))
}

func (s *serverConn) event(t *testing.T, name string, data any) {
	t.Helper()
	s.send(t, map[string]any{"event": name, "data": data})
}

type fakeBridge struct {
	server *httptest.Server
	conns  chan *serverConn

	mu         sync.Mutex
	authHeader string
	requests   []incoming
}

func newFakeBridge(t *testing.T, handle func(req incoming) *reply) *fakeBridge {
	t.Helper()

	fb := &fakeBridge{conns: make(chan *serverConn, 4)}
	upgrader := websocket.Upgrader{}

	fb.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		fb.authHeader = r.Header.Get("Authorization")
		fb.mu.Unlock()

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		sc := &serverConn{conn: conn}
		fb.conns <- sc

		for {
			var req incoming
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			fb.mu.Lock()
			fb.requests = append(fb.requests, req)
			fb.mu.Unlock()

			rep := handle(req)
			if rep == nil {
				continue
			}
			resp := map[string]any{"echo": req.Echo, "status": "ok", "retcode": rep.retcode, "data": rep.data}
			if rep.retcode != 0 {
				resp["status"] = "failed"
				resp["message"] = rep.message
			}
			sc.mu.Lock()
			err := conn.WriteJSON(resp)
			sc.mu.Unlock()
			if err != nil {
				return
			}
		}
	}))
	t.Cleanup(fb.server.Close)
	return fb
}

func (fb *fakeBridge) url() string {
	return "ws" + strings.TrimPrefix(fb.server.URL, "http")
}

func (fb *fakeBridge) nextConn(t *testing.T) *serverConn {
	t.Helper()
	select {
	case sc := <-fb.conns:
		return sc
	case <-time.After(2 * time.Second):
		t.Fatal("client did not connect")
		return nil
	}
}

type fakeRecorder struct {
	mu         sync.Mutex
	connected  bool
	reconnects int
	dropped    int
}

func (r *fakeRecorder) SetConnected(connected bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connected = connected
}

func (r *fakeRecorder) RecordReconnect() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reconnects++
}

func (r *fakeRecorder) RecordDropped() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped++
}

func (r *fakeRecorder) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reconnects, r.dropped
}

// startClient runs a client against fb and returns it with the channel
// Run's result arrives on.
func startClient(t *testing.T, fb *fakeBridge, cfg Config) (*Client, <-chan error) {
	t.Helper()

	cfg.URL = fb.url()
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 2 * time.Second
	}
	client := New(cfg, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return client, done
}

func waitConnected(t *testing.T, c *Client) {
	t.Helper()
	require.Eventually(t, c.Connected, 2*time.Second, 5*time.Millisecond)
}

func TestClientRequests(t *testing.T) {
	fb := newFakeBridge(t, func(req incoming) *reply {
		switch req.Action {
		case ActionSendMessage:
			return &reply{data: map[string]any{"id": "3EB0ABC", "status": 1}}
		case ActionGroupMetadata:
			return &reply{data: map[string]any{
				"id":      "120363@g.us",
				"subject": "Team",
				"participants": []map[string]any{
					{"id": "628111@s.whatsapp.net", "admin": "admin"},
					{"id": "628222@s.whatsapp.net", "admin": nil},
				},
			}}
		case ActionProfilePictureURL:
			return &reply{data: "https://pps.whatsapp.net/v/t61/abc"}
		case ActionDownloadMedia:
			return &reply{data: []byte("media-bytes")}
		default:
			return &reply{}
		}
	})
	client, _ := startClient(t, fb, Config{Token: "secret"})
	waitConnected(t, client)

	ctx := context.Background()

	res, err := client.SendMessage(ctx, "628111@s.whatsapp.net", message.Text("hi"), transport.SendOptions{})
	require.NoError(t, err)
	assert.Equal(t, "3EB0ABC", res.ID)
	assert.Equal(t, 1, res.Status)

	meta, err := client.GroupMetadata(ctx, "120363@g.us")
	require.NoError(t, err)
	assert.Equal(t, "Team", meta.Subject)
	require.Len(t, meta.Participants, 2)
	assert.True(t, meta.Participants[0].Admin.IsAdmin())
	assert.False(t, meta.Participants[1].Admin.IsAdmin())

	url, err := client.ProfilePictureURL(ctx, "628111@s.whatsapp.net", "image")
	require.NoError(t, err)
	assert.Equal(t, "https://pps.whatsapp.net/v/t61/abc", url)

	data, err := client.DownloadMedia(ctx, &message.Media{MediaKey: "k"}, "image")
	require.NoError(t, err)
	assert.Equal(t, []byte("media-bytes"), data)

	require.NoError(t, client.SendPresenceUpdate(ctx, transport.PresenceComposing, "628111@s.whatsapp.net"))
	require.NoError(t, client.ReadMessages(ctx, []message.Key{{RemoteJID: "628111@s.whatsapp.net", ID: "X"}}))

	fb.mu.Lock()
	defer fb.mu.Unlock()
	assert.Equal(t, "Bearer secret", fb.authHeader)
	require.Len(t, fb.requests, 6)

	var send sendParams
	require.NoError(t, json.Unmarshal(fb.requests[0].Params, &send))
	assert.Equal(t, "628111@s.whatsapp.net", send.JID)
	assert.Equal(t, "hi", send.Content.Text)

	var presence presenceParams
	require.NoError(t, json.Unmarshal(fb.requests[4].Params, &presence))
	assert.Equal(t, transport.PresenceComposing, presence.State)

	echoes := map[string]bool{}
	for _, req := range fb.requests {
		assert.NotEmpty(t, req.Echo)
		echoes[req.Echo] = true
	}
	assert.Len(t, echoes, 6)
}

func TestClientFailedResponse(t *testing.T) {
	fb := newFakeBridge(t, func(req incoming) *reply {
		return &reply{retcode: 404, message: "item-not-found"}
	})
	client, _ := startClient(t, fb, Config{})
	waitConnected(t, client)

	_, err := client.GroupMetadata(context.Background(), "120363@g.us")
	require.Error(t, err)

	var respErr *ResponseError
	require.True(t, errors.As(err, &respErr))
	assert.Equal(t, ActionGroupMetadata, respErr.Action)
	assert.Equal(t, 404, respErr.Retcode)
	assert.Contains(t, err.Error(), "item-not-found")
}

func TestClientTimeout(t *testing.T) {
	fb := newFakeBridge(t, func(req incoming) *reply { return nil })
	client, _ := startClient(t, fb, Config{RequestTimeout: 50 * time.Millisecond})
	waitConnected(t, client)

	err := client.SendPresenceUpdate(context.Background(), transport.PresenceAvailable, "628111@s.whatsapp.net")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestClientNotConnected(t *testing.T) {
	client := New(Config{URL: "ws://127.0.0.1:1"}, zerolog.Nop())

	err := client.SendPresenceUpdate(context.Background(), transport.PresenceAvailable, "628111@s.whatsapp.net")
	assert.ErrorIs(t, err, ErrNotConnected)
	assert.False(t, client.Connected())
	assert.Empty(t, client.Self())
}

func TestClientPendingFailsOnDisconnect(t *testing.T) {
	received := make(chan struct{}, 1)
	fb := newFakeBridge(t, func(req incoming) *reply {
		received <- struct{}{}
		return nil
	})
	client, _ := startClient(t, fb, Config{RequestTimeout: 5 * time.Second, ReconnectInterval: time.Hour})
	sc := fb.nextConn(t)
	waitConnected(t, client)

	errc := make(chan error, 1)
	go func() {
		_, err := client.GroupMetadata(context.Background(), "120363@g.us")
		errc <- err
	}()

	<-received
	require.NoError(t, sc.conn.Close())

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, ErrNotConnected)
	case <-time.After(2 * time.Second):
		t.Fatal("pending request was not released")
	}
}

func TestClientEvents(t *testing.T) {
	fb := newFakeBridge(t, func(req incoming) *reply { return &reply{} })
	rec := &fakeRecorder{}
	client, _ := startClient(t, fb, Config{Noise: logger.NewNoiseFilter(), Recorder: rec})
	sc := fb.nextConn(t)

	sc.event(t, EventConnectionUpdate, map[string]any{"connection": "open", "me": "628999:5@s.whatsapp.net"})
	require.Eventually(t, func() bool {
		return client.Self() == "628999:5@s.whatsapp.net"
	}, 2*time.Second, 5*time.Millisecond)

	sc.event(t, EventMessagesUpsert, map[string]any{
		"type": "notify",
		"messages": []map[string]any{{
			"key":              map[string]any{"remoteJid": "628111@s.whatsapp.net", "id": "ABC", "fromMe": false},
			"message":          map[string]any{"conversation": ".ping"},
			"messageTimestamp": 1700000000,
		}},
	})

	select {
	case upsert := <-client.Upserts():
		assert.Equal(t, "notify", upsert.Type)
		require.Len(t, upsert.Messages, 1)
		assert.Equal(t, "ABC", upsert.Messages[0].Key.ID)
	case <-time.After(2 * time.Second):
		t.Fatal("upsert was not delivered")
	}

	sc.event(t, EventError, map[string]any{"message": "Bad MAC"})
	sc.event(t, EventError, map[string]any{"message": "rate-overlimit"})
	require.Eventually(t, func() bool {
		_, dropped := rec.counts()
		return dropped == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestClientUpdatesBioOnOpen(t *testing.T) {
	statuses := make(chan string, 1)
	fb := newFakeBridge(t, func(req incoming) *reply {
		if req.Action == ActionUpdateProfileStatus {
			var p statusParams
			_ = json.Unmarshal(req.Params, &p)
			statuses <- p.Status
		}
		return &reply{}
	})
	_, _ = startClient(t, fb, Config{Bio: "Lynae bot"})
	sc := fb.nextConn(t)

	sc.event(t, EventConnectionUpdate, map[string]any{"connection": "open", "me": "628999@s.whatsapp.net"})

	select {
	case status := <-statuses:
		assert.Equal(t, "Lynae bot", status)
	case <-time.After(2 * time.Second):
		t.Fatal("bio was not updated")
	}
}

func TestClientReconnectsAfterRestart(t *testing.T) {
	fb := newFakeBridge(t, func(req incoming) *reply { return &reply{} })
	rec := &fakeRecorder{}
	client, _ := startClient(t, fb, Config{
		RestartDelay:      10 * time.Millisecond,
		ReconnectInterval: time.Hour,
		Recorder:          rec,
	})

	first := fb.nextConn(t)
	first.event(t, EventConnectionUpdate, map[string]any{"connection": "close", "statusCode": StatusRestartRequired})

	second := fb.nextConn(t)
	require.NotNil(t, second)
	waitConnected(t, client)

	reconnects, _ := rec.counts()
	assert.Equal(t, 1, reconnects)
}

func TestClientStopsWhenLoggedOut(t *testing.T) {
	fb := newFakeBridge(t, func(req incoming) *reply { return &reply{} })
	client, done := startClient(t, fb, Config{})

	sc := fb.nextConn(t)
	sc.event(t, EventConnectionUpdate, map[string]any{"connection": "close", "statusCode": StatusLoggedOut})

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrLoggedOut)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after logout")
	}

	select {
	case _, ok := <-client.Upserts():
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("upserts channel was not closed")
	}
	assert.False(t, client.Connected())
}

func TestConnectionUpdateLoggedOut(t *testing.T) {
	assert.True(t, ConnectionUpdate{StatusCode: 401}.LoggedOut())
	assert.True(t, ConnectionUpdate{Reason: "logged_out"}.LoggedOut())
	assert.False(t, ConnectionUpdate{StatusCode: 515}.LoggedOut())
}
