// Package bridge connects to the WhatsApp session bridge over a websocket
// and exposes it as a transport.Client.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"

	"github.com/harun/lynae/internal/logger"
	"github.com/harun/lynae/pkg/message"
	"github.com/harun/lynae/pkg/transport"
)

var (
	// ErrLoggedOut means the bridge reported the session as revoked. The
	// client does not reconnect after it.
	ErrLoggedOut = errors.New("bridge: session logged out")
	// ErrNotConnected is returned by requests made while no socket is open.
	ErrNotConnected = errors.New("bridge: not connected")
	// ErrTimeout is returned when the bridge does not answer in time.
	ErrTimeout = errors.New("bridge: request timed out")
)

const (
	defaultReconnectInterval = 5 * time.Second
	defaultRestartDelay      = 3 * time.Second
	defaultRequestTimeout    = 30 * time.Second
	handshakeTimeout         = 10 * time.Second
	controlWriteTimeout      = 10 * time.Second
)

// Recorder observes the connection lifecycle.
type Recorder interface {
	SetConnected(connected bool)
	RecordReconnect()
	RecordDropped()
}

// Config configures a Client.
type Config struct {
	URL               string
	Token             string
	ReconnectInterval time.Duration
	RestartDelay      time.Duration
	RequestTimeout    time.Duration
	PingInterval      time.Duration
	// Bio is set as the profile status each time the session opens.
	Bio string
	// Noise filters session error events; nil keeps them all.
	Noise *logger.NoiseFilter
	// Recorder may be nil.
	Recorder Recorder
}

// Client is a transport.Client backed by the session bridge. Requests are
// matched to responses by their echo id.
type Client struct {
	cfg    Config
	dialer *websocket.Dialer

	mu   sync.RWMutex
	conn *websocket.Conn
	self string

	writeMu sync.Mutex

	pendingMu sync.Mutex
	pending   map[string]chan *frame

	queue  *upsertQueue
	logger zerolog.Logger
}

var _ transport.Client = (*Client)(nil)

// New creates a bridge client. Call Run to connect.
func New(cfg Config, logger zerolog.Logger) *Client {
	if cfg.ReconnectInterval <= 0 {
		cfg.ReconnectInterval = defaultReconnectInterval
	}
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	return &Client{
		cfg: cfg,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: handshakeTimeout,
		},
		pending: make(map[string]chan *frame),
		queue:   newUpsertQueue(),
		logger:  logger.With().Str("component", "bridge").Logger(),
	}
}

// Run connects and keeps the connection alive until ctx is cancelled or
// the session is logged out. It closes the Upserts channel on return and
// must be called at most once.
func (c *Client) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.queue.run(ctx)

	for {
		delay, err := c.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrLoggedOut) {
			c.logger.Error().Msg("Session logged out, delete the bridge session and pair again")
			return err
		}

		c.logger.Warn().Err(err).Dur("retry_in", delay).Msg("Bridge connection lost, reconnecting")
		if c.cfg.Recorder != nil {
			c.cfg.Recorder.RecordReconnect()
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// session runs one connection and returns how long to wait before the
// next attempt.
func (c *Client) session(ctx context.Context) (time.Duration, error) {
	conn, err := c.connect(ctx)
	if err != nil {
		return c.cfg.ReconnectInterval, fmt.Errorf("dial bridge: %w", err)
	}

	sessCtx, cancel := context.WithCancel(ctx)
	c.setConn(conn)
	if c.cfg.Recorder != nil {
		c.cfg.Recorder.SetConnected(true)
	}
	defer func() {
		cancel()
		c.setConn(nil)
		_ = conn.Close()
		c.failPending()
		if c.cfg.Recorder != nil {
			c.cfg.Recorder.SetConnected(false)
		}
	}()

	go func() {
		<-sessCtx.Done()
		_ = conn.Close()
	}()
	if c.cfg.PingInterval > 0 {
		go c.pinger(sessCtx, conn)
	}

	c.logger.Info().Str("url", c.cfg.URL).Msg("Bridge connected")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return 0, ctx.Err()
			}
			return c.cfg.ReconnectInterval, fmt.Errorf("read bridge frame: %w", err)
		}
		c.extendDeadline(conn)

		var f frame
		if err := json.Unmarshal(data, &f); err != nil {
			c.logger.Warn().Err(err).Msg("Ignoring malformed bridge frame")
			continue
		}

		if f.isResponse() {
			c.resolve(&f)
			continue
		}

		switch f.Event {
		case EventMessagesUpsert:
			var upsert message.Upsert
			if err := json.Unmarshal(f.Data, &upsert); err != nil {
				c.logger.Warn().Err(err).Msg("Ignoring malformed messages.upsert")
				continue
			}
			c.queue.push(upsert)
		case EventConnectionUpdate:
			var update ConnectionUpdate
			if err := json.Unmarshal(f.Data, &update); err != nil {
				c.logger.Warn().Err(err).Msg("Ignoring malformed connection.update")
				continue
			}
			if done, delay, err := c.handleConnection(ctx, update); done {
				return delay, err
			}
		case EventError:
			c.handleError(f.Data)
		default:
			c.logger.Debug().Str("event", f.Event).Msg("Ignoring bridge event")
		}
	}
}

func (c *Client) connect(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.cfg.Token != "" {
		header.Set("Authorization", "Bearer "+c.cfg.Token)
	}

	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		return nil, err
	}

	if c.cfg.PingInterval > 0 {
		conn.SetPongHandler(func(string) error {
			c.extendDeadline(conn)
			return nil
		})
		c.extendDeadline(conn)
	}
	return conn, nil
}

func (c *Client) extendDeadline(conn *websocket.Conn) {
	if c.cfg.PingInterval > 0 {
		_ = conn.SetReadDeadline(time.Now().Add(2 * c.cfg.PingInterval))
	}
}

func (c *Client) pinger(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(controlWriteTimeout)); err != nil {
				c.logger.Debug().Err(err).Msg("Ping write failed, stopping pinger")
				return
			}
		}
	}
}

// handleConnection reacts to a connection.update. done reports that the
// session is over.
func (c *Client) handleConnection(ctx context.Context, update ConnectionUpdate) (done bool, delay time.Duration, err error) {
	switch update.Connection {
	case "open":
		if update.Me != "" {
			c.mu.Lock()
			c.self = update.Me
			c.mu.Unlock()
		}
		c.logger.Info().Str("me", update.Me).Msg("WhatsApp session open")
		if c.cfg.Bio != "" {
			go func() {
				if err := c.UpdateProfileStatus(ctx, c.cfg.Bio); err != nil {
					c.logger.Warn().Err(err).Msg("Failed to update bot bio")
				}
			}()
		}
	case "connecting":
		c.logger.Info().Msg("WhatsApp session connecting")
	case "close":
		switch {
		case update.LoggedOut():
			return true, 0, ErrLoggedOut
		case update.StatusCode == StatusRestartRequired:
			return true, c.cfg.RestartDelay, fmt.Errorf("session restart required (%d)", update.StatusCode)
		default:
			return true, c.cfg.ReconnectInterval, fmt.Errorf("session closed (%d): %s", update.StatusCode, update.Reason)
		}
	}
	return false, 0, nil
}

func (c *Client) handleError(data json.RawMessage) {
	var ev errorEvent
	_ = json.Unmarshal(data, &ev)

	if c.cfg.Noise != nil && c.cfg.Noise.IsNoiseString(ev.Message) {
		if c.cfg.Recorder != nil {
			c.cfg.Recorder.RecordDropped()
		}
		return
	}
	c.logger.Warn().Str("error", ev.Message).Msg("Bridge reported an error")
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
}

func (c *Client) currentConn() *websocket.Conn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conn
}

// Connected reports whether a socket is open.
func (c *Client) Connected() bool {
	return c.currentConn() != nil
}

func (c *Client) resolve(f *frame) {
	c.pendingMu.Lock()
	ch, ok := c.pending[f.Echo]
	delete(c.pending, f.Echo)
	c.pendingMu.Unlock()

	if !ok {
		c.logger.Debug().Str("echo", f.Echo).Msg("Response for unknown request")
		return
	}
	ch <- f
}

// failPending releases every request still waiting on the closed socket.
func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	for echo, ch := range c.pending {
		close(ch)
		delete(c.pending, echo)
	}
}

// call sends one request and decodes the response data into out (which
// may be nil).
func (c *Client) call(ctx context.Context, action string, params any, out any) error {
	conn := c.currentConn()
	if conn == nil {
		return ErrNotConnected
	}

	echo, err := gonanoid.New()
	if err != nil {
		return fmt.Errorf("generate echo: %w", err)
	}

	ch := make(chan *frame, 1)
	c.pendingMu.Lock()
	c.pending[echo] = ch
	c.pendingMu.Unlock()

	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, echo)
		c.pendingMu.Unlock()
	}()

	data, err := json.Marshal(request{Action: action, Params: params, Echo: echo})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", action, err)
	}

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		return fmt.Errorf("write %s: %w", action, err)
	}

	timer := time.NewTimer(c.cfg.RequestTimeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return ErrNotConnected
		}
		if resp.Status == "failed" || resp.Retcode != 0 {
			return &ResponseError{Action: action, Retcode: resp.Retcode, Message: resp.Message}
		}
		if out != nil && len(resp.Data) > 0 && string(resp.Data) != "null" {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("decode %s response: %w", action, err)
			}
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("%s: %w", action, ErrTimeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}
