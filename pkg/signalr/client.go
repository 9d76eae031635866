// Package signalr is a SignalR hub client speaking the JSON hub protocol over
// WebSockets. It negotiates, keeps the connection alive and reconnects on
// its own; callers only start, stop and register handlers.
package signalr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/pkg/config"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
)

const (
	writeWait = 10 * time.Second
	// maxRecordSize bounds a record split across frames
	maxRecordSize = 1 << 20
)

var (
	ErrNotDisconnected = errors.New("signalr: client is not in the Disconnected state")
	ErrStopped         = errors.New("signalr: client stopped while connecting")
	ErrHandshake       = errors.New("signalr: handshake rejected")
)

// Handler receives the raw arguments of one server invocation.
type Handler func(args []json.RawMessage)

// closeError is returned by serve when the hub sent a Close message.
type closeError struct {
	reason         string
	allowReconnect bool
}

func (e *closeError) Error() string {
	if e.reason == "" {
		return "signalr: server closed the connection"
	}
	return "signalr: server closed the connection: " + e.reason
}

type Client struct {
	cfg        config.HubConfig
	logger     *zap.Logger
	dialer     *websocket.Dialer
	httpClient *http.Client

	mu        sync.Mutex
	state     State
	handlers  map[string][]Handler
	listeners []func(from, to State)
	conn      *websocket.Conn
	cancel    context.CancelFunc
	done      chan struct{}

	writeMu sync.Mutex
}

func NewClient(cfg config.HubConfig, logger *zap.Logger) *Client {
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = 15 * time.Second
	}
	if cfg.ServerTimeout <= 0 {
		cfg.ServerTimeout = 30 * time.Second
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = 15 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		logger:     logger.With(zap.String("hub", cfg.URL)),
		dialer:     &websocket.Dialer{Proxy: http.ProxyFromEnvironment, HandshakeTimeout: cfg.HandshakeTimeout},
		httpClient: &http.Client{Timeout: cfg.HandshakeTimeout},
		handlers:   make(map[string][]Handler),
	}

	if cfg.WithCredentials {
		// cookiejar.New only fails on a bad PublicSuffixList
		jar, _ := cookiejar.New(nil)
		c.dialer.Jar = jar
		c.httpClient.Jar = jar
	}
	return c
}

// On registers h for invocations of target. Targets match case-insensitively.
func (c *Client) On(target string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := strings.ToLower(target)
	c.handlers[key] = append(c.handlers[key], h)
}

// OnStateChange registers fn to observe every state transition.
func (c *Client) OnStateChange(fn func(from, to State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start connects to the hub. ctx bounds the initial connect only; once
// connected the session lives until Stop or until reconnecting gives up.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != Disconnected {
		c.mu.Unlock()
		return ErrNotDisconnected
	}
	session, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	notify := c.setStateLocked(Connecting)
	c.mu.Unlock()
	notify()

	dialCtx, stopDial := context.WithCancel(ctx)
	stopAfter := context.AfterFunc(session, stopDial)
	conn, pending, err := c.connect(dialCtx)
	stopAfter()
	stopDial()

	c.mu.Lock()
	if session.Err() != nil {
		c.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		close(done)
		return ErrStopped
	}
	if err != nil {
		cancel()
		notify = c.setStateLocked(Disconnected)
		c.mu.Unlock()
		close(done)
		notify()
		return err
	}
	c.conn = conn
	notify = c.setStateLocked(Connected)
	c.mu.Unlock()
	notify()

	go c.run(session, conn, pending, done)
	return nil
}

// Stop closes the connection and cancels any pending reconnect. Stopping a
// disconnected client is a no-op. ctx bounds the wait for background work.
func (c *Client) Stop(ctx context.Context) error {
	c.mu.Lock()
	if c.state == Disconnected {
		c.mu.Unlock()
		return nil
	}
	conn, done := c.conn, c.done
	c.conn = nil
	c.cancel()
	notify := c.setStateLocked(Disconnected)
	c.mu.Unlock()
	notify()

	var closeErr error
	if conn != nil {
		closeErr = c.write(conn, hubproto.CloseRecord("", false))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
		conn.Close()
	}

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	if closeErr != nil {
		return fmt.Errorf("signalr: send close: %w", closeErr)
	}
	return nil
}

// setStateLocked must be called with c.mu held. The returned func notifies
// listeners and must be called after c.mu is released.
func (c *Client) setStateLocked(to State) func() {
	from := c.state
	if from == to {
		return func() {}
	}
	c.state = to
	c.logger.Debug("Hub connection state changed", zap.Stringer("from", from), zap.Stringer("to", to))

	listeners := make([]func(from, to State), len(c.listeners))
	copy(listeners, c.listeners)
	return func() {
		for _, fn := range listeners {
			fn(from, to)
		}
	}
}

// connect negotiates, dials and completes the handshake. Bytes that followed
// the handshake response are returned for serve to pick up.
func (c *Client) connect(ctx context.Context) (*websocket.Conn, []byte, error) {
	hubURL, token := c.cfg.URL, ""
	if c.cfg.WithCredentials {
		token = c.cfg.AccessToken
	}

	id := ""
	if !c.cfg.SkipNegotiation {
		nr, redirected, tok, err := c.negotiate(ctx, hubURL, token)
		if err != nil {
			return nil, nil, err
		}
		hubURL, token, id = redirected, tok, nr.Token()
	}

	wsURL, err := webSocketURL(hubURL, id)
	if err != nil {
		return nil, nil, err
	}

	conn, _, err := c.dialer.DialContext(ctx, wsURL, c.headers(token))
	if err != nil {
		return nil, nil, fmt.Errorf("signalr: dial %s: %w", wsURL, err)
	}

	// Stop cancels ctx; closing the socket unblocks the handshake read
	stopClose := context.AfterFunc(ctx, func() { conn.Close() })
	pending, err := c.handshake(conn)
	if !stopClose() {
		return nil, nil, fmt.Errorf("signalr: handshake: %w", ctx.Err())
	}
	if err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, pending, nil
}

func (c *Client) handshake(conn *websocket.Conn) ([]byte, error) {
	deadline := time.Now().Add(c.cfg.HandshakeTimeout)
	conn.SetWriteDeadline(deadline)
	if err := conn.WriteMessage(websocket.TextMessage, hubproto.HandshakeRecord()); err != nil {
		return nil, fmt.Errorf("signalr: send handshake: %w", err)
	}

	conn.SetReadDeadline(deadline)
	var buf []byte
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("signalr: read handshake: %w", err)
		}
		buf = append(buf, data...)

		i := bytes.IndexByte(buf, hubproto.RecordSeparator)
		if i < 0 {
			continue
		}

		var resp hubproto.HandshakeResponse
		if err := json.Unmarshal(buf[:i], &resp); err != nil {
			return nil, fmt.Errorf("signalr: decode handshake: %w", err)
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrHandshake, resp.Error)
		}

		conn.SetWriteDeadline(time.Time{})
		return buf[i+1:], nil
	}
}

func (c *Client) headers(token string) http.Header {
	h := http.Header{}
	if token != "" {
		h.Set("Authorization", "Bearer "+token)
	}
	return h
}

// run owns one session: it serves the live connection and reconnects after
// unexpected losses until the session is cancelled or reconnecting gives up.
func (c *Client) run(session context.Context, conn *websocket.Conn, pending []byte, done chan struct{}) {
	defer close(done)

	for {
		err := c.serve(session, conn, pending)
		conn.Close()
		if session.Err() != nil {
			return
		}

		allow := len(c.cfg.ReconnectDelays) > 0
		var ce *closeError
		if errors.As(err, &ce) && !ce.allowReconnect {
			allow = false
		}
		if !allow {
			c.logger.Warn("Hub connection closed", zap.Error(err))
			c.finish(session)
			return
		}

		c.logger.Warn("Hub connection lost, reconnecting", zap.Error(err))
		c.mu.Lock()
		if session.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.conn = nil
		notify := c.setStateLocked(Reconnecting)
		c.mu.Unlock()
		notify()

		conn, pending = c.reconnect(session)
		if conn == nil {
			return
		}
	}
}

func (c *Client) reconnect(session context.Context) (*websocket.Conn, []byte) {
	for i, delay := range c.cfg.ReconnectDelays {
		if delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-session.Done():
				t.Stop()
				return nil, nil
			case <-t.C:
			}
		}

		conn, pending, err := c.connect(session)
		if err != nil {
			if session.Err() != nil {
				return nil, nil
			}
			c.logger.Warn("Reconnect attempt failed", zap.Int("attempt", i+1), zap.Error(err))
			continue
		}

		c.mu.Lock()
		if session.Err() != nil {
			c.mu.Unlock()
			conn.Close()
			return nil, nil
		}
		c.conn = conn
		notify := c.setStateLocked(Connected)
		c.mu.Unlock()
		notify()

		c.logger.Info("Reconnected to hub", zap.Int("attempt", i+1))
		return conn, pending
	}

	c.logger.Error("Giving up on reconnecting", zap.Int("attempts", len(c.cfg.ReconnectDelays)))
	c.finish(session)
	return nil, nil
}

// finish moves a still-current session to Disconnected.
func (c *Client) finish(session context.Context) {
	c.mu.Lock()
	if session.Err() != nil {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.cancel()
	notify := c.setStateLocked(Disconnected)
	c.mu.Unlock()
	notify()
}

// serve reads until the connection fails or the hub closes it. buf holds
// bytes not yet split into records; a record may span several frames.
func (c *Client) serve(session context.Context, conn *websocket.Conn, buf []byte) error {
	pingCtx, stopPing := context.WithCancel(session)
	defer stopPing()
	go c.keepAlive(pingCtx, conn)

	for {
		records, rest := hubproto.SplitPartial(buf)
		for _, record := range records {
			if err := c.dispatch(record); err != nil {
				return err
			}
		}
		if len(rest) > maxRecordSize {
			return fmt.Errorf("signalr: record exceeds %d bytes", maxRecordSize)
		}
		buf = append([]byte(nil), rest...)

		conn.SetReadDeadline(time.Now().Add(c.cfg.ServerTimeout))
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("signalr: read: %w", err)
		}
		buf = append(buf, data...)
	}
}

func (c *Client) dispatch(record []byte) error {
	msg, err := hubproto.Decode(record)
	if err != nil {
		c.logger.Warn("Malformed hub message", zap.Error(err))
		return nil
	}

	switch msg.Type {
	case hubproto.TypeInvocation:
		c.invoke(msg)
	case hubproto.TypePing:
	case hubproto.TypeClose:
		return &closeError{reason: msg.Error, allowReconnect: msg.AllowReconnect}
	default:
		c.logger.Debug("Ignoring hub message", zap.Int("type", int(msg.Type)))
	}
	return nil
}

func (c *Client) invoke(msg hubproto.Message) {
	c.mu.Lock()
	handlers := c.handlers[strings.ToLower(msg.Target)]
	c.mu.Unlock()

	if len(handlers) == 0 {
		c.logger.Debug("No handler for hub method", zap.String("target", msg.Target))
		return
	}
	for _, h := range handlers {
		c.call(msg.Target, h, msg.Arguments)
	}
}

func (c *Client) call(target string, h Handler, args []json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("Hub handler panicked", zap.String("target", target), zap.Any("panic", r))
		}
	}()
	h(args)
}

func (c *Client) keepAlive(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.cfg.KeepAliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.write(conn, hubproto.PingRecord()); err != nil {
				c.logger.Debug("Ping failed", zap.Error(err))
				return
			}
		}
	}
}

func (c *Client) write(conn *websocket.Conn, record []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, record)
}
