package gateway

import (
	"encoding/json"
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"go.uber.org/zap"

	"github.com/kothawaleganesh/signalr-stock-demo/cmd/gateway/internal/hub"
	"github.com/kothawaleganesh/signalr-stock-demo/pkg/hubproto"
)

const (
	maxMessageSize = 512 * 1024
)

// ClientAdapter serves one dashboard connection: it completes the hub
// handshake, then pumps invocations out and pings/close records in.
type ClientAdapter struct {
	conn   net.Conn
	hub    *hub.Hub
	send   chan []byte
	logger *zap.Logger
	id     string

	mu     sync.Mutex
	closed bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

func NewClient(conn net.Conn, h *hub.Hub, logger *zap.Logger, id string) *ClientAdapter {
	if id == "" {
		id = conn.RemoteAddr().String()
	}
	return &ClientAdapter{
		conn:       conn,
		hub:        h,
		send:       make(chan []byte, 256),
		logger:     logger.With(zap.String("client", id)),
		id:         id,
		writeWait:  5 * time.Second,
		pongWait:   30 * time.Second,
		pingPeriod: 15 * time.Second,
	}
}

func (c *ClientAdapter) Start() {
	go c.writePump()
	go c.readPump()
}

func (c *ClientAdapter) ID() string { return c.id }

// Close only closes the send channel; writePump says goodbye and closes conn.
func (c *ClientAdapter) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *ClientAdapter) SendBytes(b []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- b:
	default:
		// Drop message if buffer full (Backpressure)
		c.logger.Debug("Send buffer full, dropping record")
	}
}

func (c *ClientAdapter) readPump() {
	defer func() {
		c.hub.Unregister(c)
	}()

	handshaken := false
	for {
		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

		payload, op, err := c.readFrame()
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("Read ended", zap.Error(err))
			}
			return
		}
		if op == ws.OpClose {
			return
		}
		if op != ws.OpText {
			continue
		}

		records, err := hubproto.Split(payload)
		if err != nil {
			c.logger.Warn("Client sent a partial record", zap.Error(err))
		}

		for _, record := range records {
			if !handshaken {
				if !c.handshake(record) {
					return
				}
				handshaken = true
				c.hub.Register(c)
				continue
			}
			if !c.handle(record) {
				return
			}
		}
	}
}

func (c *ClientAdapter) readFrame() ([]byte, ws.OpCode, error) {
	header, err := ws.ReadHeader(c.conn)
	if err != nil {
		return nil, 0, err
	}

	if header.Length > int64(maxMessageSize) {
		c.logger.Warn("Msg too big", zap.Int64("size", header.Length))
		return nil, 0, io.ErrShortBuffer
	}
	if !header.Fin {
		c.logger.Warn("Client sent fragmented message (not supported)")
		return nil, 0, io.ErrUnexpectedEOF
	}

	payload := make([]byte, header.Length)
	if _, err := io.ReadFull(c.conn, payload); err != nil {
		return nil, 0, err
	}
	if header.Masked {
		ws.Cipher(payload, header.Mask, 0)
	}
	return payload, header.OpCode, nil
}

// handshake validates the protocol request and answers it. False ends the connection.
func (c *ClientAdapter) handshake(record []byte) bool {
	var req hubproto.HandshakeRequest
	if err := json.Unmarshal(record, &req); err != nil {
		c.rejectHandshake("Handshake request is malformed")
		return false
	}
	if req.Protocol != hubproto.ProtocolName || req.Version != hubproto.ProtocolVersion {
		c.rejectHandshake("The protocol '" + req.Protocol + "' is not supported.")
		return false
	}

	c.SendBytes(hubproto.HandshakeOKRecord())
	c.logger.Debug("Handshake complete")
	return true
}

func (c *ClientAdapter) rejectHandshake(reason string) {
	c.logger.Warn("Handshake rejected", zap.String("reason", reason))
	record, err := hubproto.Encode(hubproto.HandshakeResponse{Error: reason})
	if err == nil {
		c.SendBytes(record)
	}
}

// handle processes one post-handshake record. False ends the connection.
func (c *ClientAdapter) handle(record []byte) bool {
	msg, err := hubproto.Decode(record)
	if err != nil {
		c.logger.Warn("Malformed client message", zap.Error(err))
		return true
	}

	switch msg.Type {
	case hubproto.TypePing:
	case hubproto.TypeClose:
		c.logger.Debug("Client closed the connection", zap.String("reason", msg.Error))
		return false
	default:
		// the stock hub exposes no server methods
		c.logger.Debug("Ignoring client message", zap.Int("type", int(msg.Type)), zap.String("target", msg.Target))
	}
	return true
}

func (c *ClientAdapter) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				wsutil.WriteServerText(c.conn, hubproto.CloseRecord("", true))
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerText(c.conn, hubproto.PingRecord()); err != nil {
				return
			}
		}
	}
}
