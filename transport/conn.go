package transport

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"pulsex/domain/event"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 << 10
)

// Conn owns one WebSocket and its buffered outbound queue. It is the
// connection's EventSink: server events are encoded and queued without
// blocking; a full queue means the consumer is too slow and the event is
// dropped rather than stalling the hub.
type Conn struct {
	ws  *websocket.Conn
	log *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func newConn(ws *websocket.Conn, sendBufferSize int, log *slog.Logger) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		log:  log,
	}
}

// Consume implements contract.EventSink. The broadcast bus may still
// hold this sink after the connection has been torn down; enqueue and
// close are serialized on the mutex so a late event is refused with an
// error instead of hitting a closed channel.
func (c *Conn) Consume(_ context.Context, e event.ServerEvent) error {
	payload, err := event.Encode(e)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return fmt.Errorf("connection closed, dropping %s", e.EventName())
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return fmt.Errorf("send buffer full, dropping %s", e.EventName())
	}
}

// close shuts the outbound queue exactly once; the write pump then
// closes the socket. Safe to call concurrently with Consume.
func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// readPump reads frames until the peer goes away, handing each one to
// handle in arrival order. That single loop is what serializes all
// events of one connection.
func (c *Conn) readPump(ctx context.Context, handle func(ctx context.Context, raw []byte)) {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.log.Debug("read loop ended", "error", err)
			}
			return
		}
		handle(ctx, raw)
	}
}

// writePump owns all writes to the socket: queued events plus the
// transport-level keepalive ping.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.ws.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
