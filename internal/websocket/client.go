package websocket

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	defaultWriteWait = 10 * time.Second

	// Time allowed to read the next message or pong from the peer
	defaultPongWait = 120 * time.Second

	// Maximum message size allowed from peer
	defaultMaxMessageSize = 512 * 1024

	defaultSendBuffer = 256
)

// ClientOptions are the per-connection transport limits.
type ClientOptions struct {
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
	SendBuffer     int
}

func (o ClientOptions) withDefaults() ClientOptions {
	if o.WriteWait <= 0 {
		o.WriteWait = defaultWriteWait
	}
	if o.PongWait <= 0 {
		o.PongWait = defaultPongWait
	}
	if o.MaxMessageSize <= 0 {
		o.MaxMessageSize = defaultMaxMessageSize
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = defaultSendBuffer
	}
	return o
}

// Send pings to peer with this period. Must be less than PongWait.
func (o ClientOptions) pingPeriod() time.Duration {
	return (o.PongWait * 9) / 10
}

// Client is a Peer backed by a gorilla WebSocket connection. Outbound
// messages are queued on a buffered channel drained by writePump; inbound
// messages are read by readPump and handed to the router.
type Client struct {
	id   string
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	opts ClientOptions
	log  *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	wg sync.WaitGroup
}

func NewClient(hub *Hub, conn *websocket.Conn, opts ClientOptions) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	opts = opts.withDefaults()
	id := uuid.New().String()

	return &Client{
		id:     id,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, opts.SendBuffer),
		opts:   opts,
		log:    hub.log.With("clientID", id),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (c *Client) ID() string {
	return c.id
}

func (c *Client) IsOpen() bool {
	return !c.closed.Load()
}

// Send queues payload for delivery. A client whose buffer is full is
// considered too slow and is closed.
func (c *Client) Send(payload []byte) error {
	if c.closed.Load() {
		return ErrClientDisconnected
	}

	select {
	case c.send <- payload:
		return nil
	case <-c.ctx.Done():
		return ErrClientDisconnected
	default:
		c.log.Warn("Send buffer full, closing client")
		c.Close()
		return ErrSendBufferFull
	}
}

// Close marks the client closed and stops both pumps. It is safe to call
// more than once.
func (c *Client) Close() {
	if c.closed.CompareAndSwap(false, true) {
		c.cancel()
		c.log.Debug("Client marked as closed")
	}
}

// Wait blocks until both pumps have returned or ctx is done.
func (c *Client) Wait(ctx context.Context) bool {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		c.log.Warn("Timeout waiting for goroutines to finish", "error", ctx.Err())
		return false
	}
}

func (c *Client) start() {
	c.wg.Add(2)
	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.Close()
		c.hub.disconnect(c)

		if err := c.conn.Close(); err != nil {
			c.log.Debug("Error closing connection", "error", err)
		}
		c.wg.Done()
	}()

	c.conn.SetReadLimit(c.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	c.conn.SetPongHandler(func(string) error {
		if c.closed.Load() {
			return websocket.ErrCloseSent
		}
		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		return nil
	})

	for {
		messageType, payload, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.hub.metrics.RecordError(ConnectionError)
				c.log.Error("WebSocket error", "error", err)
			} else {
				c.log.Debug("WebSocket connection closed", "error", err)
			}
			return
		}
		if c.closed.Load() {
			return
		}

		c.conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		if messageType != websocket.TextMessage {
			c.log.Debug("Ignoring non-text frame", "type", messageType, "size", len(payload))
			continue
		}

		c.hub.router.Handle(payload, c)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.opts.pingPeriod())
	defer func() {
		ticker.Stop()
		c.Close()
		// Unblocks readPump, which then unregisters the client.
		c.conn.Close()
		c.log.Debug("WritePump finished")
		c.wg.Done()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.log.Debug("Error writing message", "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.opts.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Error sending ping", "error", err)
				return
			}

		case <-c.ctx.Done():
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(c.opts.WriteWait))
			return
		}
	}
}
