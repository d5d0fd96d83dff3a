package websocket

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	defaultBufferSize   = 64
	defaultWriteTimeout = 10 * time.Second
	defaultPongTimeout  = 60 * time.Second
	defaultMaxFrameSize = 64 * 1024
)

type Options struct {
	BufferSize   int
	WriteTimeout time.Duration
	PongTimeout  time.Duration
	MaxFrameSize int64
}

func (o Options) withDefaults() Options {
	if o.BufferSize <= 0 {
		o.BufferSize = defaultBufferSize
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = defaultWriteTimeout
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = defaultPongTimeout
	}
	if o.MaxFrameSize <= 0 {
		o.MaxFrameSize = defaultMaxFrameSize
	}
	return o
}

// Connection wraps one gorilla socket.
// Only the write pump writes data frames, Send just queues them.
type Connection struct {
	id        string
	userID    domain.UserID
	createdAt time.Time
	ws        *websocket.Conn
	outbound  chan []byte
	done      chan struct{}
	closeOnce sync.Once
	state     atomic.Int32
	options   Options
	log       *slog.Logger
}

var _ contract.Connection = (*Connection)(nil)

func NewConnection(ws *websocket.Conn, userID domain.UserID, options Options, log *slog.Logger) *Connection {
	options = options.withDefaults()
	return &Connection{
		id:        uuid.NewString(),
		userID:    userID,
		createdAt: time.Now(),
		ws:        ws,
		outbound:  make(chan []byte, options.BufferSize),
		done:      make(chan struct{}),
		options:   options,
		log:       log.With("user_id", userID),
	}
}

func (c *Connection) ID() string                    { return c.id }
func (c *Connection) UserID() domain.UserID         { return c.userID }
func (c *Connection) CreatedAt() time.Time          { return c.createdAt }
func (c *Connection) State() domain.ConnectionState { return domain.ConnectionState(c.state.Load()) }

// Send never blocks. A full buffer is reported so the registry can drop a slow reader.
func (c *Connection) Send(frame []byte) error {
	if c.State() != domain.ConnectionOpen {
		return errors.ErrConnectionClosed
	}
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	case c.outbound <- frame:
		return nil
	default:
		return errors.ErrSendBufferFull
	}
}

// Close sends a normal closure and drops the socket. Queued frames are discarded.
func (c *Connection) Close() error {
	return c.closeWith(websocket.CloseNormalClosure, "")
}

func (c *Connection) closeWith(code int, reason string) error {
	var err error
	c.closeOnce.Do(func() {
		c.state.Store(int32(domain.ConnectionClosing))
		close(c.done)
		deadline := time.Now().Add(c.options.WriteTimeout)
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		err = c.ws.Close()
		c.state.Store(int32(domain.ConnectionClosed))
	})
	return err
}

// Serve runs the write pump and reads frames until the peer leaves, the heartbeat
// times out, ctx is done or Close is called. The connection is closed on return.
func (c *Connection) Serve(ctx context.Context, onFrame func(data []byte)) error {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-c.done:
		}
	}()
	defer func() {
		_ = c.Close()
		wg.Wait()
	}()

	c.ws.SetReadLimit(c.options.MaxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.options.PongTimeout))
	})

	for {
		messageType, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return err
			}
			return nil
		}
		if messageType != websocket.TextMessage {
			c.log.Debug("Ignoring non text frame", "conn_id", c.id, "message_type", messageType)
			continue
		}
		onFrame(data)
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(c.options.PongTimeout * 9 / 10)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case frame := <-c.outbound:
			_ = c.ws.SetWriteDeadline(time.Now().Add(c.options.WriteTimeout))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.Debug("Write failed", "conn_id", c.id, "error", err)
				_ = c.Close()
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.options.WriteTimeout)
			if err := c.ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.log.Debug("Ping failed", "conn_id", c.id, "error", err)
				_ = c.Close()
				return
			}
		}
	}
}
