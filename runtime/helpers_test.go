package runtime

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// fakeConn stands in for a socket: frames are decoded and kept in arrival order.
type fakeConn struct {
	id        string
	userID    domain.UserID
	createdAt time.Time

	mu       sync.Mutex
	frames   []map[string]any
	closed   bool
	failSend bool
	// closeGate, when set, holds Close until it is closed, like a socket stuck on a slow peer.
	closeGate chan struct{}
}

func newFakeConn(userID domain.UserID) *fakeConn {
	return &fakeConn{id: uuid.NewString(), userID: userID, createdAt: time.Now()}
}

func (c *fakeConn) ID() string            { return c.id }
func (c *fakeConn) UserID() domain.UserID { return c.userID }
func (c *fakeConn) CreatedAt() time.Time  { return c.createdAt }

func (c *fakeConn) State() domain.ConnectionState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return domain.ConnectionClosed
	}
	return domain.ConnectionOpen
}

func (c *fakeConn) Send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.ErrConnectionClosed
	}
	if c.failSend {
		return errors.ErrSendBufferFull
	}
	var decoded map[string]any
	if err := json.Unmarshal(frame, &decoded); err != nil {
		return err
	}
	c.frames = append(c.frames, decoded)
	return nil
}

func (c *fakeConn) Close() error {
	if c.closeGate != nil {
		<-c.closeGate
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) breakWrites() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failSend = true
}

func (c *fakeConn) isClosed() bool {
	return c.State() == domain.ConnectionClosed
}

func (c *fakeConn) all() []map[string]any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]map[string]any(nil), c.frames...)
}

func (c *fakeConn) ofType(frameType string) []map[string]any {
	var res []map[string]any
	for _, f := range c.all() {
		if f["type"] == frameType {
			res = append(res, f)
		}
	}
	return res
}

func textEnvelope(id, chatID string, sender domain.UserID, content string) domain.MessageEnvelope {
	return domain.MessageEnvelope{
		ID:        id,
		ChatID:    chatID,
		Sender:    domain.Sender{ID: sender, Name: "Name of " + string(sender)},
		Body:      domain.Text{Content: content},
		CreatedAt: time.Now(),
	}
}
