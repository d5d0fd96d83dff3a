package websocket

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func upgradedPair(t *testing.T) *websocket.Conn {
	accepted := make(chan *websocket.Conn, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		accepted <- ws
	}))
	t.Cleanup(server.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return <-accepted
}

func TestConnection_Send(t *testing.T) {
	req := require.New(t)
	conn := NewConnection(upgradedPair(t), "alice", Options{BufferSize: 1}, logs.GetLoggerFromLevel(slog.LevelDebug))
	req.Equal(domain.ConnectionOpen, conn.State())
	req.NotEmpty(conn.ID())

	// Nothing drains the queue without Serve
	req.NoError(conn.Send([]byte(`{}`)))
	req.ErrorIs(conn.Send([]byte(`{}`)), errors.ErrSendBufferFull)

	req.NoError(conn.Close())
	req.NoError(conn.Close())
	req.Equal(domain.ConnectionClosed, conn.State())
	req.ErrorIs(conn.Send([]byte(`{}`)), errors.ErrConnectionClosed)
}
