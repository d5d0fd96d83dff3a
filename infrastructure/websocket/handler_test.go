package websocket

import (
	"chat-relay/auth"
	"chat-relay/domain"
	"chat-relay/infrastructure/storage"
	"chat-relay/runtime"
	"chat-relay/services"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/gorilla/websocket"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

const (
	secret = "test-secret"
	issuer = "chat-relay"
)

type recordingNotifier struct {
	mu    sync.Mutex
	calls map[domain.UserID][]domain.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, userID domain.UserID, notification domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls[userID] = append(n.calls[userID], notification)
	return nil
}

func (n *recordingNotifier) of(userID domain.UserID) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[userID]
}

type stack struct {
	server   *httptest.Server
	service  *services.DeliveryService
	registry *runtime.Registry
	notifier *recordingNotifier
}

func newStack(t *testing.T) *stack {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	db, err := badger.Open(badger.DefaultOptions("").WithInMemory(true).WithLogger(nil))
	require.NoError(t, err)

	statuses := storage.NewStatusRepository(db, log)
	registry := runtime.NewRegistry(log)
	registry.WithObserver(runtime.NewPresenceTracker(registry, log))
	notifier := &recordingNotifier{calls: make(map[domain.UserID][]domain.Notification)}
	service := services.NewDeliveryService(
		registry,
		runtime.NewRouter(registry, notifier, log, 0),
		runtime.NewDeliveryStateMachine(statuses, registry, log),
		statuses,
		storage.NewMembershipRepository(db, log),
		storage.NewSubscriptionRepository(db, log),
		log,
	)

	handler := NewHandler(service, auth.NewJWTVerifier(secret, issuer), Options{PongTimeout: 5 * time.Second}, nil, log)
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		handler.Shutdown()
		server.Close()
		_ = db.Close()
	})
	return &stack{server: server, service: service, registry: registry, notifier: notifier}
}

func (s *stack) url(token string) string {
	return "ws" + strings.TrimPrefix(s.server.URL, "http") + "/ws?token=" + token
}

func token(t *testing.T, userID domain.UserID) string {
	tok, err := auth.GenerateToken(secret, issuer, userID, string(userID), time.Hour)
	require.NoError(t, err)
	return tok
}

// connect dials as userID and consumes the snapshot, so the user is registered on return.
func (s *stack) connect(t *testing.T, userID domain.UserID) (*websocket.Conn, []any) {
	ws, _, err := websocket.DefaultDialer.Dial(s.url(token(t, userID)), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ws.Close() })
	snapshot := read(t, ws)
	require.Equal(t, "online_users", snapshot["type"])
	users, _ := snapshot["users"].([]any)
	return ws, users
}

func read(t *testing.T, ws *websocket.Conn) map[string]any {
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func write(t *testing.T, ws *websocket.Conn, frame map[string]any) {
	require.NoError(t, ws.WriteJSON(frame))
}

func envelope(id string, sender domain.UserID, content string) domain.MessageEnvelope {
	return domain.MessageEnvelope{
		ID:        id,
		ChatID:    "c1",
		Sender:    domain.Sender{ID: sender, Name: strings.ToUpper(string(sender))},
		Body:      domain.Text{Content: content},
		CreatedAt: time.Now(),
	}
}

func TestHandler_Rejects_Invalid_Credential(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// Given a forged token
	ws, _, err := websocket.DefaultDialer.Dial(s.url("not-a-jwt"), nil)
	req.NoError(err)
	defer func() { _ = ws.Close() }()

	// When reading from the socket
	req.NoError(ws.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err = ws.ReadMessage()

	// Then the server closed it with a policy violation and nobody is online
	req.True(websocket.IsCloseError(err, websocket.ClosePolicyViolation), "got %v", err)
	req.Empty(s.service.OnlineUsers())
}

func TestHandler_Accepts_Bearer_Header(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	header := http.Header{"Authorization": []string{"Bearer " + token(t, "alice")}}
	ws, _, err := websocket.DefaultDialer.Dial(s.url(""), header)
	req.NoError(err)
	defer func() { _ = ws.Close() }()

	req.Equal("online_users", read(t, ws)["type"])
	req.True(s.service.IsOnline("alice"))
}

func TestHandler_Presence_Snapshot_And_Events(t *testing.T) {
	req := require.New(t)
	s := newStack(t)

	// Given alice online
	alice, users := s.connect(t, "alice")
	req.Empty(users)

	// When bob connects
	bob, users := s.connect(t, "bob")

	// Then bob's first frame lists alice and alice hears about bob
	req.Equal([]any{"alice"}, users)
	frame := read(t, alice)
	req.Equal("user_online", frame["type"])
	req.Equal("bob", frame["userId"])

	// When bob leaves
	req.NoError(bob.Close())

	// Then alice hears it
	frame = read(t, alice)
	req.Equal("user_offline", frame["type"])
	req.Equal("bob", frame["userId"])
}

func TestHandler_Live_Message_And_Receipts(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	alice, _ := s.connect(t, "alice")
	bob, _ := s.connect(t, "bob")
	req.Equal("user_online", read(t, alice)["type"])

	// Given a message routed from alice to bob
	result, err := s.service.Route(context.Background(), envelope("m1", "alice", "hi"), []domain.UserID{"bob"})
	req.NoError(err)
	req.Equal([]domain.UserID{"bob"}, result.Live)
	req.Empty(s.notifier.of("bob"))

	// Then bob gets it with a sound hint
	frame := read(t, bob)
	req.Equal("new_message", frame["type"])
	req.Equal(true, frame["playSound"])
	message := frame["message"].(map[string]any)
	req.Equal("m1", message["_id"])
	req.Equal("hi", message["content"])

	// When bob acknowledges delivery then reads it
	write(t, bob, map[string]any{"type": "message_delivered", "messageId": "m1"})
	delivered := read(t, alice)
	write(t, bob, map[string]any{"type": "message_read", "messageId": "m1"})
	readFrame := read(t, alice)

	// Then alice is told both, in order
	req.Equal("message_delivered", delivered["type"])
	req.Equal("m1", delivered["messageId"])
	req.Equal("message_read", readFrame["type"])
	req.Equal("m1", readFrame["messageId"])
}

func TestHandler_Offline_Recipient_Falls_Back(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	s.connect(t, "alice")

	// When alice writes to carol who has no socket
	result, err := s.service.Route(context.Background(), envelope("m2", "alice", "are you there?"), []domain.UserID{"carol"})

	// Then carol is notified instead
	req.NoError(err)
	req.Equal([]domain.UserID{"carol"}, result.Fallback)
	notifications := s.notifier.of("carol")
	req.Len(notifications, 1)
	req.Equal("ALICE", notifications[0].Title)
	req.Equal("are you there?", notifications[0].Body)
}

func TestHandler_Typing_Reaches_Chat_Members(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	req.NoError(s.service.SetChatMembers("c1", []domain.UserID{"alice", "bob"}))
	alice, _ := s.connect(t, "alice")
	bob, _ := s.connect(t, "bob")
	req.Equal("user_online", read(t, alice)["type"])

	// When alice types
	write(t, alice, map[string]any{"type": "typing", "chatId": "c1", "isTyping": true})

	// Then bob sees alice typing
	frame := read(t, bob)
	req.Equal("typing", frame["type"])
	req.Equal("alice", frame["userId"])
	req.Equal(true, frame["isTyping"])
}

func TestHandler_Superseded_Connection_Keeps_User_Online(t *testing.T) {
	req := require.New(t)
	s := newStack(t)
	alice, _ := s.connect(t, "alice")
	first, _ := s.connect(t, "bob")
	req.Equal("user_online", read(t, alice)["type"])

	// When bob reconnects from another tab
	second, users := s.connect(t, "bob")
	req.Equal([]any{"alice"}, users)

	// Then the first socket is closed and bob is still online
	req.NoError(first.SetReadDeadline(time.Now().Add(2 * time.Second)))
	_, _, err := first.ReadMessage()
	req.Error(err)
	req.True(s.service.IsOnline("bob"))

	// And new frames reach the second socket
	_, err = s.service.Route(context.Background(), envelope("m3", "alice", "still here"), []domain.UserID{"bob"})
	req.NoError(err)
	req.Equal("new_message", read(t, second)["type"])
}
