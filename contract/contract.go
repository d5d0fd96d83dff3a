//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"reflect"
	"time"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

// Connection is one live transport session owned by the registry.
// Send must not block: it queues the frame or fails.
// Close is idempotent and does not wait for queued frames to be written.
type Connection interface {
	ID() string
	UserID() domain.UserID
	State() domain.ConnectionState
	CreatedAt() time.Time
	Send(frame []byte) error
	Close() error
}

// IRegistry is the single authoritative map from user to live connection.
type IRegistry interface {
	Register(userID domain.UserID, conn Connection)
	Unregister(userID domain.UserID, conn Connection) bool
	Send(userID domain.UserID, frame event.Outbound) bool
	Broadcast(frame event.Outbound, exclude ...domain.UserID)
	IsOnline(userID domain.UserID) bool
	OnlineUsers() []domain.UserID
}

// IPresenceObserver is told about registry mutations.
// Seed runs while the registration is still exclusive, before any other frame can reach conn.
type IPresenceObserver interface {
	Seed(conn Connection, peers []domain.UserID)
	Observe(evt domain.PresenceEvent)
}

// INotifier is the offline fallback. Failures are never fatal to the caller.
type INotifier interface {
	Notify(ctx context.Context, userID domain.UserID, notification domain.Notification) error
}

// IIdentityVerifier turns a bearer credential into a user identity.
type IIdentityVerifier interface {
	Verify(token string) (domain.UserID, error)
}

type IRouter interface {
	Route(ctx context.Context, envelope domain.MessageEnvelope, recipients []domain.UserID) domain.RouteResult
}

type IDeliveryStateMachine interface {
	MarkDelivered(ctx context.Context, messageID string, subject domain.UserID, at time.Time) (domain.DeliveryStatus, bool, error)
	MarkRead(ctx context.Context, messageID string, subject domain.UserID, at time.Time) (domain.DeliveryStatus, bool, error)
	MarkChatRead(ctx context.Context, chatID string, readerID domain.UserID, candidateIDs []string, at time.Time) ([]string, error)
}
