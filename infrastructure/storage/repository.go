//go:generate go run go.uber.org/mock/mockgen -source=repository.go -destination=../../mocks/mock_repository.go -package=mocks
package storage

import (
	"chat-relay/domain"
)

// IStatusRepository is the receipt ledger.
// Transition is atomic per message: apply sees the committed status and its result is written back
// only when it reports a change.
type IStatusRepository interface {
	Record(status domain.DeliveryStatus) error
	Get(messageID string) (domain.DeliveryStatus, error)
	Transition(messageID string, apply func(domain.DeliveryStatus) (domain.DeliveryStatus, bool)) (domain.DeliveryStatus, bool, error)
	ListByChat(chatID string) ([]domain.DeliveryStatus, error)
}

type IMembershipRepository interface {
	SetMembers(chatID string, members []domain.UserID) error
	Members(chatID string) ([]domain.UserID, error)
}

// ISubscriptionRepository keeps Web Push endpoints. An endpoint belongs to at most one user.
type ISubscriptionRepository interface {
	Save(userID domain.UserID, subscription domain.PushSubscription) error
	Remove(userID domain.UserID, endpoint string) error
	Active(userID domain.UserID) ([]domain.PushSubscription, error)
	Deactivate(endpoint string) error
}
