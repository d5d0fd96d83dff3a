package domain

import (
	"time"

	"github.com/samber/lo"
)

// DeliveryState only advances: sent -> delivered -> read.
type DeliveryState string

const (
	StateSent      DeliveryState = "sent"
	StateDelivered DeliveryState = "delivered"
	StateRead      DeliveryState = "read"
)

func (s DeliveryState) rank() int {
	switch s {
	case StateDelivered:
		return 1
	case StateRead:
		return 2
	default:
		return 0
	}
}

// DeliveryStatus is the receipt ledger entry of one message.
type DeliveryStatus struct {
	MessageID   string
	ChatID      string
	SenderID    UserID
	State       DeliveryState
	CreatedAt   time.Time
	DeliveredAt *time.Time
	ReadAt      *time.Time
}

// NewDeliveryStatus is the ledger entry of a freshly routed envelope.
func NewDeliveryStatus(envelope MessageEnvelope) DeliveryStatus {
	return DeliveryStatus{
		MessageID: envelope.ID,
		ChatID:    envelope.ChatID,
		SenderID:  envelope.Sender.ID,
		State:     StateSent,
		CreatedAt: envelope.CreatedAt,
	}
}

// Deliver applies the delivered transition.
// It reports false, leaving the status untouched, when the message is already delivered or read.
func (s DeliveryStatus) Deliver(at time.Time) (DeliveryStatus, bool) {
	if s.State.rank() >= StateDelivered.rank() {
		return s, false
	}
	s.State = StateDelivered
	s.DeliveredAt = lo.ToPtr(at)
	return s, true
}

// Read applies the read transition. Reading an undelivered message backfills deliveredAt
// with the read time. Read is terminal, reading twice reports false.
func (s DeliveryStatus) Read(at time.Time) (DeliveryStatus, bool) {
	if s.State == StateRead {
		return s, false
	}
	if s.DeliveredAt == nil {
		s.DeliveredAt = lo.ToPtr(at)
	}
	s.State = StateRead
	s.ReadAt = lo.ToPtr(at)
	return s, true
}

// IsUnread tells whether a read transition would change the status.
func (s DeliveryStatus) IsUnread() bool {
	return s.State != StateRead
}

// DeliveryReceipt is produced once per applied transition and forwarded, never stored here.
type DeliveryReceipt struct {
	MessageID     string
	ChatID        string
	SubjectUserID UserID
	State         DeliveryState
	At            time.Time
}

// Receipt describes the transition that brought s to its current state, performed by subject.
func (s DeliveryStatus) Receipt(subject UserID) DeliveryReceipt {
	r := DeliveryReceipt{
		MessageID:     s.MessageID,
		ChatID:        s.ChatID,
		SubjectUserID: subject,
		State:         s.State,
	}
	switch {
	case s.State == StateRead && s.ReadAt != nil:
		r.At = *s.ReadAt
	case s.DeliveredAt != nil:
		r.At = *s.DeliveredAt
	}
	return r
}
