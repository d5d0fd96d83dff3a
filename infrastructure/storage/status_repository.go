package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
)

const maxTransitionAttempts = 3

type diskStatus struct {
	MessageID   string     `cbor:"1,keyasint"`
	ChatID      string     `cbor:"2,keyasint"`
	SenderID    string     `cbor:"3,keyasint"`
	State       string     `cbor:"4,keyasint"`
	CreatedAt   time.Time  `cbor:"5,keyasint"`
	DeliveredAt *time.Time `cbor:"6,keyasint,omitempty"`
	ReadAt      *time.Time `cbor:"7,keyasint,omitempty"`
}

type StatusRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var _ IStatusRepository = (*StatusRepository)(nil)

func NewStatusRepository(db *badger.DB, log *slog.Logger) *StatusRepository {
	return &StatusRepository{db: db, log: log}
}

func statusKey(messageID string) []byte {
	return []byte("status:" + messageID)
}

// chatPrefix is "chat:{len(chat_id)}:{chat_id}:msg:" so that chat "a" never scans chat "a:msg:x".
func chatPrefix(chatID string) []byte {
	return []byte(fmt.Sprintf("chat:%d:%s:msg:", len(chatID), chatID))
}

// chatIndexKey is chatPrefix followed by "{timestamp_padded}:{message_id}".
// The 19-digit padding keeps the per-chat index in chronological order.
func chatIndexKey(status domain.DeliveryStatus) []byte {
	return append(chatPrefix(status.ChatID), fmt.Sprintf("%019d:%s",
		status.CreatedAt.UnixNano(),
		status.MessageID,
	)...)
}

// Record stores a fresh ledger entry and indexes it under its chat.
// Recording a message that already exists keeps the stored status.
func (s *StatusRepository) Record(status domain.DeliveryStatus) error {
	data, err := marshal(fromDeliveryStatus(status))
	if err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(statusKey(status.MessageID))
		switch {
		case err == nil:
			s.log.Debug("Status already recorded", "message_id", status.MessageID)
			return nil
		case !stderrors.Is(err, badger.ErrKeyNotFound):
			return err
		}
		if err := txn.Set(statusKey(status.MessageID), data); err != nil {
			return err
		}
		return txn.Set(chatIndexKey(status), []byte(status.MessageID))
	})
}

func (s *StatusRepository) Get(messageID string) (domain.DeliveryStatus, error) {
	var status domain.DeliveryStatus
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		status, err = getStatus(txn, messageID)
		return err
	})
	return status, err
}

// Transition reads, applies and writes back in a single transaction.
// Badger reports a conflict when another transaction committed the same key first,
// in which case apply runs again on the newer status.
func (s *StatusRepository) Transition(messageID string, apply func(domain.DeliveryStatus) (domain.DeliveryStatus, bool)) (domain.DeliveryStatus, bool, error) {
	for attempt := 1; attempt <= maxTransitionAttempts; attempt++ {
		var result domain.DeliveryStatus
		var applied bool
		err := s.db.Update(func(txn *badger.Txn) error {
			current, err := getStatus(txn, messageID)
			if err != nil {
				return err
			}
			result, applied = apply(current)
			if !applied {
				return nil
			}
			data, err := marshal(fromDeliveryStatus(result))
			if err != nil {
				return err
			}
			return txn.Set(statusKey(messageID), data)
		})
		if stderrors.Is(err, badger.ErrConflict) {
			s.log.Debug("Transition conflict, retrying", "message_id", messageID, "attempt", attempt)
			continue
		}
		if err != nil {
			return domain.DeliveryStatus{}, false, err
		}
		return result, applied, nil
	}
	return domain.DeliveryStatus{}, false, fmt.Errorf("%w: %s", errors.ErrTransitionConflict, messageID)
}

// ListByChat returns every recorded status of a chat, oldest first.
func (s *StatusRepository) ListByChat(chatID string) ([]domain.DeliveryStatus, error) {
	var statuses []domain.DeliveryStatus
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := chatPrefix(chatID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			messageID, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			status, err := getStatus(txn, string(messageID))
			if stderrors.Is(err, errors.ErrMessageNotFound) {
				s.log.Warn("Dangling chat index entry", "chat_id", chatID, "message_id", string(messageID))
				continue
			}
			if err != nil {
				return err
			}
			statuses = append(statuses, status)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error during chat scan: %w", err)
	}
	return statuses, nil
}

func getStatus(txn *badger.Txn, messageID string) (domain.DeliveryStatus, error) {
	item, err := txn.Get(statusKey(messageID))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.DeliveryStatus{}, fmt.Errorf("%w: %s", errors.ErrMessageNotFound, messageID)
	}
	if err != nil {
		return domain.DeliveryStatus{}, err
	}
	var disk diskStatus
	err = item.Value(func(v []byte) error {
		return unmarshal(v, &disk)
	})
	if err != nil {
		return domain.DeliveryStatus{}, fmt.Errorf("failed to unmarshal status: %w", err)
	}
	return toDeliveryStatus(disk), nil
}

func fromDeliveryStatus(s domain.DeliveryStatus) diskStatus {
	return diskStatus{
		MessageID:   s.MessageID,
		ChatID:      s.ChatID,
		SenderID:    s.SenderID.String(),
		State:       string(s.State),
		CreatedAt:   s.CreatedAt.UTC(),
		DeliveredAt: utcPtr(s.DeliveredAt),
		ReadAt:      utcPtr(s.ReadAt),
	}
}

func toDeliveryStatus(d diskStatus) domain.DeliveryStatus {
	return domain.DeliveryStatus{
		MessageID:   d.MessageID,
		ChatID:      d.ChatID,
		SenderID:    domain.UserID(d.SenderID),
		State:       domain.DeliveryState(d.State),
		CreatedAt:   d.CreatedAt,
		DeliveredAt: d.DeliveredAt,
		ReadAt:      d.ReadAt,
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
