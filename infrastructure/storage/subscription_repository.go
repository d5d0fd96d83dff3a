package storage

import (
	"chat-relay/domain"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/blake2b"
)

type diskSubscription struct {
	Endpoint  string    `cbor:"1,keyasint"`
	P256dh    string    `cbor:"2,keyasint"`
	Auth      string    `cbor:"3,keyasint"`
	UserAgent string    `cbor:"4,keyasint,omitempty"`
	Active    bool      `cbor:"5,keyasint"`
	UpdatedAt time.Time `cbor:"6,keyasint"`
}

type SubscriptionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var _ ISubscriptionRepository = (*SubscriptionRepository)(nil)

func NewSubscriptionRepository(db *badger.DB, log *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, log: log}
}

// endpointHash keeps keys short and free of the ':' and '/' found in push URLs.
func endpointHash(endpoint string) string {
	sum := blake2b.Sum256([]byte(endpoint))
	return hex.EncodeToString(sum[:])
}

// subscriptionPrefix is "sub:{len(user_id)}:{user_id}:". User ids are opaque and may contain ':',
// the length keeps one user's prefix from matching another user's keys.
func subscriptionPrefix(userID domain.UserID) []byte {
	return []byte(fmt.Sprintf("sub:%d:%s:", len(userID), userID))
}

func subscriptionKey(userID domain.UserID, hash string) []byte {
	return append(subscriptionPrefix(userID), hash...)
}

func subscriptionIndexKey(hash string) []byte {
	return []byte("subidx:" + hash)
}

// Save upserts a subscription and marks it active.
// An endpoint previously owned by another user moves to userID.
func (s *SubscriptionRepository) Save(userID domain.UserID, subscription domain.PushSubscription) error {
	subscription.Active = true
	if subscription.UpdatedAt.IsZero() {
		subscription.UpdatedAt = time.Now()
	}
	data, err := marshal(fromPushSubscription(subscription))
	if err != nil {
		return err
	}
	hash := endpointHash(subscription.Endpoint)

	return s.db.Update(func(txn *badger.Txn) error {
		owner, err := indexOwner(txn, hash)
		if err != nil {
			return err
		}
		if owner != "" && owner != userID {
			s.log.Info("Push endpoint changed owner", "from", owner, "to", userID)
			if err := txn.Delete(subscriptionKey(owner, hash)); err != nil {
				return err
			}
		}
		if err := txn.Set(subscriptionKey(userID, hash), data); err != nil {
			return err
		}
		return txn.Set(subscriptionIndexKey(hash), []byte(userID))
	})
}

// Remove deletes the endpoint only when userID owns it.
func (s *SubscriptionRepository) Remove(userID domain.UserID, endpoint string) error {
	hash := endpointHash(endpoint)
	return s.db.Update(func(txn *badger.Txn) error {
		owner, err := indexOwner(txn, hash)
		if err != nil {
			return err
		}
		if owner != userID {
			return nil
		}
		if err := txn.Delete(subscriptionKey(userID, hash)); err != nil {
			return err
		}
		return txn.Delete(subscriptionIndexKey(hash))
	})
}

func (s *SubscriptionRepository) Active(userID domain.UserID) ([]domain.PushSubscription, error) {
	var subscriptions []domain.PushSubscription
	err := s.db.View(func(txn *badger.Txn) error {
		prefix := subscriptionPrefix(userID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var disk diskSubscription
			err := it.Item().Value(func(v []byte) error {
				return unmarshal(v, &disk)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal subscription: %w", err)
			}
			if disk.Active {
				subscriptions = append(subscriptions, toPushSubscription(disk))
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return subscriptions, nil
}

// Deactivate flags an endpoint the push service reported as gone. Unknown endpoints are ignored.
func (s *SubscriptionRepository) Deactivate(endpoint string) error {
	hash := endpointHash(endpoint)
	return s.db.Update(func(txn *badger.Txn) error {
		owner, err := indexOwner(txn, hash)
		if err != nil || owner == "" {
			return err
		}
		item, err := txn.Get(subscriptionKey(owner, hash))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		var disk diskSubscription
		if err := item.Value(func(v []byte) error { return unmarshal(v, &disk) }); err != nil {
			return err
		}
		disk.Active = false
		disk.UpdatedAt = time.Now().UTC()
		data, err := marshal(disk)
		if err != nil {
			return err
		}
		return txn.Set(subscriptionKey(owner, hash), data)
	})
}

func indexOwner(txn *badger.Txn, hash string) (domain.UserID, error) {
	item, err := txn.Get(subscriptionIndexKey(hash))
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	owner, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return domain.UserID(owner), nil
}

func fromPushSubscription(p domain.PushSubscription) diskSubscription {
	return diskSubscription{
		Endpoint:  p.Endpoint,
		P256dh:    p.P256dh,
		Auth:      p.Auth,
		UserAgent: p.UserAgent,
		Active:    p.Active,
		UpdatedAt: p.UpdatedAt.UTC(),
	}
}

func toPushSubscription(d diskSubscription) domain.PushSubscription {
	return domain.PushSubscription{
		Endpoint:  d.Endpoint,
		P256dh:    d.P256dh,
		Auth:      d.Auth,
		UserAgent: d.UserAgent,
		Active:    d.Active,
		UpdatedAt: d.UpdatedAt,
	}
}
