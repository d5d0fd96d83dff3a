package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"
	"github.com/samber/lo"
)

type MembershipRepository struct {
	db  *badger.DB
	log *slog.Logger
}

var _ IMembershipRepository = (*MembershipRepository)(nil)

func NewMembershipRepository(db *badger.DB, log *slog.Logger) *MembershipRepository {
	return &MembershipRepository{db: db, log: log}
}

func membersKey(chatID string) []byte {
	return []byte("members:" + chatID)
}

// SetMembers replaces the member list of a chat. Duplicates are collapsed.
func (m *MembershipRepository) SetMembers(chatID string, members []domain.UserID) error {
	ids := lo.Uniq(lo.Map(members, func(u domain.UserID, _ int) string { return u.String() }))
	data, err := marshal(ids)
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set(membersKey(chatID), data)
	})
}

func (m *MembershipRepository) Members(chatID string) ([]domain.UserID, error) {
	var ids []string
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(membersKey(chatID))
		if stderrors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("%w: %s", errors.ErrChatNotFound, chatID)
		}
		if err != nil {
			return err
		}
		return item.Value(func(v []byte) error {
			return unmarshal(v, &ids)
		})
	})
	if err != nil {
		return nil, err
	}
	return lo.Map(ids, func(id string, _ int) domain.UserID { return domain.UserID(id) }), nil
}
