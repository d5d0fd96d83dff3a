package storage

import (
	"chat-relay/domain"
	"chat-relay/errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMembershipRepository(t *testing.T) {
	req := require.New(t)
	repo := NewMembershipRepository(setupTestDB(t), slog.Default())

	// Unknown chats are reported as such
	_, err := repo.Members("c1")
	req.ErrorIs(err, errors.ErrChatNotFound)

	// Duplicates collapse, order is kept
	req.NoError(repo.SetMembers("c1", []domain.UserID{"alice", "bob", "alice"}))
	members, err := repo.Members("c1")
	req.NoError(err)
	req.Equal([]domain.UserID{"alice", "bob"}, members)

	// A new list replaces the old one
	req.NoError(repo.SetMembers("c1", []domain.UserID{"carol"}))
	members, err = repo.Members("c1")
	req.NoError(err)
	req.Equal([]domain.UserID{"carol"}, members)
}
