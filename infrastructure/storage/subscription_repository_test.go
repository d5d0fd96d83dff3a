package storage

import (
	"chat-relay/domain"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func subscription(endpoint string) domain.PushSubscription {
	return domain.PushSubscription{
		Endpoint: endpoint,
		P256dh:   "p256dh-key",
		Auth:     "auth-secret",
	}
}

func TestSubscriptionRepository_SaveAndActive(t *testing.T) {
	req := require.New(t)
	repo := NewSubscriptionRepository(setupTestDB(t), slog.Default())

	// Given two endpoints for bob, one saved twice
	req.NoError(repo.Save("bob", subscription("https://push.example/a")))
	req.NoError(repo.Save("bob", subscription("https://push.example/b")))
	req.NoError(repo.Save("bob", subscription("https://push.example/a")))

	// When his active subscriptions are listed
	subs, err := repo.Active("bob")

	// Then each endpoint appears once
	req.NoError(err)
	req.Len(subs, 2)
	for _, s := range subs {
		req.True(s.Active)
		req.False(s.UpdatedAt.IsZero())
	}

	none, err := repo.Active("alice")
	req.NoError(err)
	req.Empty(none)
}

func TestSubscriptionRepository_EndpointMovesToNewOwner(t *testing.T) {
	req := require.New(t)
	repo := NewSubscriptionRepository(setupTestDB(t), slog.Default())

	// Given an endpoint registered by alice then by bob on the same browser
	req.NoError(repo.Save("alice", subscription("https://push.example/shared")))
	req.NoError(repo.Save("bob", subscription("https://push.example/shared")))

	// Then only bob owns it
	aliceSubs, err := repo.Active("alice")
	req.NoError(err)
	req.Empty(aliceSubs)
	bobSubs, err := repo.Active("bob")
	req.NoError(err)
	req.Len(bobSubs, 1)

	// And alice cannot remove it
	req.NoError(repo.Remove("alice", "https://push.example/shared"))
	bobSubs, err = repo.Active("bob")
	req.NoError(err)
	req.Len(bobSubs, 1)

	req.NoError(repo.Remove("bob", "https://push.example/shared"))
	bobSubs, err = repo.Active("bob")
	req.NoError(err)
	req.Empty(bobSubs)
}

func TestSubscriptionRepository_Deactivate(t *testing.T) {
	req := require.New(t)
	repo := NewSubscriptionRepository(setupTestDB(t), slog.Default())
	req.NoError(repo.Save("bob", subscription("https://push.example/gone")))

	// When the push service reports the endpoint as gone
	req.NoError(repo.Deactivate("https://push.example/gone"))
	req.NoError(repo.Deactivate("https://push.example/unknown"))

	// Then it is no longer active
	subs, err := repo.Active("bob")
	req.NoError(err)
	req.Empty(subs)

	// And saving it again revives it
	req.NoError(repo.Save("bob", subscription("https://push.example/gone")))
	subs, err = repo.Active("bob")
	req.NoError(err)
	req.Len(subs, 1)
}

func TestSubscriptionRepository_ActiveIgnoresUsersSharingAPrefix(t *testing.T) {
	req := require.New(t)
	repo := NewSubscriptionRepository(setupTestDB(t), slog.Default())

	// Given a subscription owned by a user whose id starts with "a:"
	req.NoError(repo.Save("a:x", subscription("https://push.example/other")))

	// When user "a" lists its subscriptions
	subs, err := repo.Active("a")

	// Then nothing of "a:x" leaks
	req.NoError(err)
	req.Empty(subs)

	owned, err := repo.Active("a:x")
	req.NoError(err)
	req.Len(owned, 1)
	req.Equal("https://push.example/other", owned[0].Endpoint)
}
