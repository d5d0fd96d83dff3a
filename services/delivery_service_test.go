package services

import (
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type fixture struct {
	registry      *mocks.MockIRegistry
	router        *mocks.MockIRouter
	machine       *mocks.MockIDeliveryStateMachine
	statuses      *mocks.MockIStatusRepository
	members       *mocks.MockIMembershipRepository
	subscriptions *mocks.MockISubscriptionRepository
	service       *DeliveryService
	now           time.Time
}

func newFixture(t *testing.T) fixture {
	ctrl := gomock.NewController(t)
	f := fixture{
		registry:      mocks.NewMockIRegistry(ctrl),
		router:        mocks.NewMockIRouter(ctrl),
		machine:       mocks.NewMockIDeliveryStateMachine(ctrl),
		statuses:      mocks.NewMockIStatusRepository(ctrl),
		members:       mocks.NewMockIMembershipRepository(ctrl),
		subscriptions: mocks.NewMockISubscriptionRepository(ctrl),
		now:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	f.service = NewDeliveryService(f.registry, f.router, f.machine, f.statuses, f.members, f.subscriptions,
		logs.GetLoggerFromLevel(slog.LevelDebug)).
		WithClock(func() time.Time { return f.now })
	return f
}

func envelope() domain.MessageEnvelope {
	return domain.MessageEnvelope{
		ID:        "m1",
		ChatID:    "c1",
		Sender:    domain.Sender{ID: "alice", Name: "Alice"},
		Body:      domain.Text{Content: "hi"},
		CreatedAt: time.Now(),
	}
}

func sentBy(sender domain.UserID) domain.DeliveryStatus {
	return domain.DeliveryStatus{MessageID: "m1", ChatID: "c1", SenderID: sender, State: domain.StateSent}
}

func TestDeliveryService_Route(t *testing.T) {
	t.Run("should record, learn members and route", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		env := envelope()
		recipients := []domain.UserID{"bob", "carol"}
		expected := domain.RouteResult{Live: []domain.UserID{"bob"}, Fallback: []domain.UserID{"carol"}}

		gomock.InOrder(
			f.statuses.EXPECT().Record(domain.NewDeliveryStatus(env)).Return(nil),
			f.members.EXPECT().SetMembers("c1", []domain.UserID{"alice", "bob", "carol"}).Return(nil),
			f.router.EXPECT().Route(gomock.Any(), env, recipients).Return(expected),
		)

		result, err := f.service.Route(context.Background(), env, recipients)

		req.NoError(err)
		req.Equal(expected, result)
	})

	t.Run("should still route when storage fails", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.statuses.EXPECT().Record(gomock.Any()).Return(fmt.Errorf("disk full"))
		f.members.EXPECT().SetMembers(gomock.Any(), gomock.Any()).Return(fmt.Errorf("disk full"))
		f.router.EXPECT().Route(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.RouteResult{}).Times(1)

		_, err := f.service.Route(context.Background(), envelope(), []domain.UserID{"bob"})

		req.NoError(err)
	})

	t.Run("should stamp a missing creation time", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		env := envelope()
		env.CreatedAt = time.Time{}
		f.statuses.EXPECT().Record(gomock.Any()).DoAndReturn(func(s domain.DeliveryStatus) error {
			req.Equal(f.now, s.CreatedAt)
			return nil
		})
		f.members.EXPECT().SetMembers(gomock.Any(), gomock.Any()).Return(nil)
		f.router.EXPECT().Route(gomock.Any(), gomock.Any(), gomock.Any()).Return(domain.RouteResult{})

		_, err := f.service.Route(context.Background(), env, []domain.UserID{"bob"})
		req.NoError(err)
	})

	invalid := []struct {
		name   string
		mutate func(*domain.MessageEnvelope)
	}{
		{"missing id", func(e *domain.MessageEnvelope) { e.ID = "" }},
		{"missing chat", func(e *domain.MessageEnvelope) { e.ChatID = "" }},
		{"missing sender", func(e *domain.MessageEnvelope) { e.Sender.ID = "" }},
		{"missing body", func(e *domain.MessageEnvelope) { e.Body = nil }},
	}
	for _, tt := range invalid {
		t.Run("should reject envelope with "+tt.name, func(t *testing.T) {
			req := require.New(t)
			f := newFixture(t)
			env := envelope()
			tt.mutate(&env)
			f.router.EXPECT().Route(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			f.statuses.EXPECT().Record(gomock.Any()).Times(0)

			_, err := f.service.Route(context.Background(), env, []domain.UserID{"bob"})

			req.ErrorIs(err, errors.ErrInvalidEnvelope)
		})
	}
}

func TestDeliveryService_SelfActionGuard(t *testing.T) {
	t.Run("should reject reading own message before the state machine", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.statuses.EXPECT().Get("m1").Return(sentBy("alice"), nil)
		f.machine.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := f.service.MarkRead(context.Background(), "alice", "m1")

		req.ErrorIs(err, errors.ErrSelfReceipt)
	})

	t.Run("should reject delivering own message before the state machine", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.statuses.EXPECT().Get("m1").Return(sentBy("alice"), nil)
		f.machine.EXPECT().MarkDelivered(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := f.service.MarkDelivered(context.Background(), "alice", "m1")

		req.ErrorIs(err, errors.ErrSelfReceipt)
	})

	t.Run("should surface unknown messages", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.statuses.EXPECT().Get("ghost").Return(domain.DeliveryStatus{}, fmt.Errorf("lookup: %w", errors.ErrMessageNotFound))
		f.machine.EXPECT().MarkRead(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, _, err := f.service.MarkRead(context.Background(), "bob", "ghost")

		req.ErrorIs(err, errors.ErrMessageNotFound)
	})

	t.Run("should forward a recipient receipt with the clock time", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		delivered := sentBy("alice")
		delivered.State = domain.StateDelivered
		f.statuses.EXPECT().Get("m1").Return(sentBy("alice"), nil)
		f.machine.EXPECT().MarkDelivered(gomock.Any(), "m1", domain.UserID("bob"), f.now).Return(delivered, true, nil)

		status, applied, err := f.service.MarkDelivered(context.Background(), "bob", "m1")

		req.NoError(err)
		req.True(applied)
		req.Equal(domain.StateDelivered, status.State)
	})
}

func TestDeliveryService_MarkChatRead(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.machine.EXPECT().MarkChatRead(gomock.Any(), "c1", domain.UserID("bob"), []string{"m1"}, f.now).Return([]string{"m1"}, nil)

	ids, err := f.service.MarkChatRead(context.Background(), "bob", "c1", []string{"m1"})
	req.NoError(err)
	req.Equal([]string{"m1"}, ids)

	_, err = f.service.MarkChatRead(context.Background(), "bob", "", nil)
	req.ErrorIs(err, errors.ErrInvalidRequest)
}

func TestDeliveryService_Typing(t *testing.T) {
	t.Run("should relay to the other members only", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.members.EXPECT().Members("c1").Return([]domain.UserID{"alice", "bob", "carol"}, nil)
		frame := event.Typing{ChatID: "c1", UserID: "alice", IsTyping: true}
		f.registry.EXPECT().Send(domain.UserID("bob"), frame).Return(true)
		f.registry.EXPECT().Send(domain.UserID("carol"), frame).Return(false)

		req.NoError(f.service.Typing(context.Background(), domain.TypingSignal{ChatID: "c1", UserID: "alice", IsTyping: true}))
	})

	t.Run("should drop typing for an unknown chat", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.members.EXPECT().Members("nope").Return(nil, fmt.Errorf("%w: nope", errors.ErrChatNotFound))
		f.registry.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

		req.NoError(f.service.Typing(context.Background(), domain.TypingSignal{ChatID: "nope", UserID: "alice"}))
	})

	t.Run("should drop typing from a non member", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.members.EXPECT().Members("c1").Return([]domain.UserID{"bob", "carol"}, nil)
		f.registry.EXPECT().Send(gomock.Any(), gomock.Any()).Times(0)

		req.NoError(f.service.Typing(context.Background(), domain.TypingSignal{ChatID: "c1", UserID: "mallory", IsTyping: true}))
	})
}

func TestDeliveryService_HandleInbound(t *testing.T) {
	t.Run("should run acknowledgements as the socket user", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.statuses.EXPECT().Get("m1").Return(sentBy("alice"), nil).Times(2)
		f.machine.EXPECT().MarkDelivered(gomock.Any(), "m1", domain.UserID("bob"), f.now).Return(domain.DeliveryStatus{}, true, nil)
		f.machine.EXPECT().MarkRead(gomock.Any(), "m1", domain.UserID("bob"), f.now).Return(domain.DeliveryStatus{}, true, nil)
		f.machine.EXPECT().MarkChatRead(gomock.Any(), "c1", domain.UserID("bob"), nil, f.now).Return(nil, nil)

		req.NoError(f.service.HandleInbound(context.Background(), "bob", event.DeliveredAck{MessageID: "m1"}))
		req.NoError(f.service.HandleInbound(context.Background(), "bob", event.ReadAck{MessageID: "m1"}))
		req.NoError(f.service.HandleInbound(context.Background(), "bob", event.ChatReadAck{ChatID: "c1"}))
	})

	t.Run("should stamp typing with the socket user", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.members.EXPECT().Members("c1").Return([]domain.UserID{"alice", "bob"}, nil)
		f.registry.EXPECT().Send(domain.UserID("alice"), event.Typing{ChatID: "c1", UserID: "bob", IsTyping: true}).Return(true)

		req.NoError(f.service.HandleInbound(context.Background(), "bob", event.TypingCommand{ChatID: "c1", IsTyping: true}))
	})
}

func TestDeliveryService_Presence(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.registry.EXPECT().IsOnline(domain.UserID("alice")).Return(true).AnyTimes()
	f.registry.EXPECT().IsOnline(domain.UserID("bob")).Return(false).AnyTimes()
	f.registry.EXPECT().OnlineUsers().Return([]domain.UserID{"alice"})

	req.True(f.service.IsOnline("alice"))
	req.Equal([]domain.UserID{"alice"}, f.service.OnlineUsers())
	req.Equal(map[domain.UserID]bool{"alice": true, "bob": false}, f.service.OnlineStatus([]domain.UserID{"alice", "bob"}))
}

func TestDeliveryService_PushSubscriptions(t *testing.T) {
	t.Run("should validate before saving", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.subscriptions.EXPECT().Save(gomock.Any(), gomock.Any()).Times(0)

		err := f.service.SavePushSubscription("bob", domain.PushSubscription{Endpoint: "not a url", P256dh: "k", Auth: "a"})

		req.ErrorIs(err, errors.ErrInvalidRequest)
	})

	t.Run("should save with the clock time", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		sub := domain.PushSubscription{Endpoint: "https://push.example/x", P256dh: "k", Auth: "a"}
		expected := sub
		expected.UpdatedAt = f.now
		f.subscriptions.EXPECT().Save(domain.UserID("bob"), expected).Return(nil)

		req.NoError(f.service.SavePushSubscription("bob", sub))
	})

	t.Run("should remove by endpoint", func(t *testing.T) {
		req := require.New(t)
		f := newFixture(t)
		f.subscriptions.EXPECT().Remove(domain.UserID("bob"), "https://push.example/x").Return(nil)

		req.NoError(f.service.RemovePushSubscription("bob", "https://push.example/x"))
		req.ErrorIs(f.service.RemovePushSubscription("bob", ""), errors.ErrInvalidRequest)
	})
}

func TestDeliveryService_SetChatMembers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	f.members.EXPECT().SetMembers("c1", []domain.UserID{"a", "b"}).Return(nil)

	req.NoError(f.service.SetChatMembers("c1", []domain.UserID{"a", "b"}))
	req.ErrorIs(f.service.SetChatMembers("", []domain.UserID{"a"}), errors.ErrInvalidRequest)
}
