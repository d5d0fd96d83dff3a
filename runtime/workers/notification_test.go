package workers

import (
	"chat-relay/domain"
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

func TestNotificationDispatcher_QueueFull(t *testing.T) {
	req := require.New(t)
	dispatcher := NewNotificationDispatcher(1, logs.GetLoggerFromLevel(slog.LevelDebug))
	n := domain.Notification{Title: "alice", Body: "hi"}

	// Given a queue with a single slot already taken
	req.NoError(dispatcher.Notify(context.Background(), "bob", n))
	req.Equal(1, dispatcher.Depth())

	// When another notification arrives
	err := dispatcher.Notify(context.Background(), "carol", n)

	// Then it is refused without blocking
	req.ErrorIs(err, errors.ErrNotificationQueueFull)
	job := <-dispatcher.Jobs()
	req.Equal(domain.UserID("bob"), job.UserID)
}

func TestNotificationWorker_ForwardsWithTimeout(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockINotifier(ctrl)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	dispatcher := NewNotificationDispatcher(4, log)

	type call struct {
		userID      domain.UserID
		hasDeadline bool
	}
	delivered := make(chan call, 2)
	notifier.EXPECT().
		Notify(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, userID domain.UserID, n domain.Notification) error {
			_, hasDeadline := ctx.Deadline()
			delivered <- call{userID, hasDeadline}
			if userID == "bob" {
				return fmt.Errorf("push service down")
			}
			return nil
		}).
		Times(2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	worker := NewNotificationWorker(dispatcher.Jobs(), notifier, time.Second, log)
	go func() { _ = worker.Run(ctx) }()

	// When two jobs are queued, the first one failing
	req.NoError(dispatcher.Notify(ctx, "bob", domain.Notification{Title: "alice"}))
	req.NoError(dispatcher.Notify(ctx, "carol", domain.Notification{Title: "alice"}))

	// Then the worker survives the failure and delivers both in order
	req.Equal(call{"bob", true}, <-delivered)
	req.Equal(call{"carol", true}, <-delivered)
}

func TestNotificationWorker_StopsOnCancel(t *testing.T) {
	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockINotifier(ctrl)
	dispatcher := NewNotificationDispatcher(1, slog.Default())
	worker := NewNotificationWorker(dispatcher.Jobs(), notifier, time.Second, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, worker.Run(ctx))
}
