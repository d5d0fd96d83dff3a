package workers

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"context"
	"log/slog"
	"time"
)

const defaultQueueSize = 256

type NotificationJob struct {
	UserID       domain.UserID
	Notification domain.Notification
	EnqueuedAt   time.Time
}

// NotificationDispatcher is the notifier the router sees.
// It only enqueues, so a slow push service never holds up routing.
type NotificationDispatcher struct {
	queue chan NotificationJob
	log   *slog.Logger
}

var _ contract.INotifier = (*NotificationDispatcher)(nil)

func NewNotificationDispatcher(size int, log *slog.Logger) *NotificationDispatcher {
	if size <= 0 {
		size = defaultQueueSize
	}
	return &NotificationDispatcher{
		queue: make(chan NotificationJob, size),
		log:   log,
	}
}

// Notify fails fast with ErrNotificationQueueFull instead of blocking.
func (d *NotificationDispatcher) Notify(ctx context.Context, userID domain.UserID, notification domain.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case d.queue <- NotificationJob{UserID: userID, Notification: notification, EnqueuedAt: time.Now()}:
		return nil
	default:
		return errors.ErrNotificationQueueFull
	}
}

func (d *NotificationDispatcher) Jobs() <-chan NotificationJob {
	return d.queue
}

// Depth and Capacity are sampled by the stats worker.
func (d *NotificationDispatcher) Depth() int {
	return len(d.queue)
}

func (d *NotificationDispatcher) Capacity() int {
	return cap(d.queue)
}

// NotificationWorker drains the queue into the real notifier, one job at a time.
type NotificationWorker struct {
	jobs     <-chan NotificationJob
	notifier contract.INotifier
	timeout  time.Duration
	log      *slog.Logger
}

func NewNotificationWorker(jobs <-chan NotificationJob, notifier contract.INotifier, timeout time.Duration, log *slog.Logger) *NotificationWorker {
	return &NotificationWorker{
		jobs:     jobs,
		notifier: notifier,
		timeout:  timeout,
		log:      log,
	}
}

func (w *NotificationWorker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping notification worker")
			return nil
		case job, ok := <-w.jobs:
			if !ok {
				return nil
			}
			w.deliver(ctx, job)
		}
	}
}

// deliver never retries: a failed notification is logged and dropped.
func (w *NotificationWorker) deliver(ctx context.Context, job NotificationJob) {
	notifyCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if err := w.notifier.Notify(notifyCtx, job.UserID, job.Notification); err != nil {
		w.log.Warn("Push notification failed",
			"user_id", job.UserID,
			"message_id", job.Notification.Data["messageId"],
			"error", err)
		return
	}
	w.log.Debug("Push notification sent",
		"user_id", job.UserID,
		"latency", time.Since(job.EnqueuedAt))
}
