// Package notification reaches offline users through Web Push.
package notification

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
)

const (
	defaultIcon  = "/icon-192x192.png"
	defaultBadge = "/badge-72x72.png"
	defaultTag   = "message-notification"
)

type Options struct {
	VAPIDPublicKey  string
	VAPIDPrivateKey string
	// Subject is the contact the push service can reach, an email or an https URL.
	Subject string
	TTL     time.Duration
}

// payload is what the service worker on the client side reads.
type payload struct {
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Icon      string            `json:"icon"`
	Badge     string            `json:"badge"`
	Vibrate   []int             `json:"vibrate"`
	Data      map[string]string `json:"data"`
	Tag       string            `json:"tag"`
	Timestamp int64             `json:"timestamp"`
}

// WebPushNotifier sends a notification to every active subscription of a user.
// Endpoints the push service reports as gone are deactivated.
type WebPushNotifier struct {
	subscriptions storage.ISubscriptionRepository
	options       Options
	httpClient    webpush.HTTPClient
	log           *slog.Logger
}

var _ contract.INotifier = (*WebPushNotifier)(nil)

func NewWebPushNotifier(subscriptions storage.ISubscriptionRepository, options Options, log *slog.Logger) *WebPushNotifier {
	return &WebPushNotifier{
		subscriptions: subscriptions,
		options:       options,
		httpClient:    &http.Client{},
		log:           log,
	}
}

// WithHTTPClient replaces the client used to reach push services.
func (w *WebPushNotifier) WithHTTPClient(client webpush.HTTPClient) *WebPushNotifier {
	w.httpClient = client
	return w
}

// Notify succeeds when at least one subscription accepted the message.
func (w *WebPushNotifier) Notify(ctx context.Context, userID domain.UserID, notification domain.Notification) error {
	subs, err := w.subscriptions.Active(userID)
	if err != nil {
		return fmt.Errorf("unable to load subscriptions: %w", err)
	}
	if len(subs) == 0 {
		return fmt.Errorf("%w: %s", errors.ErrNoSubscription, userID)
	}

	message, err := json.Marshal(payload{
		Title:     notification.Title,
		Body:      notification.Body,
		Icon:      defaultIcon,
		Badge:     defaultBadge,
		Vibrate:   []int{200, 100, 200},
		Data:      notification.Data,
		Tag:       defaultTag,
		Timestamp: time.Now().UnixMilli(),
	})
	if err != nil {
		return err
	}

	var failures []error
	successful := 0
	for _, sub := range subs {
		if err := w.send(ctx, message, sub); err != nil {
			failures = append(failures, err)
			continue
		}
		successful++
	}

	w.log.Debug("Push notifications sent", "user_id", userID, "successful", successful, "failed", len(failures))
	if successful == 0 {
		return stderrors.Join(failures...)
	}
	return nil
}

func (w *WebPushNotifier) send(ctx context.Context, message []byte, sub domain.PushSubscription) error {
	resp, err := webpush.SendNotificationWithContext(ctx, message, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{Auth: sub.Auth, P256dh: sub.P256dh},
	}, &webpush.Options{
		HTTPClient:      w.httpClient,
		Subscriber:      w.options.Subject,
		TTL:             int(w.options.TTL.Seconds()),
		Urgency:         webpush.UrgencyHigh,
		VAPIDPublicKey:  w.options.VAPIDPublicKey,
		VAPIDPrivateKey: w.options.VAPIDPrivateKey,
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		if err := w.subscriptions.Deactivate(sub.Endpoint); err != nil {
			w.log.Error("Unable to deactivate subscription", "error", err)
		}
		return fmt.Errorf("%w: status %d", errors.ErrSubscriptionGone, resp.StatusCode)
	case resp.StatusCode >= http.StatusBadRequest:
		return fmt.Errorf("push service answered %d", resp.StatusCode)
	}
	return nil
}
