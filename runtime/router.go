package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/lo"
)

const defaultPreviewLength = 100

// Router pushes a persisted message to every recipient, live when connected,
// through the notifier otherwise. Routing never fails.
type Router struct {
	registry      contract.IRegistry
	notifier      contract.INotifier
	log           *slog.Logger
	previewLength int
}

var _ contract.IRouter = (*Router)(nil)

func NewRouter(registry contract.IRegistry, notifier contract.INotifier, log *slog.Logger, previewLength int) *Router {
	if previewLength <= 0 {
		previewLength = defaultPreviewLength
	}
	return &Router{
		registry:      registry,
		notifier:      notifier,
		log:           log,
		previewLength: previewLength,
	}
}

// Route visits distinct recipients in the given order, the sender is skipped.
// A recipient seen online whose send fails (it disconnected meanwhile) falls back like an offline one.
func (r *Router) Route(ctx context.Context, envelope domain.MessageEnvelope, recipients []domain.UserID) domain.RouteResult {
	var result domain.RouteResult
	if envelope.Body == nil {
		r.log.Error("Refusing to route a message without body", "message_id", envelope.ID)
		return result
	}
	frame := event.NewMessage{Message: envelope, PlaySound: true}

	for _, recipient := range lo.Uniq(recipients) {
		if recipient == envelope.Sender.ID {
			continue
		}
		if r.registry.IsOnline(recipient) && r.registry.Send(recipient, frame) {
			result.Live = append(result.Live, recipient)
			continue
		}
		r.fallback(ctx, recipient, envelope)
		result.Fallback = append(result.Fallback, recipient)
	}

	r.log.Debug("Message routed",
		"message_id", envelope.ID,
		"chat_id", envelope.ChatID,
		"live", len(result.Live),
		"fallback", len(result.Fallback))
	return result
}

func (r *Router) fallback(ctx context.Context, recipient domain.UserID, envelope domain.MessageEnvelope) {
	if r.notifier == nil {
		return
	}
	if err := r.notifier.Notify(ctx, recipient, r.notification(envelope)); err != nil {
		r.log.Warn("Offline notification failed",
			"user_id", recipient,
			"message_id", envelope.ID,
			"error", err)
	}
}

func (r *Router) notification(envelope domain.MessageEnvelope) domain.Notification {
	return domain.Notification{
		Title: envelope.Sender.DisplayName(),
		Body:  truncate(envelope.Body.Preview(), r.previewLength),
		Data: map[string]string{
			"chatId":    envelope.ChatID,
			"messageId": envelope.ID,
			"senderId":  envelope.Sender.ID.String(),
			"type":      string(envelope.Body.Type()),
			"url":       fmt.Sprintf("/chats/%s", envelope.ChatID),
		},
	}
}

// truncate cuts on runes so emoji and accents survive.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
