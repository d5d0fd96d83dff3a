package services

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// IDeliveryService is the surface used by transports: the socket handler and the gRPC server.
type IDeliveryService interface {
	Connect(userID domain.UserID, conn contract.Connection)
	Disconnect(userID domain.UserID, conn contract.Connection) bool
	Route(ctx context.Context, envelope domain.MessageEnvelope, recipients []domain.UserID) (domain.RouteResult, error)
	MarkDelivered(ctx context.Context, subject domain.UserID, messageID string) (domain.DeliveryStatus, bool, error)
	MarkRead(ctx context.Context, subject domain.UserID, messageID string) (domain.DeliveryStatus, bool, error)
	MarkChatRead(ctx context.Context, subject domain.UserID, chatID string, messageIDs []string) ([]string, error)
	Typing(ctx context.Context, signal domain.TypingSignal) error
	HandleInbound(ctx context.Context, subject domain.UserID, frame event.Inbound) error
	IsOnline(userID domain.UserID) bool
	OnlineUsers() []domain.UserID
	OnlineStatus(userIDs []domain.UserID) map[domain.UserID]bool
	SetChatMembers(chatID string, members []domain.UserID) error
	SavePushSubscription(userID domain.UserID, subscription domain.PushSubscription) error
	RemovePushSubscription(userID domain.UserID, endpoint string) error
}

type envelopeRules struct {
	ID     string `validate:"required"`
	ChatID string `validate:"required"`
	Sender domain.Sender
}

type DeliveryService struct {
	registry      contract.IRegistry
	router        contract.IRouter
	machine       contract.IDeliveryStateMachine
	statuses      storage.IStatusRepository
	members       storage.IMembershipRepository
	subscriptions storage.ISubscriptionRepository
	now           func() time.Time
	log           *slog.Logger
}

var _ IDeliveryService = (*DeliveryService)(nil)

func NewDeliveryService(
	registry contract.IRegistry,
	router contract.IRouter,
	machine contract.IDeliveryStateMachine,
	statuses storage.IStatusRepository,
	members storage.IMembershipRepository,
	subscriptions storage.ISubscriptionRepository,
	log *slog.Logger,
) *DeliveryService {
	return &DeliveryService{
		registry:      registry,
		router:        router,
		machine:       machine,
		statuses:      statuses,
		members:       members,
		subscriptions: subscriptions,
		now:           time.Now,
		log:           log,
	}
}

// WithClock fixes the time stamped on receipts.
func (s *DeliveryService) WithClock(now func() time.Time) *DeliveryService {
	s.now = now
	return s
}

func (s *DeliveryService) Connect(userID domain.UserID, conn contract.Connection) {
	s.registry.Register(userID, conn)
}

func (s *DeliveryService) Disconnect(userID domain.UserID, conn contract.Connection) bool {
	return s.registry.Unregister(userID, conn)
}

// Route is called once the message is persisted.
// The ledger entry and chat membership are best effort: a storage failure never blocks delivery.
func (s *DeliveryService) Route(ctx context.Context, envelope domain.MessageEnvelope, recipients []domain.UserID) (domain.RouteResult, error) {
	if err := validate.Struct(envelopeRules{ID: envelope.ID, ChatID: envelope.ChatID, Sender: envelope.Sender}); err != nil {
		return domain.RouteResult{}, fmt.Errorf("%w: %v", errors.ErrInvalidEnvelope, err)
	}
	if envelope.Body == nil {
		return domain.RouteResult{}, fmt.Errorf("%w: missing body", errors.ErrInvalidEnvelope)
	}
	if envelope.CreatedAt.IsZero() {
		envelope.CreatedAt = s.now()
	}

	if err := s.statuses.Record(domain.NewDeliveryStatus(envelope)); err != nil {
		s.log.Error("Unable to record delivery status", "message_id", envelope.ID, "error", err)
	}
	participants := lo.Uniq(append([]domain.UserID{envelope.Sender.ID}, recipients...))
	if err := s.members.SetMembers(envelope.ChatID, participants); err != nil {
		s.log.Error("Unable to store chat members", "chat_id", envelope.ChatID, "error", err)
	}

	return s.router.Route(ctx, envelope, recipients), nil
}

func (s *DeliveryService) MarkDelivered(ctx context.Context, subject domain.UserID, messageID string) (domain.DeliveryStatus, bool, error) {
	if err := s.guard(subject, messageID); err != nil {
		return domain.DeliveryStatus{}, false, err
	}
	return s.machine.MarkDelivered(ctx, messageID, subject, s.now())
}

func (s *DeliveryService) MarkRead(ctx context.Context, subject domain.UserID, messageID string) (domain.DeliveryStatus, bool, error) {
	if err := s.guard(subject, messageID); err != nil {
		return domain.DeliveryStatus{}, false, err
	}
	return s.machine.MarkRead(ctx, messageID, subject, s.now())
}

// MarkChatRead never reports the subject's own messages as read, the state machine skips them.
func (s *DeliveryService) MarkChatRead(ctx context.Context, subject domain.UserID, chatID string, messageIDs []string) ([]string, error) {
	if chatID == "" {
		return nil, fmt.Errorf("%w: missing chat id", errors.ErrInvalidRequest)
	}
	return s.machine.MarkChatRead(ctx, chatID, subject, messageIDs, s.now())
}

// guard rejects receipts a user would issue for their own message.
func (s *DeliveryService) guard(subject domain.UserID, messageID string) error {
	if subject == "" || messageID == "" {
		return fmt.Errorf("%w: subject and message id are required", errors.ErrInvalidRequest)
	}
	status, err := s.statuses.Get(messageID)
	if err != nil {
		return err
	}
	if status.SenderID == subject {
		return fmt.Errorf("%w: %s", errors.ErrSelfReceipt, messageID)
	}
	return nil
}

// Typing relays the signal to the other members of the chat.
// Signals for unknown chats or from non-members are dropped.
func (s *DeliveryService) Typing(ctx context.Context, signal domain.TypingSignal) error {
	members, err := s.members.Members(signal.ChatID)
	if stderrors.Is(err, errors.ErrChatNotFound) {
		s.log.Debug("Typing for unknown chat dropped", "chat_id", signal.ChatID, "user_id", signal.UserID)
		return nil
	}
	if err != nil {
		return err
	}
	if !lo.Contains(members, signal.UserID) {
		s.log.Debug("Typing from non member dropped", "chat_id", signal.ChatID, "user_id", signal.UserID)
		return nil
	}

	frame := event.Typing{ChatID: signal.ChatID, UserID: signal.UserID, IsTyping: signal.IsTyping}
	for _, member := range members {
		if member == signal.UserID {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.registry.Send(member, frame)
	}
	return nil
}

// HandleInbound executes a client frame on behalf of subject.
func (s *DeliveryService) HandleInbound(ctx context.Context, subject domain.UserID, frame event.Inbound) error {
	switch f := frame.(type) {
	case event.TypingCommand:
		return s.Typing(ctx, domain.TypingSignal{ChatID: f.ChatID, UserID: subject, IsTyping: f.IsTyping})
	case event.DeliveredAck:
		_, _, err := s.MarkDelivered(ctx, subject, f.MessageID)
		return err
	case event.ReadAck:
		_, _, err := s.MarkRead(ctx, subject, f.MessageID)
		return err
	case event.ChatReadAck:
		_, err := s.MarkChatRead(ctx, subject, f.ChatID, f.MessageIDs)
		return err
	default:
		return fmt.Errorf("%w: %T", errors.ErrUnknownFrameType, frame)
	}
}

func (s *DeliveryService) IsOnline(userID domain.UserID) bool {
	return s.registry.IsOnline(userID)
}

func (s *DeliveryService) OnlineUsers() []domain.UserID {
	return s.registry.OnlineUsers()
}

func (s *DeliveryService) OnlineStatus(userIDs []domain.UserID) map[domain.UserID]bool {
	return lo.SliceToMap(userIDs, func(u domain.UserID) (domain.UserID, bool) {
		return u, s.registry.IsOnline(u)
	})
}

func (s *DeliveryService) SetChatMembers(chatID string, members []domain.UserID) error {
	if chatID == "" || len(members) == 0 {
		return fmt.Errorf("%w: chat id and members are required", errors.ErrInvalidRequest)
	}
	return s.members.SetMembers(chatID, members)
}

func (s *DeliveryService) SavePushSubscription(userID domain.UserID, subscription domain.PushSubscription) error {
	if err := validate.Struct(subscription); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidRequest, err)
	}
	subscription.UpdatedAt = s.now()
	return s.subscriptions.Save(userID, subscription)
}

func (s *DeliveryService) RemovePushSubscription(userID domain.UserID, endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("%w: missing endpoint", errors.ErrInvalidRequest)
	}
	return s.subscriptions.Remove(userID, endpoint)
}
