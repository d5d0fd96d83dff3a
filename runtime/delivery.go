package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"chat-relay/errors"
	"chat-relay/infrastructure/storage"
	"context"
	stderrors "errors"
	"log/slog"
	"time"

	"github.com/samber/lo"
)

// DeliveryStateMachine applies receipts against the ledger and tells the sender.
// A transition that changes nothing notifies nobody.
type DeliveryStateMachine struct {
	statuses storage.IStatusRepository
	registry contract.IRegistry
	log      *slog.Logger
}

var _ contract.IDeliveryStateMachine = (*DeliveryStateMachine)(nil)

func NewDeliveryStateMachine(statuses storage.IStatusRepository, registry contract.IRegistry, log *slog.Logger) *DeliveryStateMachine {
	return &DeliveryStateMachine{
		statuses: statuses,
		registry: registry,
		log:      log,
	}
}

func (d *DeliveryStateMachine) MarkDelivered(ctx context.Context, messageID string, subject domain.UserID, at time.Time) (domain.DeliveryStatus, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeliveryStatus{}, false, err
	}
	status, applied, err := d.statuses.Transition(messageID, func(s domain.DeliveryStatus) (domain.DeliveryStatus, bool) {
		return s.Deliver(at)
	})
	if err != nil || !applied {
		return status, applied, err
	}
	d.forward(status.SenderID, status.Receipt(subject))
	return status, true, nil
}

// MarkRead is legal from sent or delivered, reading twice is a silent no-op.
func (d *DeliveryStateMachine) MarkRead(ctx context.Context, messageID string, subject domain.UserID, at time.Time) (domain.DeliveryStatus, bool, error) {
	if err := ctx.Err(); err != nil {
		return domain.DeliveryStatus{}, false, err
	}
	status, applied, err := d.statuses.Transition(messageID, readAt(at))
	if err != nil || !applied {
		return status, applied, err
	}
	d.forward(status.SenderID, status.Receipt(subject))
	return status, true, nil
}

// MarkChatRead reads every unread candidate of chatID the reader did not author.
// Without candidates, every ledger entry of the chat is a candidate.
// Each sender gets a single messages_read frame listing its messages, in ledger order.
func (d *DeliveryStateMachine) MarkChatRead(ctx context.Context, chatID string, readerID domain.UserID, candidateIDs []string, at time.Time) ([]string, error) {
	candidates, err := d.candidates(chatID, candidateIDs)
	if err != nil {
		return nil, err
	}

	var readIDs []string
	var senders []domain.UserID
	bySender := make(map[domain.UserID][]domain.DeliveryReceipt)
	var failure error

	for _, status := range candidates {
		if err := ctx.Err(); err != nil {
			failure = err
			break
		}
		if status.ChatID != chatID || status.SenderID == readerID || !status.IsUnread() {
			continue
		}
		updated, applied, err := d.statuses.Transition(status.MessageID, readAt(at))
		if err != nil {
			failure = err
			break
		}
		if !applied {
			continue
		}
		if _, seen := bySender[updated.SenderID]; !seen {
			senders = append(senders, updated.SenderID)
		}
		bySender[updated.SenderID] = append(bySender[updated.SenderID], updated.Receipt(readerID))
		readIDs = append(readIDs, updated.MessageID)
	}

	for _, sender := range senders {
		ids := lo.Map(bySender[sender], func(r domain.DeliveryReceipt, _ int) string { return r.MessageID })
		d.notify(sender, event.MessagesRead{MessageIDs: ids, ChatID: chatID, ReadAt: at})
	}
	return readIDs, failure
}

func (d *DeliveryStateMachine) candidates(chatID string, candidateIDs []string) ([]domain.DeliveryStatus, error) {
	if len(candidateIDs) == 0 {
		return d.statuses.ListByChat(chatID)
	}
	var statuses []domain.DeliveryStatus
	for _, id := range lo.Uniq(candidateIDs) {
		status, err := d.statuses.Get(id)
		if stderrors.Is(err, errors.ErrMessageNotFound) {
			d.log.Debug("Skipping unknown message", "chat_id", chatID, "message_id", id)
			continue
		}
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

// forward turns a single receipt into the frame the sender expects.
func (d *DeliveryStateMachine) forward(sender domain.UserID, receipt domain.DeliveryReceipt) {
	d.log.Debug("Forwarding receipt", "message_id", receipt.MessageID, "state", receipt.State, "by", receipt.SubjectUserID)
	d.notify(sender, receiptFrame(receipt))
}

func receiptFrame(r domain.DeliveryReceipt) event.Outbound {
	if r.State == domain.StateRead {
		return event.MessageRead{MessageID: r.MessageID, ReadAt: r.At}
	}
	return event.MessageDelivered{MessageID: r.MessageID, DeliveredAt: r.At}
}

func (d *DeliveryStateMachine) notify(sender domain.UserID, frame event.Outbound) {
	if !d.registry.Send(sender, frame) {
		d.log.Debug("Receipt not pushed, sender offline", "user_id", sender, "type", frame.FrameType())
	}
}

func readAt(at time.Time) func(domain.DeliveryStatus) (domain.DeliveryStatus, bool) {
	return func(s domain.DeliveryStatus) (domain.DeliveryStatus, bool) {
		return s.Read(at)
	}
}
