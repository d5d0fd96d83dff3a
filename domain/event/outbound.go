// Package event defines the frames exchanged over a live connection.
// Server-to-client frames implement Outbound, client-to-server frames implement Inbound.
// Both sets are closed: only this package can add a variant.
package event

import (
	"chat-relay/domain"
	"encoding/json"
	"fmt"
	"time"
)

type FrameType string

const (
	TypeOnlineUsers      FrameType = "online_users"
	TypeUserOnline       FrameType = "user_online"
	TypeUserOffline      FrameType = "user_offline"
	TypeNewMessage       FrameType = "new_message"
	TypeMessageDelivered FrameType = "message_delivered"
	TypeMessageRead      FrameType = "message_read"
	TypeMessagesRead     FrameType = "messages_read"
	TypeTyping           FrameType = "typing"
)

type Outbound interface {
	FrameType() FrameType
	outbound()
}

// OnlineUsers seeds a freshly connected client with its online peers.
type OnlineUsers struct {
	Users []domain.UserID `json:"users"`
}

type UserOnline struct {
	UserID domain.UserID `json:"userId"`
}

type UserOffline struct {
	UserID domain.UserID `json:"userId"`
}

type NewMessage struct {
	Message   domain.MessageEnvelope `json:"message"`
	PlaySound bool                   `json:"playSound,omitempty"`
}

type MessageDelivered struct {
	MessageID   string    `json:"messageId"`
	DeliveredAt time.Time `json:"deliveredAt"`
}

type MessageRead struct {
	MessageID string    `json:"messageId"`
	ReadAt    time.Time `json:"readAt"`
}

type MessagesRead struct {
	MessageIDs []string  `json:"messageIds"`
	ChatID     string    `json:"chatId"`
	ReadAt     time.Time `json:"readAt"`
}

type Typing struct {
	ChatID   string        `json:"chatId"`
	UserID   domain.UserID `json:"userId"`
	IsTyping bool          `json:"isTyping"`
}

func (OnlineUsers) FrameType() FrameType      { return TypeOnlineUsers }
func (UserOnline) FrameType() FrameType       { return TypeUserOnline }
func (UserOffline) FrameType() FrameType      { return TypeUserOffline }
func (NewMessage) FrameType() FrameType       { return TypeNewMessage }
func (MessageDelivered) FrameType() FrameType { return TypeMessageDelivered }
func (MessageRead) FrameType() FrameType      { return TypeMessageRead }
func (MessagesRead) FrameType() FrameType     { return TypeMessagesRead }
func (Typing) FrameType() FrameType           { return TypeTyping }

func (OnlineUsers) outbound()      {}
func (UserOnline) outbound()       {}
func (UserOffline) outbound()      {}
func (NewMessage) outbound()       {}
func (MessageDelivered) outbound() {}
func (MessageRead) outbound()      {}
func (MessagesRead) outbound()     {}
func (Typing) outbound()           {}

// Encode renders a frame as a JSON object carrying its "type" discriminator.
func Encode(frame Outbound) ([]byte, error) {
	body, err := json.Marshal(frame)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", frame.FrameType(), err)
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, fmt.Errorf("encode %s: %w", frame.FrameType(), err)
	}
	if fields == nil {
		fields = make(map[string]json.RawMessage, 1)
	}
	discriminator, err := json.Marshal(frame.FrameType())
	if err != nil {
		return nil, err
	}
	fields["type"] = discriminator
	return json.Marshal(fields)
}
