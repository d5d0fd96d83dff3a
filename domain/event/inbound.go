package event

import (
	"chat-relay/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

type Inbound interface {
	FrameType() FrameType
	inbound()
}

// TypingCommand is sent by a client while it composes a message.
type TypingCommand struct {
	ChatID   string `json:"chatId" validate:"required"`
	IsTyping bool   `json:"isTyping"`
}

// DeliveredAck acknowledges that a pushed message reached the client.
type DeliveredAck struct {
	MessageID string `json:"messageId" validate:"required"`
}

// ReadAck marks one message as read.
type ReadAck struct {
	MessageID string `json:"messageId" validate:"required"`
}

// ChatReadAck marks a chat as read. Without message ids every unread message of the chat is concerned.
type ChatReadAck struct {
	ChatID     string   `json:"chatId" validate:"required"`
	MessageIDs []string `json:"messageIds" validate:"omitempty,dive,required"`
}

func (TypingCommand) FrameType() FrameType { return TypeTyping }
func (DeliveredAck) FrameType() FrameType  { return TypeMessageDelivered }
func (ReadAck) FrameType() FrameType       { return TypeMessageRead }
func (ChatReadAck) FrameType() FrameType   { return TypeMessagesRead }

func (TypingCommand) inbound() {}
func (DeliveredAck) inbound()  {}
func (ReadAck) inbound()       {}
func (ChatReadAck) inbound()   {}

var decoders = map[FrameType]func([]byte) (Inbound, error){
	TypeTyping:           decodeAs[TypingCommand],
	TypeMessageDelivered: decodeAs[DeliveredAck],
	TypeMessageRead:      decodeAs[ReadAck],
	TypeMessagesRead:     decodeAs[ChatReadAck],
}

// Decode parses a client frame through the dispatch table keyed by its "type".
func Decode(data []byte) (Inbound, error) {
	var header struct {
		Type FrameType `json:"type"`
	}
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	decode, ok := decoders[header.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrUnknownFrameType, header.Type)
	}
	return decode(data)
}

func decodeAs[T Inbound](data []byte) (Inbound, error) {
	var frame T
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	if err := validate.Struct(frame); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidFrame, err)
	}
	return frame, nil
}
