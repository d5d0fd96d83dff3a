// Package domain contains core concepts of the delivery system.
// This file defines the routed message envelope.
// Envelopes are created by the message-creation collaborator and immutable once routed.
package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type MessageType string

const (
	MessageTypeText  MessageType = "text"
	MessageTypeVoice MessageType = "voice"
)

// Body is either Text or Voice.
type Body interface {
	Type() MessageType
	// Preview is the notification-safe rendering of the body.
	Preview() string
	body()
}

type Text struct {
	Content string
}

func (Text) Type() MessageType { return MessageTypeText }
func (t Text) Preview() string { return t.Content }
func (Text) body()             {}

type Voice struct {
	AudioRef string
}

func (Voice) Type() MessageType { return MessageTypeVoice }
func (Voice) Preview() string   { return VoicePlaceholder }
func (Voice) body()             {}

// MessageEnvelope is the payload pushed to live recipients.
type MessageEnvelope struct {
	ID        string
	ChatID    string
	Sender    Sender
	Body      Body
	CreatedAt time.Time
}

// wireEnvelope is the client-facing shape. Field names are part of the protocol.
type wireEnvelope struct {
	ID        string      `json:"_id"`
	ChatID    string      `json:"chat"`
	Sender    Sender      `json:"sender"`
	Type      MessageType `json:"type"`
	Content   string      `json:"content,omitempty"`
	AudioURL  string      `json:"audioUrl,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

func (m MessageEnvelope) MarshalJSON() ([]byte, error) {
	w := wireEnvelope{
		ID:        m.ID,
		ChatID:    m.ChatID,
		Sender:    m.Sender,
		CreatedAt: m.CreatedAt,
	}
	switch b := m.Body.(type) {
	case Text:
		w.Type, w.Content = MessageTypeText, b.Content
	case Voice:
		w.Type, w.AudioURL = MessageTypeVoice, b.AudioRef
	default:
		return nil, fmt.Errorf("message %s has no body", m.ID)
	}
	return json.Marshal(w)
}

func (m *MessageEnvelope) UnmarshalJSON(data []byte) error {
	var w wireEnvelope
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	body, err := NewBody(w.Type, w.Content, w.AudioURL)
	if err != nil {
		return err
	}
	*m = MessageEnvelope{
		ID:        w.ID,
		ChatID:    w.ChatID,
		Sender:    w.Sender,
		Body:      body,
		CreatedAt: w.CreatedAt,
	}
	return nil
}

// NewBody builds the body variant from its flat representation.
// An empty type defaults to text, like the message store does.
func NewBody(messageType MessageType, content, audioRef string) (Body, error) {
	switch messageType {
	case MessageTypeText, "":
		return Text{Content: content}, nil
	case MessageTypeVoice:
		return Voice{AudioRef: audioRef}, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", messageType)
	}
}
