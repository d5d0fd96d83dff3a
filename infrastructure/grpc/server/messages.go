package server

import (
	"chat-relay/domain"
	"time"
)

type RouteRequest struct {
	Message    domain.MessageEnvelope `json:"message"`
	Recipients []domain.UserID        `json:"recipients"`
}

type RouteResponse struct {
	Live     []domain.UserID `json:"live"`
	Fallback []domain.UserID `json:"fallback"`
}

type ReceiptRequest struct {
	MessageID string `json:"messageId"`
}

type ReceiptResponse struct {
	Applied     bool                 `json:"applied"`
	State       domain.DeliveryState `json:"state"`
	DeliveredAt *time.Time           `json:"deliveredAt,omitempty"`
	ReadAt      *time.Time           `json:"readAt,omitempty"`
}

type ChatReadRequest struct {
	ChatID     string   `json:"chatId"`
	MessageIDs []string `json:"messageIds,omitempty"`
}

type ChatReadResponse struct {
	MessageIDs []string `json:"messageIds"`
}

type IsOnlineRequest struct {
	UserIDs []domain.UserID `json:"userIds"`
}

type IsOnlineResponse struct {
	Online map[domain.UserID]bool `json:"online"`
}

type OnlineUsersRequest struct{}

type OnlineUsersResponse struct {
	Users []domain.UserID `json:"users"`
}

type SetChatMembersRequest struct {
	ChatID  string          `json:"chatId"`
	Members []domain.UserID `json:"members"`
}

type SavePushSubscriptionRequest struct {
	Subscription domain.PushSubscription `json:"subscription"`
}

type RemovePushSubscriptionRequest struct {
	Endpoint string `json:"endpoint"`
}

type Empty struct{}

func toReceiptResponse(status domain.DeliveryStatus, applied bool) *ReceiptResponse {
	return &ReceiptResponse{
		Applied:     applied,
		State:       status.State,
		DeliveredAt: status.DeliveredAt,
		ReadAt:      status.ReadAt,
	}
}
