package client

import (
	"chat-relay/domain"
	"chat-relay/infrastructure/grpc/server"
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// DeliveryClient is what the CRUD layer embeds to reach the relay.
type DeliveryClient struct {
	cc grpc.ClientConnInterface
}

func NewDeliveryClient(cc grpc.ClientConnInterface) *DeliveryClient {
	return &DeliveryClient{cc: cc}
}

// WithToken attaches the bearer credential every relay call needs.
func WithToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+token)
}

func (c *DeliveryClient) Route(ctx context.Context, envelope domain.MessageEnvelope, recipients []domain.UserID) (*server.RouteResponse, error) {
	return call[server.RouteResponse](ctx, c, server.RouteMethod, &server.RouteRequest{Message: envelope, Recipients: recipients})
}

func (c *DeliveryClient) MarkDelivered(ctx context.Context, messageID string) (*server.ReceiptResponse, error) {
	return call[server.ReceiptResponse](ctx, c, server.MarkDeliveredMethod, &server.ReceiptRequest{MessageID: messageID})
}

func (c *DeliveryClient) MarkRead(ctx context.Context, messageID string) (*server.ReceiptResponse, error) {
	return call[server.ReceiptResponse](ctx, c, server.MarkReadMethod, &server.ReceiptRequest{MessageID: messageID})
}

func (c *DeliveryClient) MarkChatRead(ctx context.Context, chatID string, messageIDs ...string) (*server.ChatReadResponse, error) {
	return call[server.ChatReadResponse](ctx, c, server.MarkChatReadMethod, &server.ChatReadRequest{ChatID: chatID, MessageIDs: messageIDs})
}

func (c *DeliveryClient) IsOnline(ctx context.Context, userIDs ...domain.UserID) (map[domain.UserID]bool, error) {
	out := new(server.IsOnlineResponse)
	if err := c.invoke(ctx, server.IsOnlineMethod, &server.IsOnlineRequest{UserIDs: userIDs}, out); err != nil {
		return nil, err
	}
	return out.Online, nil
}

func (c *DeliveryClient) OnlineUsers(ctx context.Context) ([]domain.UserID, error) {
	out := new(server.OnlineUsersResponse)
	if err := c.invoke(ctx, server.OnlineUsersMethod, &server.OnlineUsersRequest{}, out); err != nil {
		return nil, err
	}
	return out.Users, nil
}

func (c *DeliveryClient) SetChatMembers(ctx context.Context, chatID string, members ...domain.UserID) error {
	return c.invoke(ctx, server.SetChatMembersMethod, &server.SetChatMembersRequest{ChatID: chatID, Members: members}, &server.Empty{})
}

func (c *DeliveryClient) SavePushSubscription(ctx context.Context, subscription domain.PushSubscription) error {
	return c.invoke(ctx, server.SavePushSubscriptionMethod, &server.SavePushSubscriptionRequest{Subscription: subscription}, &server.Empty{})
}

func (c *DeliveryClient) RemovePushSubscription(ctx context.Context, endpoint string) error {
	return c.invoke(ctx, server.RemovePushSubscriptionMethod, &server.RemovePushSubscriptionRequest{Endpoint: endpoint}, &server.Empty{})
}

func call[Resp any](ctx context.Context, c *DeliveryClient, method string, in any) (*Resp, error) {
	out := new(Resp)
	if err := c.invoke(ctx, method, in, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *DeliveryClient) invoke(ctx context.Context, method string, in, out any) error {
	return c.cc.Invoke(ctx, method, in, out, grpc.CallContentSubtype(server.CodecName))
}
