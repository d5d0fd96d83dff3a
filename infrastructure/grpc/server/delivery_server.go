package server

import (
	"chat-relay/auth"
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/errors"
	"chat-relay/services"
	"context"
	"fmt"
	"log/slog"

	grpcsdk "github.com/mama165/sdk-go/grpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// DeliveryServer is the internal API of the CRUD layer. Every call acts as the token's user.
type DeliveryServer struct {
	service services.IDeliveryService
	log     *slog.Logger
}

var _ DeliveryServiceServer = (*DeliveryServer)(nil)

func NewDeliveryServer(service services.IDeliveryService, log *slog.Logger) *DeliveryServer {
	return &DeliveryServer{service: service, log: log}
}

// NewGRPCServer builds a server with logging and JWT interceptors, the delivery service and health.
func NewGRPCServer(service services.IDeliveryService, verifier contract.IIdentityVerifier, log *slog.Logger) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			grpcsdk.UnaryLoggingInterceptor(log),
			auth.NewAuthInterceptor(verifier, healthpb.Health_Check_FullMethodName),
		))
	RegisterDeliveryServiceServer(s, NewDeliveryServer(service, log))

	healthServer := health.NewServer()
	healthServer.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthServer)
	return s, healthServer
}

// Route is called after the message is persisted. The caller must be the sender.
func (s *DeliveryServer) Route(ctx context.Context, req *RouteRequest) (*RouteResponse, error) {
	caller, err := subject(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if req.Message.Sender.ID != caller {
		return nil, errors.MapToGRPCError(fmt.Errorf("%w: routing as %s", errors.ErrForbidden, req.Message.Sender.ID))
	}
	result, err := s.service.Route(ctx, req.Message, req.Recipients)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &RouteResponse{Live: result.Live, Fallback: result.Fallback}, nil
}

func (s *DeliveryServer) MarkDelivered(ctx context.Context, req *ReceiptRequest) (*ReceiptResponse, error) {
	caller, err := subject(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	status, applied, err := s.service.MarkDelivered(ctx, caller, req.MessageID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toReceiptResponse(status, applied), nil
}

func (s *DeliveryServer) MarkRead(ctx context.Context, req *ReceiptRequest) (*ReceiptResponse, error) {
	caller, err := subject(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	status, applied, err := s.service.MarkRead(ctx, caller, req.MessageID)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return toReceiptResponse(status, applied), nil
}

// MarkChatRead returns only the error status when a transition fails midway.
// Reads applied before the failure stay applied and their senders are still told; the count is logged.
func (s *DeliveryServer) MarkChatRead(ctx context.Context, req *ChatReadRequest) (*ChatReadResponse, error) {
	caller, err := subject(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	ids, err := s.service.MarkChatRead(ctx, caller, req.ChatID, req.MessageIDs)
	if err != nil {
		s.log.Warn("Chat read partially applied", "chat_id", req.ChatID, "applied", len(ids), "error", err)
		return nil, errors.MapToGRPCError(err)
	}
	if ids == nil {
		ids = []string{}
	}
	return &ChatReadResponse{MessageIDs: ids}, nil
}

func (s *DeliveryServer) IsOnline(_ context.Context, req *IsOnlineRequest) (*IsOnlineResponse, error) {
	return &IsOnlineResponse{Online: s.service.OnlineStatus(req.UserIDs)}, nil
}

func (s *DeliveryServer) OnlineUsers(context.Context, *OnlineUsersRequest) (*OnlineUsersResponse, error) {
	return &OnlineUsersResponse{Users: s.service.OnlineUsers()}, nil
}

func (s *DeliveryServer) SetChatMembers(_ context.Context, req *SetChatMembersRequest) (*Empty, error) {
	if err := s.service.SetChatMembers(req.ChatID, req.Members); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &Empty{}, nil
}

func (s *DeliveryServer) SavePushSubscription(ctx context.Context, req *SavePushSubscriptionRequest) (*Empty, error) {
	caller, err := subject(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if err := s.service.SavePushSubscription(caller, req.Subscription); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &Empty{}, nil
}

func (s *DeliveryServer) RemovePushSubscription(ctx context.Context, req *RemovePushSubscriptionRequest) (*Empty, error) {
	caller, err := subject(ctx)
	if err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	if err := s.service.RemovePushSubscription(caller, req.Endpoint); err != nil {
		return nil, errors.MapToGRPCError(err)
	}
	return &Empty{}, nil
}

func subject(ctx context.Context) (domain.UserID, error) {
	userID, ok := auth.UserIDFromContext(ctx)
	if !ok || userID == "" {
		return "", errors.ErrInvalidCredential
	}
	return userID, nil
}
