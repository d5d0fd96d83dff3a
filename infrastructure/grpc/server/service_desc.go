package server

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "chat.delivery.v1.DeliveryService"

const (
	RouteMethod                  = "/" + ServiceName + "/Route"
	MarkDeliveredMethod          = "/" + ServiceName + "/MarkDelivered"
	MarkReadMethod               = "/" + ServiceName + "/MarkRead"
	MarkChatReadMethod           = "/" + ServiceName + "/MarkChatRead"
	IsOnlineMethod               = "/" + ServiceName + "/IsOnline"
	OnlineUsersMethod            = "/" + ServiceName + "/OnlineUsers"
	SetChatMembersMethod         = "/" + ServiceName + "/SetChatMembers"
	SavePushSubscriptionMethod   = "/" + ServiceName + "/SavePushSubscription"
	RemovePushSubscriptionMethod = "/" + ServiceName + "/RemovePushSubscription"
)

type DeliveryServiceServer interface {
	Route(context.Context, *RouteRequest) (*RouteResponse, error)
	MarkDelivered(context.Context, *ReceiptRequest) (*ReceiptResponse, error)
	MarkRead(context.Context, *ReceiptRequest) (*ReceiptResponse, error)
	MarkChatRead(context.Context, *ChatReadRequest) (*ChatReadResponse, error)
	IsOnline(context.Context, *IsOnlineRequest) (*IsOnlineResponse, error)
	OnlineUsers(context.Context, *OnlineUsersRequest) (*OnlineUsersResponse, error)
	SetChatMembers(context.Context, *SetChatMembersRequest) (*Empty, error)
	SavePushSubscription(context.Context, *SavePushSubscriptionRequest) (*Empty, error)
	RemovePushSubscription(context.Context, *RemovePushSubscriptionRequest) (*Empty, error)
}

// DeliveryServiceDesc is written by hand, there is no .proto behind the JSON codec.
var DeliveryServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DeliveryServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Route", RouteMethod, DeliveryServiceServer.Route),
		unary("MarkDelivered", MarkDeliveredMethod, DeliveryServiceServer.MarkDelivered),
		unary("MarkRead", MarkReadMethod, DeliveryServiceServer.MarkRead),
		unary("MarkChatRead", MarkChatReadMethod, DeliveryServiceServer.MarkChatRead),
		unary("IsOnline", IsOnlineMethod, DeliveryServiceServer.IsOnline),
		unary("OnlineUsers", OnlineUsersMethod, DeliveryServiceServer.OnlineUsers),
		unary("SetChatMembers", SetChatMembersMethod, DeliveryServiceServer.SetChatMembers),
		unary("SavePushSubscription", SavePushSubscriptionMethod, DeliveryServiceServer.SavePushSubscription),
		unary("RemovePushSubscription", RemovePushSubscriptionMethod, DeliveryServiceServer.RemovePushSubscription),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "chat/delivery/v1/delivery.json",
}

func RegisterDeliveryServiceServer(s grpc.ServiceRegistrar, srv DeliveryServiceServer) {
	s.RegisterService(&DeliveryServiceDesc, srv)
}

// unary builds the method handler protoc would otherwise generate.
func unary[Req, Resp any](name, fullMethod string, call func(DeliveryServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(DeliveryServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(DeliveryServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}
