package errors

import (
	stderrors "errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// MapToGRPCError translates domain sentinels into gRPC status codes.
// Unknown errors become codes.Internal without leaking their message.
func MapToGRPCError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case stderrors.Is(err, ErrMessageNotFound),
		stderrors.Is(err, ErrChatNotFound):
		return status.Error(codes.NotFound, err.Error())
	case stderrors.Is(err, ErrSelfReceipt),
		stderrors.Is(err, ErrForbidden):
		return status.Error(codes.PermissionDenied, err.Error())
	case stderrors.Is(err, ErrInvalidEnvelope),
		stderrors.Is(err, ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case stderrors.Is(err, ErrInvalidCredential):
		return status.Error(codes.Unauthenticated, err.Error())
	default:
		return status.Error(codes.Internal, "internal error")
	}
}
