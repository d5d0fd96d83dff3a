package errors

import "fmt"

var (
	ErrWorkerPanic = fmt.Errorf("worker panic")

	// Transport
	ErrConnectionClosed = fmt.Errorf("connection closed")
	ErrSendBufferFull   = fmt.Errorf("connection send buffer full")

	// Credentials
	ErrInvalidCredential = fmt.Errorf("invalid or missing credential")
	ErrForbidden         = fmt.Errorf("caller may not act for this user")

	// Delivery transitions
	ErrMessageNotFound = fmt.Errorf("message not found")
	ErrSelfReceipt     = fmt.Errorf("cannot acknowledge own message")
	ErrInvalidEnvelope = fmt.Errorf("invalid message envelope")

	// Storage
	ErrChatNotFound       = fmt.Errorf("chat not found")
	ErrTransitionConflict = fmt.Errorf("delivery transition kept conflicting")

	// Offline fallback
	ErrNoSubscription        = fmt.Errorf("no active push subscription")
	ErrNotificationQueueFull = fmt.Errorf("notification queue full")
	ErrSubscriptionGone      = fmt.Errorf("push subscription expired")

	// Wire protocol
	ErrInvalidFrame     = fmt.Errorf("invalid frame")
	ErrUnknownFrameType = fmt.Errorf("unknown frame type")
	ErrInvalidRequest   = fmt.Errorf("invalid request")
)
