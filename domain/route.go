package domain

// RouteResult tells which recipients got a live push and which went through the fallback.
// A recipient appears in exactly one of the two lists.
type RouteResult struct {
	Live     []UserID
	Fallback []UserID
}
