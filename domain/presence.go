package domain

// PresenceEvent is either UserOnline or UserOffline.
// Events are produced and consumed synchronously and never persisted.
type PresenceEvent interface {
	User() UserID
	presence()
}

type UserOnline struct {
	UserID UserID
}

func (e UserOnline) User() UserID { return e.UserID }
func (UserOnline) presence()      {}

type UserOffline struct {
	UserID UserID
}

func (e UserOffline) User() UserID { return e.UserID }
func (UserOffline) presence()      {}
