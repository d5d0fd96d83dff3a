// Package domain contains core concepts of the delivery system.
// No runtime, network, or storage logic should be added here.
package domain

// UserID is the opaque identity shared with the user-account store.
// It keys every registry and presence lookup.
type UserID string

func (u UserID) String() string {
	return string(u)
}

// Sender carries the display fields routed with every message.
type Sender struct {
	ID       UserID `json:"_id" validate:"required"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Verified bool   `json:"verified"`
}

// DisplayName is what a push notification shows as its title.
func (s Sender) DisplayName() string {
	switch {
	case s.Name != "":
		return s.Name
	case s.Username != "":
		return s.Username
	default:
		return string(s.ID)
	}
}
