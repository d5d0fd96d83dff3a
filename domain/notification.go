package domain

import "time"

// VoicePlaceholder replaces the body of a voice message in offline notifications.
// The raw audio reference never leaves the core through a notification.
const VoicePlaceholder = "🎤 Voice message"

// Notification is the reduced payload handed to the offline fallback.
type Notification struct {
	Title string
	Body  string
	Data  map[string]string
}

// PushSubscription is one browser endpoint able to receive Web Push messages.
type PushSubscription struct {
	Endpoint  string    `json:"endpoint" validate:"required,url"`
	P256dh    string    `json:"p256dh" validate:"required"`
	Auth      string    `json:"auth" validate:"required"`
	UserAgent string    `json:"userAgent,omitempty"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updatedAt"`
}
