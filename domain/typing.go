package domain

// TypingSignal is ephemeral: no persistence, best-effort ordering per connection.
type TypingSignal struct {
	ChatID   string
	UserID   UserID
	IsTyping bool
}
