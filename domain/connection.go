package domain

// ConnectionState is the liveness of one transport session.
type ConnectionState int32

const (
	ConnectionOpen ConnectionState = iota
	ConnectionClosing
	ConnectionClosed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionOpen:
		return "open"
	case ConnectionClosing:
		return "closing"
	case ConnectionClosed:
		return "closed"
	default:
		return "unknown"
	}
}
