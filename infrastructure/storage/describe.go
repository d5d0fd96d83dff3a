package storage

import (
	"fmt"
	"strings"
)

// Describe renders a raw ledger entry for the debug inspector.
// kind is the key family, detail a short human summary of the value.
func Describe(key string, val []byte) (kind string, detail string) {
	switch {
	case strings.HasPrefix(key, "status:"):
		var s diskStatus
		if err := unmarshal(val, &s); err != nil {
			return "STATUS", "unreadable: " + err.Error()
		}
		return "STATUS", fmt.Sprintf("%s by %s in %s", s.State, s.SenderID, s.ChatID)
	case strings.HasPrefix(key, "chat:"):
		return "INDEX", "-> " + string(val)
	case strings.HasPrefix(key, "members:"):
		var members []string
		if err := unmarshal(val, &members); err != nil {
			return "MEMBERS", "unreadable: " + err.Error()
		}
		return "MEMBERS", strings.Join(members, ", ")
	case strings.HasPrefix(key, "subidx:"):
		return "SUBIDX", "owner " + string(val)
	case strings.HasPrefix(key, "sub:"):
		var s diskSubscription
		if err := unmarshal(val, &s); err != nil {
			return "SUB", "unreadable: " + err.Error()
		}
		return "SUB", fmt.Sprintf("%s active=%t", s.Endpoint, s.Active)
	default:
		return "RAW", fmt.Sprintf("%d bytes", len(val))
	}
}
