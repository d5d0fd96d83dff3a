package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"log/slog"
	"sort"
	"sync"
)

// PresenceTracker turns registry mutations into presence frames.
// It never holds a connection itself, every frame goes through the registry
// except the snapshot which is written straight to the new connection.
type PresenceTracker struct {
	mu       sync.RWMutex
	online   map[domain.UserID]struct{}
	registry contract.IRegistry
	log      *slog.Logger
}

var _ contract.IPresenceObserver = (*PresenceTracker)(nil)

func NewPresenceTracker(registry contract.IRegistry, log *slog.Logger) *PresenceTracker {
	return &PresenceTracker{
		online:   make(map[domain.UserID]struct{}),
		registry: registry,
		log:      log,
	}
}

// Seed hands the new connection its online_users snapshot.
func (p *PresenceTracker) Seed(conn contract.Connection, peers []domain.UserID) {
	data, err := event.Encode(event.OnlineUsers{Users: peers})
	if err != nil {
		p.log.Error("Unable to encode snapshot", "error", err)
		return
	}
	if err := conn.Send(data); err != nil {
		p.log.Warn("Snapshot not delivered", "user_id", conn.UserID(), "error", err)
	}
}

func (p *PresenceTracker) Observe(evt domain.PresenceEvent) {
	switch e := evt.(type) {
	case domain.UserOnline:
		p.OnUserOnline(e.UserID)
	case domain.UserOffline:
		p.OnUserOffline(e.UserID)
	default:
		p.log.Warn("Unknown presence event", "user_id", evt.User())
	}
}

// OnUserOnline announces userID to every other online user. A repeated call is ignored.
func (p *PresenceTracker) OnUserOnline(userID domain.UserID) {
	p.mu.Lock()
	if _, ok := p.online[userID]; ok {
		p.mu.Unlock()
		return
	}
	p.online[userID] = struct{}{}
	p.mu.Unlock()

	p.registry.Broadcast(event.UserOnline{UserID: userID}, userID)
}

func (p *PresenceTracker) OnUserOffline(userID domain.UserID) {
	p.mu.Lock()
	if _, ok := p.online[userID]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.online, userID)
	p.mu.Unlock()

	p.registry.Broadcast(event.UserOffline{UserID: userID}, userID)
}

// Snapshot is the current online set, sorted.
func (p *PresenceTracker) Snapshot() []domain.UserID {
	p.mu.RLock()
	defer p.mu.RUnlock()
	users := make([]domain.UserID, 0, len(p.online))
	for u := range p.online {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

func (p *PresenceTracker) IsOnline(userID domain.UserID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.online[userID]
	return ok
}
