package runtime

import (
	"chat-relay/contract"
	"chat-relay/domain"
	"chat-relay/domain/event"
	"log/slog"
	"sort"
	"sync"
)

// Registry is the single owner of live connections, one per user.
// registration serializes Register/Unregister together with the presence events they emit,
// so observers see online/offline in the same order the map changed.
type Registry struct {
	registration sync.Mutex
	mu           sync.RWMutex
	sessions     map[domain.UserID]contract.Connection
	observer     contract.IPresenceObserver
	log          *slog.Logger
}

var _ contract.IRegistry = (*Registry)(nil)

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		sessions: make(map[domain.UserID]contract.Connection),
		log:      log,
	}
}

// WithObserver plugs the presence tracker in. It must be called before the first Register.
func (r *Registry) WithObserver(observer contract.IPresenceObserver) *Registry {
	r.observer = observer
	return r
}

// Register stores conn as the live connection of userID.
// A previous connection is replaced, without any presence change, and closed in the background:
// closing a socket may wait on a slow peer and no lock is held while it does.
// The observer seeds conn while the map lock is held so no other frame can precede the snapshot.
func (r *Registry) Register(userID domain.UserID, conn contract.Connection) {
	r.registration.Lock()
	defer r.registration.Unlock()

	r.mu.Lock()
	previous, existed := r.sessions[userID]
	r.sessions[userID] = conn
	if r.observer != nil {
		r.observer.Seed(conn, r.peersLocked(userID))
	}
	r.mu.Unlock()

	if existed && previous != conn {
		r.log.Info("Connection superseded", "user_id", userID, "previous", previous.ID(), "current", conn.ID())
		go r.closeQuietly(userID, previous, "Closing superseded connection")
	}
	if existed {
		return
	}
	r.log.Debug("User online", "user_id", userID, "conn_id", conn.ID())
	if r.observer != nil {
		r.observer.Observe(domain.UserOnline{UserID: userID})
	}
}

// Unregister removes conn only when it is still the stored connection of userID.
// A stale connection that was already superseded reports false and emits nothing.
func (r *Registry) Unregister(userID domain.UserID, conn contract.Connection) bool {
	r.registration.Lock()
	defer r.registration.Unlock()

	r.mu.Lock()
	current, ok := r.sessions[userID]
	if !ok || current != conn {
		r.mu.Unlock()
		return false
	}
	delete(r.sessions, userID)
	r.mu.Unlock()

	r.log.Debug("User offline", "user_id", userID, "conn_id", conn.ID())
	if r.observer != nil {
		r.observer.Observe(domain.UserOffline{UserID: userID})
	}
	return true
}

// Send is best effort: false when the user has no connection or the frame could not be queued.
func (r *Registry) Send(userID domain.UserID, frame event.Outbound) bool {
	data, err := event.Encode(frame)
	if err != nil {
		r.log.Error("Unable to encode frame", "type", frame.FrameType(), "error", err)
		return false
	}

	r.mu.RLock()
	conn, ok := r.sessions[userID]
	if !ok {
		r.mu.RUnlock()
		return false
	}
	err = conn.Send(data)
	r.mu.RUnlock()

	if err != nil {
		r.evict(userID, conn, err)
		return false
	}
	return true
}

// Broadcast sends frame to every live connection except the excluded users.
func (r *Registry) Broadcast(frame event.Outbound, exclude ...domain.UserID) {
	data, err := event.Encode(frame)
	if err != nil {
		r.log.Error("Unable to encode frame", "type", frame.FrameType(), "error", err)
		return
	}
	skip := make(map[domain.UserID]struct{}, len(exclude))
	for _, u := range exclude {
		skip[u] = struct{}{}
	}

	type failure struct {
		userID domain.UserID
		conn   contract.Connection
		err    error
	}
	var failures []failure

	r.mu.RLock()
	for userID, conn := range r.sessions {
		if _, ok := skip[userID]; ok {
			continue
		}
		if err := conn.Send(data); err != nil {
			failures = append(failures, failure{userID, conn, err})
		}
	}
	r.mu.RUnlock()

	for _, f := range failures {
		r.evict(f.userID, f.conn, f.err)
	}
}

func (r *Registry) IsOnline(userID domain.UserID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// OnlineUsers is sorted for stable output.
func (r *Registry) OnlineUsers() []domain.UserID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.peersLocked("")
}

// Count is the number of live connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

func (r *Registry) peersLocked(self domain.UserID) []domain.UserID {
	users := make([]domain.UserID, 0, len(r.sessions))
	for userID := range r.sessions {
		if userID != self {
			users = append(users, userID)
		}
	}
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}

// evict drops a connection that failed a write. Close and Unregister run on their own goroutine
// because the caller may itself hold the registration lock (presence fan-out).
func (r *Registry) evict(userID domain.UserID, conn contract.Connection, cause error) {
	r.log.Warn("Dropping failing connection", "user_id", userID, "conn_id", conn.ID(), "error", cause)
	go func() {
		r.closeQuietly(userID, conn, "Closing failing connection")
		r.Unregister(userID, conn)
	}()
}

func (r *Registry) closeQuietly(userID domain.UserID, conn contract.Connection, msg string) {
	if err := conn.Close(); err != nil {
		r.log.Debug(msg, "user_id", userID, "conn_id", conn.ID(), "error", err)
	}
}
