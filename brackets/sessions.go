package brackets

import (
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Session ties a connection to the bracket and user it joined as.
type Session struct {
	BracketID int
	UserFbID  string
}

// SessionRegistry maps connection ids to sessions.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{sessions: make(map[uuid.UUID]Session)}
}

// Register stores or replaces the session of a connection.
func (r *SessionRegistry) Register(id uuid.UUID, s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[id] = s
}

func (r *SessionRegistry) Get(id uuid.UUID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Remove deletes the session and returns what was registered.
func (r *SessionRegistry) Remove(id uuid.UUID) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	return s, ok
}

// OnlineUsers returns the distinct users with a live session in the bracket, sorted.
func (r *SessionRegistry) OnlineUsers(bracketID int) []string {
	r.mu.RLock()
	seen := make(map[string]struct{})
	for _, s := range r.sessions {
		if s.BracketID == bracketID {
			seen[s.UserFbID] = struct{}{}
		}
	}
	r.mu.RUnlock()

	users := make([]string, 0, len(seen))
	for u := range seen {
		users = append(users, u)
	}
	sort.Strings(users)
	return users
}
