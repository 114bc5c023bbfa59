package auth

import (
	"sync"
	"time"
)

// stateStore tracks outstanding OAuth state values. Each state is single use
// and expires after a TTL. Expired entries are swept lazily on every call so
// the map never needs a background janitor.
type stateStore struct {
	mu    sync.Mutex
	items map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{
		items: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

func (s *stateStore) put(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	s.items[state] = s.now().Add(s.ttl)
}

// consume removes the state and reports whether it was present and unexpired.
func (s *stateStore) consume(state string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	exp, ok := s.items[state]
	if !ok {
		return false
	}
	delete(s.items, state)
	return s.now().Before(exp)
}

// sweep drops expired entries. Callers must hold the lock.
func (s *stateStore) sweep() {
	now := s.now()
	for state, exp := range s.items {
		if now.After(exp) {
			delete(s.items, state)
		}
	}
}
