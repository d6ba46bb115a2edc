package reservation

import "sync"

// Store is the single source of truth for order state, keyed by scope.
// Values are copied in and out; only the engine loop mutates, but countdown
// refreshers read concurrently.
type Store struct {
	mu     sync.RWMutex
	orders map[string]Order
}

func NewStore() *Store {
	return &Store{orders: make(map[string]Order)}
}

func (s *Store) Get(scope string) (Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.orders[scope]
	return o, ok
}

func (s *Store) Put(o Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.Scope] = o
}

func (s *Store) Delete(scope string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.orders, scope)
}

// SessionStore caches per-buyer pre-reservation selections.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]Session)}
}

func (s *SessionStore) Get(buyer string) (Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[buyer]
	return sess, ok
}

func (s *SessionStore) Put(sess Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.Buyer] = sess
}
