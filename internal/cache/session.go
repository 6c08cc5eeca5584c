package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// SessionStore holds per-session state, dropping sessions idle for longer than ttl.
// A session is the server-side counterpart of one browser tab.
type SessionStore[T any] struct {
	sessions *gocache.Cache
	ttl      time.Duration
	factory  func(id string) T
	mu       sync.Mutex
}

// NewSessionStore creates a store that builds new session values with factory
func NewSessionStore[T any](ttl time.Duration, factory func(id string) T) *SessionStore[T] {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	cleanup := ttl / 2
	if cleanup < time.Minute {
		cleanup = time.Minute
	}
	return &SessionStore[T]{
		sessions: gocache.New(ttl, cleanup),
		ttl:      ttl,
		factory:  factory,
	}
}

// Create starts a new session and returns its ID
func (s *SessionStore[T]) Create() (string, T) {
	id := uuid.New().String()
	val := s.factory(id)
	s.sessions.Set(id, val, s.ttl)
	return id, val
}

// Get returns the session and refreshes its idle timer
func (s *SessionStore[T]) Get(id string) (T, bool) {
	var zero T
	if id == "" {
		return zero, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	val, found := s.sessions.Get(id)
	if !found {
		return zero, false
	}
	s.sessions.Set(id, val, s.ttl)
	return val.(T), true
}

// GetOrCreate returns the live session for id. Any other id, including a
// well-formed one the store never issued, gets a fresh session under a new id.
func (s *SessionStore[T]) GetOrCreate(id string) (string, T) {
	if val, ok := s.Get(id); ok {
		return id, val
	}
	return s.Create()
}

// End drops a session and everything it holds
func (s *SessionStore[T]) End(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Delete(id)
}

// Len returns the number of live sessions
func (s *SessionStore[T]) Len() int {
	return s.sessions.ItemCount()
}
