package game

import (
	"sync"
	"time"
)

// Key identifies a session: one per user per chat.
type Key struct {
	ChatID int64
	UserID int64
}

type entry[T any] struct {
	value   T
	touched time.Time
}

// Sessions is an in-memory, mutex-protected session table with idle expiry.
// Sessions are lost on restart.
type Sessions[T any] struct {
	mu    sync.Mutex
	items map[Key]*entry[T]
	ttl   time.Duration
	now   func() time.Time
}

// NewSessions creates a table whose entries expire after ttl of inactivity.
// A zero ttl disables expiry.
func NewSessions[T any](ttl time.Duration) *Sessions[T] {
	return &Sessions[T]{
		items: make(map[Key]*entry[T]),
		ttl:   ttl,
		now:   time.Now,
	}
}

// Get returns the session for key and marks it active.
func (s *Sessions[T]) Get(key Key) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	e.touched = s.now()
	return e.value, true
}

// Put stores v, replacing any existing session.
func (s *Sessions[T]) Put(key Key, v T) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[key] = &entry[T]{value: v, touched: s.now()}
}

// Start stores v unless key holds a session that busy reports as still in
// play. A nil busy treats every existing session as in play.
func (s *Sessions[T]) Start(key Key, v T, busy func(T) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.items[key]; ok && (busy == nil || busy(e.value)) {
		return ErrAlreadyInGame
	}
	s.items[key] = &entry[T]{value: v, touched: s.now()}
	return nil
}

// Delete removes and returns the session for key.
func (s *Sessions[T]) Delete(key Key) (T, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.items[key]
	if !ok {
		var zero T
		return zero, false
	}
	delete(s.items, key)
	return e.value, true
}

// Len returns the number of live sessions.
func (s *Sessions[T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Sweep removes sessions idle for longer than the ttl and returns them so
// the caller can settle anything they still hold.
func (s *Sessions[T]) Sweep() map[Key]T {
	if s.ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := s.now().Add(-s.ttl)
	var expired map[Key]T
	for k, e := range s.items {
		if e.touched.Before(cutoff) {
			if expired == nil {
				expired = make(map[Key]T)
			}
			expired[k] = e.value
			delete(s.items, k)
		}
	}
	return expired
}
