// Package lock provides per-user locking for balance operations and game turns.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// userMutex is a one-slot semaphore so waiters can give up on context cancellation.
type userMutex struct {
	sem      chan struct{}
	refCount int
}

// UserLock serialises operations per Telegram user.
// Entries are dropped once nobody holds or waits for them.
type UserLock struct {
	mu      sync.Mutex
	locks   map[int64]*userMutex
	timeout time.Duration
}

// NewUserLock creates a UserLock. A positive timeout bounds every Lock call.
func NewUserLock(timeout time.Duration) *UserLock {
	return &UserLock{
		locks:   make(map[int64]*userMutex),
		timeout: timeout,
	}
}

func (ul *UserLock) acquireRef(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m, ok := ul.locks[userID]
	if !ok {
		m = &userMutex{sem: make(chan struct{}, 1)}
		ul.locks[userID] = m
	}
	m.refCount++
	return m
}

func (ul *UserLock) releaseRef(userID int64, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m.refCount--
	if m.refCount == 0 {
		delete(ul.locks, userID)
	}
}

// Lock blocks until the user's lock is held, the context ends or the
// configured timeout elapses.
func (ul *UserLock) Lock(ctx context.Context, userID int64) error {
	if ul.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ul.timeout)
		defer cancel()
	}

	m := ul.acquireRef(userID)
	select {
	case m.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		ul.releaseRef(userID, m)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrLockTimeout
		}
		return ctx.Err()
	}
}

// Unlock releases a lock taken with Lock.
func (ul *UserLock) Unlock(userID int64) {
	ul.mu.Lock()
	m, ok := ul.locks[userID]
	ul.mu.Unlock()
	if !ok {
		return
	}
	select {
	case <-m.sem:
		ul.releaseRef(userID, m)
	default:
	}
}

// LockPair locks two users in ascending ID order and returns the matching unlock.
// Locking a user with themselves takes the lock once.
func (ul *UserLock) LockPair(ctx context.Context, a, b int64) (func(), error) {
	if a == b {
		if err := ul.Lock(ctx, a); err != nil {
			return nil, err
		}
		return func() { ul.Unlock(a) }, nil
	}
	first, second := a, b
	if first > second {
		first, second = second, first
	}
	if err := ul.Lock(ctx, first); err != nil {
		return nil, err
	}
	if err := ul.Lock(ctx, second); err != nil {
		ul.Unlock(first)
		return nil, err
	}
	return func() {
		ul.Unlock(second)
		ul.Unlock(first)
	}, nil
}

// Len returns the number of tracked users.
func (ul *UserLock) Len() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}
