// Package lock provides per-user mutual exclusion. The session manager
// and reward paths run every flow transition for a user inside that
// user's lock, so concurrent duplicate submissions are sequenced and the
// later one observes the post-transition state.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTimeout is returned when a lock cannot be acquired within the
// caller's deadline.
var ErrTimeout = errors.New("lock acquisition timeout")

// userMutex wraps a mutex with a reference count so idle entries can be
// evicted and recycled.
type userMutex struct {
	mu  sync.Mutex
	ref int
}

// UserLock keys mutexes by user ID. Entries exist only while someone
// holds or waits for them; the last releaser evicts the entry and
// returns it to the pool, so the map stays proportional to concurrent
// users rather than total users ever seen.
type UserLock struct {
	mu    sync.Mutex
	locks map[int64]*userMutex
	pool  sync.Pool
}

// NewUserLock creates a new UserLock instance.
func NewUserLock() *UserLock {
	return &UserLock{
		locks: make(map[int64]*userMutex),
		pool: sync.Pool{
			New: func() any {
				return &userMutex{}
			},
		},
	}
}

// acquireRef pins the user's mutex entry, creating it on first use.
func (ul *UserLock) acquireRef(userID int64) *userMutex {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m, ok := ul.locks[userID]
	if !ok {
		m = ul.pool.Get().(*userMutex)
		ul.locks[userID] = m
	}
	m.ref++
	return m
}

// releaseRef unpins the entry; the last reference evicts it.
func (ul *UserLock) releaseRef(userID int64, m *userMutex) {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	m.ref--
	if m.ref == 0 {
		delete(ul.locks, userID)
		ul.pool.Put(m)
	}
}

func (ul *UserLock) size() int {
	ul.mu.Lock()
	defer ul.mu.Unlock()
	return len(ul.locks)
}

// Lock acquires the lock for a user.
func (ul *UserLock) Lock(userID int64) {
	ul.acquireRef(userID).mu.Lock()
}

// Unlock releases the lock for a user. Must pair with a successful Lock
// or TryLock.
func (ul *UserLock) Unlock(userID int64) {
	ul.mu.Lock()
	m := ul.locks[userID]
	ul.mu.Unlock()
	if m == nil {
		return
	}
	m.mu.Unlock()
	ul.releaseRef(userID, m)
}

// TryLock attempts to acquire the lock without blocking.
func (ul *UserLock) TryLock(userID int64) bool {
	m := ul.acquireRef(userID)
	if m.mu.TryLock() {
		return true
	}
	ul.releaseRef(userID, m)
	return false
}

// WithLock executes fn while holding the user's lock.
func (ul *UserLock) WithLock(userID int64, fn func() error) error {
	ul.Lock(userID)
	defer ul.Unlock(userID)
	return fn()
}

// WithLockTimeout executes fn while holding the user's lock, giving up
// with ErrTimeout if the lock cannot be acquired in time. No operation
// blocks indefinitely on a stuck peer.
func (ul *UserLock) WithLockTimeout(ctx context.Context, userID int64, timeout time.Duration, fn func() error) error {
	m := ul.acquireRef(userID)

	acquired := make(chan struct{})
	go func() {
		m.mu.Lock()
		close(acquired)
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case <-acquired:
		defer ul.releaseRef(userID, m)
		defer m.mu.Unlock()
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn()
	case <-timeoutCtx.Done():
		// The waiting goroutine will eventually acquire; release it and
		// drop our pin only then, so the entry cannot be recycled under
		// a live waiter.
		go func() {
			<-acquired
			m.mu.Unlock()
			ul.releaseRef(userID, m)
		}()
		return ErrTimeout
	}
}
