// Package lock implements the keyed locks that serialize writers of a case.
package lock

import (
	"context"
	"sync"

	appleakage "github.com/spendaudit/backend/internal/application/leakage"
)

// LocalLocker is an in-process keyed lock. Waiters give up when their
// context is done. Idle keys are removed.
type LocalLocker struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	ch   chan struct{}
	refs int
}

// NewLocalLocker creates a LocalLocker
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{slots: make(map[string]*slot)}
}

// Acquire implements appleakage.Locker
func (l *LocalLocker) Acquire(ctx context.Context, key string) (appleakage.Lock, error) {
	l.mu.Lock()
	s, ok := l.slots[key]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[key] = s
	}
	s.refs++
	l.mu.Unlock()

	select {
	case s.ch <- struct{}{}:
		return &localLock{owner: l, key: key, slot: s}, nil
	case <-ctx.Done():
		l.release(key, s, false)
		return nil, ctx.Err()
	}
}

func (l *LocalLocker) release(key string, s *slot, held bool) {
	if held {
		<-s.ch
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, key)
	}
}

// keys returns the number of tracked keys
func (l *LocalLocker) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}

type localLock struct {
	owner *LocalLocker
	key   string
	slot  *slot
	once  sync.Once
}

// Release frees the key. Releasing twice is a no-op.
func (h *localLock) Release(context.Context) error {
	h.once.Do(func() {
		h.owner.release(h.key, h.slot, true)
	})
	return nil
}

var _ appleakage.Locker = (*LocalLocker)(nil)
