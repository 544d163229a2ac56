// Package memory provides an in-process per-key lock for single-worker deployments and tests.
package memory

import (
	"context"
	"sync"
)

type KeyedLocker struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	sem  chan struct{}
	refs int
}

func NewKeyedLocker() *KeyedLocker {
	return &KeyedLocker{locks: make(map[string]*keyedLock)}
}

// WithUserLock runs fn while holding the lock for userID. Waiting honours ctx cancellation.
func (l *KeyedLocker) WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	lk := l.ref(userID)
	defer l.unref(userID, lk)

	select {
	case lk.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-lk.sem }()

	return fn(ctx)
}

func (l *KeyedLocker) ref(key string) *keyedLock {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk, ok := l.locks[key]
	if !ok {
		lk = &keyedLock{sem: make(chan struct{}, 1)}
		l.locks[key] = lk
	}
	lk.refs++
	return lk
}

func (l *KeyedLocker) unref(key string, lk *keyedLock) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lk.refs--
	if lk.refs == 0 {
		delete(l.locks, key)
	}
}

// size reports how many keys are currently held or awaited.
func (l *KeyedLocker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
