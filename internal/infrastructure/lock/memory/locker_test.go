package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestWithUserLockSerializesSameUser(t *testing.T) {
	locker := NewKeyedLocker()
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithUserLock(context.Background(), "u-1", func(context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(2 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Fatalf("expected at most 1 holder for the same user, got %d", maxInside)
	}
	if locker.size() != 0 {
		t.Fatalf("expected lock table to be empty, got %d", locker.size())
	}
}

func TestWithUserLockAllowsDifferentUsers(t *testing.T) {
	locker := NewKeyedLocker()
	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- locker.WithUserLock(context.Background(), "u-1", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := locker.WithUserLock(ctx, "u-2", func(context.Context) error { return nil }); err != nil {
		t.Fatalf("different user must not block: %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first holder error: %v", err)
	}
}

func TestWithUserLockHonoursContextWhileWaiting(t *testing.T) {
	locker := NewKeyedLocker()
	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = locker.WithUserLock(context.Background(), "u-1", func(context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := locker.WithUserLock(ctx, "u-1", func(context.Context) error {
		t.Fatalf("fn must not run without the lock")
		return nil
	})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestWithUserLockPropagatesError(t *testing.T) {
	locker := NewKeyedLocker()
	want := errors.New("boom")
	if err := locker.WithUserLock(context.Background(), "u-1", func(context.Context) error { return want }); !errors.Is(err, want) {
		t.Fatalf("expected fn error, got %v", err)
	}
}
