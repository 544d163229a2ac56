package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"hash/fnv"
	"log/slog"

	"github.com/kirillkom/tradeflow/internal/core/domain"
)

// DefaultLockHolders leaves half of the pool for the queries fn runs while a lock is held.
const DefaultLockHolders = maxOpenConns / 2

// AdvisoryLocker serializes work per user across processes with session-level
// pg_advisory_lock held on a dedicated connection for the duration of fn.
// At most maxHolders connections are pinned at once.
type AdvisoryLocker struct {
	db        *sql.DB
	namespace string
	holders   chan struct{}
}

func NewAdvisoryLocker(db *sql.DB, namespace string, maxHolders int) *AdvisoryLocker {
	if maxHolders <= 0 {
		maxHolders = DefaultLockHolders
	}
	return &AdvisoryLocker{
		db:        db,
		namespace: namespace,
		holders:   make(chan struct{}, maxHolders),
	}
}

func (l *AdvisoryLocker) WithUserLock(ctx context.Context, userID string, fn func(context.Context) error) error {
	if userID == "" {
		return domain.WrapError(domain.ErrInvalidInput, "acquire user lock", errors.New("user id is required"))
	}

	select {
	case l.holders <- struct{}{}:
	case <-ctx.Done():
		return domain.WrapError(domain.ErrTemporary, "acquire user lock: slot", ctx.Err())
	}
	defer func() { <-l.holders }()

	conn, err := l.db.Conn(ctx)
	if err != nil {
		return mapError("acquire user lock: conn", err, nil)
	}
	defer conn.Close()

	key := l.key(userID)
	if _, err := conn.ExecContext(ctx, `SELECT pg_advisory_lock($1)`, key); err != nil {
		if ctx.Err() != nil {
			return domain.WrapError(domain.ErrTemporary, "acquire user lock", ctx.Err())
		}
		return mapError("acquire user lock", err, nil)
	}
	defer func() {
		// unlock even when ctx is already cancelled
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), `SELECT pg_advisory_unlock($1)`, key); err != nil {
			slog.Warn("user_lock_release_failed", "user_id", userID, "error", err)
			// a bad conn is dropped from the pool, which releases the session lock
			_ = conn.Raw(func(any) error { return driver.ErrBadConn })
		}
	}()

	return fn(ctx)
}

func (l *AdvisoryLocker) key(userID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(l.namespace))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(userID))
	return int64(h.Sum64())
}
