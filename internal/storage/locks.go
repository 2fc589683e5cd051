package db

import (
	"context"
	"fmt"
)

// TryAdvisoryLock attempts to take a session advisory lock on a dedicated
// connection, so the release is guaranteed to happen on the same session
// that acquired it. When the lock is held elsewhere it returns acquired
// false and no release func. The returned release must be called exactly
// once.
func (db *DB) TryAdvisoryLock(ctx context.Context, lockID int64) (release func(), acquired bool, err error) {
	conn, err := db.Pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		conn.Release()

		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}

	if !acquired {
		conn.Release()

		return nil, false, nil
	}

	release = func() {
		//nolint:errcheck // advisory unlock is best-effort, lock dies with the session anyway
		_, _ = conn.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", lockID)
		conn.Release()
	}

	return release, true, nil
}
