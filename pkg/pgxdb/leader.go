package pgxdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Leader election errors
var (
	ErrNotLeader         = errors.New("leader lock is held by another process")
	ErrLeaderLockFailure = errors.New("leader lock query failed")
	ErrLeadershipLost    = errors.New("leader lock connection lost")
)

// LeaderLockClass is the first half of the two-key advisory lock. The two-key
// form never collides with the single-key hashtext locks taken by LockKey.
const LeaderLockClass int32 = 0x53_56 // "SV"

// LeaderLock is a session-level advisory lock pinned to one pooled connection.
// The lock lives as long as the connection does, so a crashed leader frees it.
type LeaderLock struct {
	conn *pgxpool.Conn
	key  int32
}

// TryLeaderLock attempts to become leader once
func TryLeaderLock(ctx context.Context, pool *pgxpool.Pool, key int32) (*LeaderLock, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLeaderLockFailure, err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, "SELECT pg_try_advisory_lock($1, $2)", LeaderLockClass, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: %w", ErrLeaderLockFailure, err)
	}
	if !acquired {
		conn.Release()
		return nil, ErrNotLeader
	}

	return &LeaderLock{conn: conn, key: key}, nil
}

// WaitForLeadership retries TryLeaderLock every interval until it wins or ctx ends.
// onWait is called each time another process still holds the lock.
func WaitForLeadership(ctx context.Context, pool *pgxpool.Pool, key int32, interval time.Duration, onWait func()) (*LeaderLock, error) {
	for {
		lock, err := TryLeaderLock(ctx, pool, key)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrNotLeader) {
			return nil, err
		}
		if onWait != nil {
			onWait()
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(interval):
		}
	}
}

// Release gives up leadership and returns the connection to the pool
func (l *LeaderLock) Release(ctx context.Context) error {
	defer l.conn.Release()

	if _, err := l.conn.Exec(ctx, "SELECT pg_advisory_unlock($1, $2)", LeaderLockClass, l.key); err != nil {
		return fmt.Errorf("%w: %w", ErrLeaderLockFailure, err)
	}
	return nil
}

// Ping checks that the connection holding the lock is still alive
func (l *LeaderLock) Ping(ctx context.Context) error {
	if err := l.conn.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrLeadershipLost, err)
	}
	return nil
}

// Hold pings the lock every interval until ctx ends.
// It returns ErrLeadershipLost as soon as a ping fails; the caller must stop leading.
func (l *LeaderLock) Hold(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := l.Ping(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return err
			}
		}
	}
}
