package pgxdb

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// MaxSerializableAttempts bounds how often a serializable unit of work is replayed
const MaxSerializableAttempts = 5

// SQLSTATE codes that mean "replay the transaction"
const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
)

// Sentinel errors for transactional helpers
var (
	ErrBeginTx          = errors.New("failed to begin transaction")
	ErrCommitTx         = errors.New("failed to commit transaction")
	ErrRetriesExhausted = errors.New("serializable transaction retries exhausted")
	ErrAdvisoryLock     = errors.New("failed to take advisory lock")
)

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// InSerializableTx runs fn inside a SERIALIZABLE transaction and commits it.
// Serialization failures and deadlocks replay fn from scratch, so fn must not
// have side effects outside tx.
func InSerializableTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	var lastErr error
	for range MaxSerializableAttempts {
		err := runTx(ctx, db, fn)
		if err == nil {
			return nil
		}
		if !IsSerializationFailure(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr)
}

func runTx(ctx context.Context, db TxBeginner, fn func(pgx.Tx) error) error {
	tx, err := db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginTx, err)
	}
	defer func() { _ = tx.Rollback(ctx) }() // No-op if commit succeeds

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrCommitTx, err)
	}
	return nil
}

// LockKey takes a transaction-scoped advisory lock on the hash of key.
// Used to serialize check-then-act sequences per wallet.
func LockKey(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", key); err != nil {
		return fmt.Errorf("%w: %w", ErrAdvisoryLock, err)
	}
	return nil
}

// IsSerializationFailure reports whether err asks for the transaction to be replayed
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == sqlStateSerializationFailure || pgErr.Code == sqlStateDeadlockDetected
}

// IsUniqueViolation reports whether err is a unique constraint violation
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == sqlStateUniqueViolation
}
