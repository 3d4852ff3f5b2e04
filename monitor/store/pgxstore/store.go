package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors for store operations
var (
	ErrCheckpointFailed    = errors.New("checkpoint update failed")
	ErrLastSignatureFailed = errors.New("failed to get last signature")
)

const (
	lastSignatureSQL = `
		SELECT COALESCE(last_signature, '') FROM monitor_checkpoint`

	saveSignatureSQL = `
		INSERT INTO monitor_checkpoint (single_row, last_signature, updated_at)
		VALUES (TRUE, $1, CURRENT_TIMESTAMP)
		ON CONFLICT (single_row) DO UPDATE
		SET last_signature = EXCLUDED.last_signature, updated_at = EXCLUDED.updated_at`
)

// Store implements monitor.CheckpointStore using pgx
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with an existing connection pool
// Returns the store and a closer function
func New(pool *pgxpool.Pool) (*Store, func()) {
	store := &Store{pool: pool}
	closer := func() {
		pool.Close()
	}
	return store, closer
}

// LastSignature returns the high-water mark, empty when none was saved yet
func (s *Store) LastSignature(ctx context.Context) (string, error) {
	var sig string
	err := s.pool.QueryRow(ctx, lastSignatureSQL).Scan(&sig)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrLastSignatureFailed, err)
	}
	return sig, nil
}

// SaveSignature moves the high-water mark to signature
func (s *Store) SaveSignature(ctx context.Context, signature string) error {
	if _, err := s.pool.Exec(ctx, saveSignatureSQL, signature); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointFailed, err)
	}
	return nil
}
