package pgxstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/pgxdb"
	"github.com/screwyprof/stakevote/staking"
	"github.com/screwyprof/stakevote/staking/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed  = errors.New("stake query failed")
	ErrInsertFailed = errors.New("stake insert failed")
	ErrUpdateFailed = errors.New("pending transaction update failed")
)

const (
	insertStakeSQL = `
		INSERT INTO stakes (wallet_address, amount, signature)
		VALUES ($1, $2, $3)
		ON CONFLICT (signature) DO NOTHING
		RETURNING id`

	balanceSQL = `
		SELECT COALESCE(SUM(amount), 0) FROM stakes WHERE wallet_address = $1`

	totalStakedSQL = `
		SELECT
			COALESCE(SUM(net) FILTER (WHERE net > 0), 0),
			COUNT(*) FILTER (WHERE net < 0)
		FROM (
			SELECT SUM(amount) AS net FROM stakes GROUP BY wallet_address
		) nets`

	historySQL = `
		SELECT id, wallet_address, amount, signature, timestamp
		FROM stakes
		WHERE wallet_address = $1
		ORDER BY id DESC
		LIMIT $2`

	hasSignatureSQL = `
		SELECT EXISTS (SELECT 1 FROM stakes WHERE signature = $1)`

	reservedUnstakesSQL = `
		SELECT COALESCE(SUM(amount), 0)
		FROM pending_transactions
		WHERE wallet_address = $1 AND type = 'unstake' AND status = 'pending'`

	insertPendingSQL = `
		INSERT INTO pending_transactions (wallet_address, amount, type)
		VALUES ($1, $2, $3)
		RETURNING id`

	pendingColumns = `id, wallet_address, amount, type, status, created_at, completed_at, signature, error`

	latestPendingStakeSQL = `
		SELECT ` + pendingColumns + `
		FROM pending_transactions
		WHERE wallet_address = $1 AND type = 'stake' AND status = 'pending'
		ORDER BY id DESC
		LIMIT 1`

	pendingByWalletSQL = `
		SELECT ` + pendingColumns + `
		FROM pending_transactions
		WHERE wallet_address = $1
		ORDER BY id DESC`

	completePendingSQL = `
		UPDATE pending_transactions
		SET status = 'completed', signature = $2, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending'`

	failPendingSQL = `
		UPDATE pending_transactions
		SET status = 'failed', error = $2, completed_at = CURRENT_TIMESTAMP
		WHERE id = $1 AND status = 'pending'`
)

// Store implements staking.Store using pgx
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

// RecordDelta appends a stake; a known signature is reported as a duplicate.
// Debits go through RecordUnstake so the balance check cannot be bypassed.
func (s *Store) RecordDelta(ctx context.Context, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}
	return insertStake(ctx, s.pool, wallet, amount, signature)
}

// RecordUnstake appends -amount under the wallet lock if the balance covers it
func (s *Store) RecordUnstake(ctx context.Context, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	var id staking.EntryID
	err := pgxdb.InSerializableTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		id, err = recordUnstake(ctx, tx, wallet, amount, signature)
		return err
	})
	return id, err
}

// Balance returns the sum of the wallet's deltas
func (s *Store) Balance(ctx context.Context, wallet string) (decimal.Decimal, error) {
	return balance(ctx, s.pool, wallet)
}

// TotalStaked sums positive per-wallet nets and counts negative ones
func (s *Store) TotalStaked(ctx context.Context) (staking.Total, error) {
	var total staking.Total
	if err := s.pool.QueryRow(ctx, totalStakedSQL).Scan(&total.Amount, &total.NegativeWallets); err != nil {
		return staking.Total{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return total, nil
}

// HasSignature reports whether signature is in the ledger
func (s *Store) HasSignature(ctx context.Context, signature string) (bool, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, hasSignatureSQL, signature).Scan(&exists); err != nil {
		return false, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return exists, nil
}

// History returns up to limit of the wallet's entries, newest first
func (s *Store) History(ctx context.Context, wallet string, limit int) ([]staking.StakeEntry, error) {
	rows, err := s.pool.Query(ctx, historySQL, wallet, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.StakeEntry])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return dbrow.StakeEntriesToDomain(collected), nil
}

// CreatePendingStake opens a pending stake record
func (s *Store) CreatePendingStake(ctx context.Context, wallet string, amount decimal.Decimal) (staking.PendingID, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, insertPendingSQL, wallet, amount, string(staking.PendingStake)).Scan(&id); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return staking.PendingID(id), nil
}

// LatestPendingStake returns the newest open stake record for wallet
func (s *Store) LatestPendingStake(ctx context.Context, wallet string) (staking.PendingTransaction, error) {
	rows, err := s.pool.Query(ctx, latestPendingStakeSQL, wallet)
	if err != nil {
		return staking.PendingTransaction{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.PendingTransaction])
	if errors.Is(err, pgx.ErrNoRows) {
		return staking.PendingTransaction{}, staking.ErrNoPendingTransaction
	}
	if err != nil {
		return staking.PendingTransaction{}, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return row.ToDomain(), nil
}

// ReserveUnstake opens a pending unstake if the unreserved balance covers amount
func (s *Store) ReserveUnstake(ctx context.Context, wallet string, amount decimal.Decimal) (staking.PendingID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	var id int64
	err := pgxdb.InSerializableTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := pgxdb.LockKey(ctx, tx, wallet); err != nil {
			return err
		}

		available, err := balance(ctx, tx, wallet)
		if err != nil {
			return err
		}

		var reserved decimal.Decimal
		if err := tx.QueryRow(ctx, reservedUnstakesSQL, wallet).Scan(&reserved); err != nil {
			return fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}

		if available.Sub(reserved).LessThan(amount) {
			return staking.ErrInsufficientStake
		}

		if err := tx.QueryRow(ctx, insertPendingSQL, wallet, amount, string(staking.PendingUnstake)).Scan(&id); err != nil {
			return fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return staking.PendingID(id), nil
}

// CompleteUnstake records the unstake and completes its reservation in one transaction
func (s *Store) CompleteUnstake(ctx context.Context, pendingID staking.PendingID, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	var id staking.EntryID
	err := pgxdb.InSerializableTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		id, err = recordUnstake(ctx, tx, wallet, amount, signature)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, completePendingSQL, int64(pendingID), signature); err != nil {
			return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
		}
		return nil
	})
	return id, err
}

// CompletePending marks an open record completed
func (s *Store) CompletePending(ctx context.Context, id staking.PendingID, signature string) error {
	if _, err := s.pool.Exec(ctx, completePendingSQL, int64(id), signature); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return nil
}

// FailPending marks an open record failed
func (s *Store) FailPending(ctx context.Context, id staking.PendingID, reason string) error {
	if _, err := s.pool.Exec(ctx, failPendingSQL, int64(id), reason); err != nil {
		return fmt.Errorf("%w: %w", ErrUpdateFailed, err)
	}
	return nil
}

// PendingTransactions lists wallet records newest first
func (s *Store) PendingTransactions(ctx context.Context, wallet string) ([]staking.PendingTransaction, error) {
	rows, err := s.pool.Query(ctx, pendingByWalletSQL, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.PendingTransaction])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return dbrow.PendingTransactionsToDomain(collected), nil
}

// querier is satisfied by *pgxpool.Pool and pgx.Tx
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func balance(ctx context.Context, q querier, wallet string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	if err := q.QueryRow(ctx, balanceSQL, wallet).Scan(&sum); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return sum, nil
}

func insertStake(ctx context.Context, q querier, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	var id int64
	err := q.QueryRow(ctx, insertStakeSQL, wallet, amount, signature).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, staking.ErrDuplicateSignature
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return staking.EntryID(id), nil
}

// recordUnstake runs the balance check and insert under the wallet lock inside tx
func recordUnstake(ctx context.Context, tx pgx.Tx, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if err := pgxdb.LockKey(ctx, tx, wallet); err != nil {
		return 0, err
	}

	current, err := balance(ctx, tx, wallet)
	if err != nil {
		return 0, err
	}
	if current.LessThan(amount) {
		return 0, staking.ErrInsufficientStake
	}

	return insertStake(ctx, tx, wallet, amount.Neg(), signature)
}
