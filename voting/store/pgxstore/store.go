package pgxstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/screwyprof/stakevote/pkg/pgxdb"
	"github.com/screwyprof/stakevote/voting"
	"github.com/screwyprof/stakevote/voting/store/dbrow"
)

// Sentinel errors for store operations
var (
	ErrQueryFailed  = errors.New("vote query failed")
	ErrInsertFailed = errors.New("vote insert failed")
)

const (
	voteColumns = `id, wallet_address, token_address, token_name, token_symbol, staked_amount, analysis_data, timestamp`

	lastVoteSQL = `
		SELECT ` + voteColumns + `
		FROM votes
		WHERE wallet_address = $1
		ORDER BY timestamp DESC, id DESC
		LIMIT 1`

	// Newest conflicting vote inside the open window (at - cooldown, at + cooldown)
	conflictingVoteSQL = `
		SELECT timestamp
		FROM votes
		WHERE wallet_address = $1 AND timestamp > $2 AND timestamp < $3
		ORDER BY timestamp DESC
		LIMIT 1`

	insertVoteSQL = `
		INSERT INTO votes (wallet_address, token_address, token_name, token_symbol, staked_amount, analysis_data, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`

	// Byte-order collation on the final key so ties sort the same as in Go
	rankingsSQL = `
		SELECT
			token_address,
			(array_agg(token_name ORDER BY timestamp DESC, id DESC))[1] AS token_name,
			(array_agg(token_symbol ORDER BY timestamp DESC, id DESC))[1] AS token_symbol,
			SUM(staked_amount) AS total_stake,
			COUNT(*) AS vote_count,
			MAX(timestamp) AS last_vote
		FROM votes
		GROUP BY token_address
		ORDER BY total_stake DESC, vote_count DESC, last_vote DESC, token_address COLLATE "C" ASC`

	logsSQL = `
		SELECT ` + voteColumns + `
		FROM votes
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`

	voteCountSQL = `
		SELECT COUNT(*) FROM votes WHERE wallet_address = $1`

	insertSystemLogSQL = `
		INSERT INTO system_logs (type, message, related_id, data, timestamp)
		VALUES ($1, $2, $3, $4, $5)`

	systemLogsSQL = `
		SELECT id, type, message, related_id, data, timestamp
		FROM system_logs
		ORDER BY timestamp DESC, id DESC
		LIMIT $1`
)

// Store implements voting.Store using pgx
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

// LastVote returns the wallet's most recent vote or nil
func (s *Store) LastVote(ctx context.Context, wallet string) (*voting.VoteEntry, error) {
	rows, err := s.pool.Query(ctx, lastVoteSQL, wallet)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[dbrow.Vote])
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	vote := row.ToDomain()
	return &vote, nil
}

// InsertVote re-checks the cooldown under the wallet lock and inserts the vote
func (s *Store) InsertVote(ctx context.Context, entry voting.VoteEntry, cooldown time.Duration) (voting.EntryID, error) {
	var id int64
	err := pgxdb.InSerializableTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := pgxdb.LockKey(ctx, tx, entry.Wallet); err != nil {
			return err
		}

		var conflicting time.Time
		err := tx.QueryRow(ctx, conflictingVoteSQL,
			entry.Wallet, entry.Timestamp.Add(-cooldown), entry.Timestamp.Add(cooldown),
		).Scan(&conflicting)
		switch {
		case err == nil:
			return voting.NewCooldownError(conflicting, entry.Timestamp, cooldown)
		case !errors.Is(err, pgx.ErrNoRows):
			return fmt.Errorf("%w: %w", ErrQueryFailed, err)
		}

		err = tx.QueryRow(ctx, insertVoteSQL,
			entry.Wallet,
			entry.TokenAddress,
			entry.TokenName,
			entry.TokenSymbol,
			entry.StakedAmount,
			nullableJSON(entry.AnalysisData),
			entry.Timestamp,
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInsertFailed, err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return voting.EntryID(id), nil
}

// Rankings aggregates all votes per token
func (s *Store) Rankings(ctx context.Context) ([]voting.RankingRow, error) {
	rows, err := s.pool.Query(ctx, rankingsSQL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.RankingRow])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return dbrow.RankingsToDomain(collected), nil
}

// Logs returns up to limit votes, newest first
func (s *Store) Logs(ctx context.Context, limit int) ([]voting.VoteEntry, error) {
	rows, err := s.pool.Query(ctx, logsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	collected, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.Vote])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return dbrow.VotesToDomain(collected), nil
}

// VoteCount counts the wallet's votes
func (s *Store) VoteCount(ctx context.Context, wallet string) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, voteCountSQL, wallet).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	return n, nil
}

// AppendSystemLog appends an advisory log entry
func (s *Store) AppendSystemLog(ctx context.Context, log voting.SystemLog) error {
	ts := log.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := s.pool.Exec(ctx, insertSystemLogSQL,
		string(log.Type), log.Message, log.RelatedID, nullableJSON(log.Data), ts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsertFailed, err)
	}
	return nil
}

// ActivityLogs merges the newest votes and system logs
func (s *Store) ActivityLogs(ctx context.Context, limit int) ([]voting.Activity, error) {
	votes, err := s.Logs(ctx, limit)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, systemLogsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}
	logs, err := pgx.CollectRows(rows, pgx.RowToStructByName[dbrow.SystemLog])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrQueryFailed, err)
	}

	return voting.MergeActivity(votes, dbrow.SystemLogsToDomain(logs), limit), nil
}

// nullableJSON maps an empty document to SQL NULL
func nullableJSON(data []byte) any {
	if len(data) == 0 {
		return nil
	}
	return string(data)
}
