//go:build acceptance

package monitor_test

import (
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/migrator/migratortest"
	"github.com/screwyprof/stakevote/monitor"
	"github.com/screwyprof/stakevote/monitor/store/pgxstore"
	"github.com/screwyprof/stakevote/monitor/testcfg"
	"github.com/screwyprof/stakevote/pkg/pgxdb"
	stakingstore "github.com/screwyprof/stakevote/staking/store/pgxstore"
)

const migrationsDir = "../migrator/migrations"

// TestMonitorAcceptanceBehavior runs the monitor against PostgreSQL with a scripted chain
func TestMonitorAcceptanceBehavior(t *testing.T) {
	t.Parallel()

	t.Run("it records deposits after the stored checkpoint and advances it", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := migratortest.CreateMonitorTestDatabase(t, migrationsDir, "sig-0")
		c := newFakeChain()
		c.add(failed(deposit("sig-0", "wallet-0", "999")))
		c.add(deposit("sig-1", "wallet-1", "100"))
		c.add(deposit("sig-2", "wallet-2", "250.5"))
		c.add(deposit("sig-3", "wallet-1", "50"))
		ledger, checkpoints := createStores(db)

		// Act
		events := runUntil(t, createTestService(c, ledger, checkpoints), noDrive, stopOn[monitor.ReconciliationCompleted](1))

		// Assert
		assert.Equal(t, []string{"sig-1", "sig-2", "sig-3"}, recordedSignatures(events))
		assertStoredBalance(t, ledger, "wallet-1", "150")
		assertStoredBalance(t, ledger, "wallet-2", "250.5")
		assertCheckpoint(t, checkpoints, "sig-3")
	})

	t.Run("it resumes from the checkpoint after a restart without double counting", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := migratortest.CreateMonitorTestDatabase(t, migrationsDir, "sig-0")
		c := newFakeChain()
		c.add(failed(deposit("sig-0", "wallet-0", "999")))
		c.add(deposit("sig-1", "wallet-1", "100"))
		ledger, checkpoints := createStores(db)
		runUntil(t, createTestService(c, ledger, checkpoints), noDrive, stopOn[monitor.ReconciliationCompleted](1))
		c.add(deposit("sig-2", "wallet-1", "40"))

		// Act
		events := runUntil(t, createTestService(c, ledger, checkpoints), noDrive, stopOn[monitor.ReconciliationCompleted](1))

		// Assert
		assert.Equal(t, []string{"sig-2"}, recordedSignatures(events))
		assertStoredBalance(t, ledger, "wallet-1", "140")
		assertCheckpoint(t, checkpoints, "sig-2")
	})

	t.Run("it lets only one monitor lead", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := migratortest.CreateMonitorTestDatabase(t, migrationsDir, "sig-0")
		key := testcfg.New().LeaderLockKey
		leader, err := pgxdb.TryLeaderLock(t.Context(), db, key)
		require.NoError(t, err)

		// Act
		_, contender := pgxdb.TryLeaderLock(t.Context(), db, key)
		require.NoError(t, leader.Release(t.Context()))
		successor, afterRelease := pgxdb.TryLeaderLock(t.Context(), db, key)

		// Assert
		assert.ErrorIs(t, contender, pgxdb.ErrNotLeader)
		require.NoError(t, afterRelease)
		assert.NoError(t, successor.Release(t.Context()))
	})

	t.Run("it does not contend with single key advisory locks", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := migratortest.CreateMonitorTestDatabase(t, migrationsDir, "sig-0")
		key := testcfg.New().LeaderLockKey
		conn, err := db.Acquire(t.Context())
		require.NoError(t, err)
		defer conn.Release()
		_, err = conn.Exec(t.Context(), "SELECT pg_advisory_lock($1::bigint)", int64(key))
		require.NoError(t, err)

		// Act
		leader, err := pgxdb.TryLeaderLock(t.Context(), db, key)

		// Assert
		require.NoError(t, err)
		assert.NoError(t, leader.Release(t.Context()))
		_, err = conn.Exec(t.Context(), "SELECT pg_advisory_unlock($1::bigint)", int64(key))
		assert.NoError(t, err)
	})

	t.Run("it reports lost leadership when the lock connection dies", func(t *testing.T) {
		t.Parallel()

		// Arrange
		db := migratortest.CreateMonitorTestDatabase(t, migrationsDir, "sig-0")
		key := testcfg.New().LeaderLockKey
		leader, err := pgxdb.TryLeaderLock(t.Context(), db, key)
		require.NoError(t, err)
		require.NoError(t, leader.Ping(t.Context()))

		// Act
		_, err = db.Exec(t.Context(), `
			SELECT pg_terminate_backend(pid) FROM pg_locks
			WHERE locktype = 'advisory' AND classid = $1 AND objid = $2`,
			uint32(pgxdb.LeaderLockClass), uint32(key))
		require.NoError(t, err)
		holdErr := leader.Hold(t.Context(), 10*time.Millisecond)
		successor, afterLoss := pgxdb.TryLeaderLock(t.Context(), db, key)

		// Assert
		assert.ErrorIs(t, holdErr, pgxdb.ErrLeadershipLost)
		require.NoError(t, afterLoss)
		assert.NoError(t, successor.Release(t.Context()))
		_ = leader.Release(t.Context())
	})
}

// createStores builds the ledger and checkpoint stores over a shared pool.
// The pool is closed by the test database cleanup.
func createStores(db *pgxpool.Pool) (*stakingstore.Store, *pgxstore.Store) {
	ledger, _ := stakingstore.New(db)
	checkpoints, _ := pgxstore.New(db)
	return ledger, checkpoints
}

// createTestService wires a monitor that ticks on the test poll interval
func createTestService(c *fakeChain, ledger *stakingstore.Store, checkpoints *pgxstore.Store) *monitor.Service {
	cfg := testcfg.New()
	processor := monitor.NewProcessor(c, ledger, paymentAddress, tokenMint, monitor.WithRetryClock(&instantClock{}))
	return monitor.NewService(c, checkpoints, processor, monitor.WithPollInterval(cfg.PollInterval))
}

func assertStoredBalance(t *testing.T, ledger *stakingstore.Store, wallet, want string) {
	t.Helper()
	got, err := ledger.Balance(t.Context(), wallet)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(want).Equal(got), "balance of %s: want %s, got %s", wallet, want, got)
}

func assertCheckpoint(t *testing.T, checkpoints *pgxstore.Store, want string) {
	t.Helper()
	got, err := checkpoints.LastSignature(t.Context())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
