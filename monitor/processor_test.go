package monitor_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/monitor"
	"github.com/screwyprof/stakevote/pkg/chain"
	"github.com/screwyprof/stakevote/staking"
	"github.com/screwyprof/stakevote/staking/store/memstore"
)

func TestProcessorProcess(t *testing.T) {
	t.Parallel()

	t.Run("it credits an incoming transfer to the fee payer", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		c.add(deposit("sig-1", "wallet-1", "250.5"))
		ledger := memstore.New()
		processor := newProcessor(c, ledger)

		// Act
		outcome, err := processor.Process(t.Context(), "sig-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, staking.OutcomeRecorded, outcome.Kind)
		assert.Equal(t, "wallet-1", outcome.Wallet)
		assert.True(t, decimal.RequireFromString("250.5").Equal(outcome.Amount))
		assertBalance(t, ledger, "wallet-1", "250.5")
	})

	t.Run("it short-circuits signatures already in the ledger", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		ledger := memstore.New()
		_, err := ledger.RecordDelta(t.Context(), "wallet-1", decimal.NewFromInt(10), "sig-1")
		require.NoError(t, err)
		processor := newProcessor(c, ledger)

		// Act
		outcome, err := processor.Process(t.Context(), "sig-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, staking.OutcomeAlreadyRecorded, outcome.Kind)
		assert.Empty(t, outcome.Wallet)
		assert.Zero(t, c.transactionCalls())
	})

	t.Run("it treats a lost insert race as already recorded", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		c.add(deposit("sig-1", "wallet-1", "10"))
		processor := newProcessor(c, racingLedger{Store: memstore.New()})

		// Act
		outcome, err := processor.Process(t.Context(), "sig-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, staking.OutcomeAlreadyRecorded, outcome.Kind)
		assert.Equal(t, "wallet-1", outcome.Wallet)
	})

	t.Run("it wraps ledger failures", func(t *testing.T) {
		t.Parallel()

		// Arrange
		processor := newProcessor(newFakeChain(), brokenLedger{Store: memstore.New()})

		// Act
		_, err := processor.Process(t.Context(), "sig-1")

		// Assert
		assert.ErrorIs(t, err, monitor.ErrLedgerFailed)
	})

	t.Run("it reports a transaction the node does not know yet as an RPC failure", func(t *testing.T) {
		t.Parallel()

		// Arrange
		processor := newProcessor(newFakeChain(), memstore.New())

		// Act
		_, err := processor.Process(t.Context(), "sig-unknown")

		// Assert
		assert.ErrorIs(t, err, monitor.ErrRPCRequestFailed)
		assert.ErrorIs(t, err, chain.ErrTransactionMissing)
	})
}

func TestProcessorSkips(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		tx     *chain.Transaction
		reason string
	}{
		{
			name:   "it skips transactions that failed on chain",
			tx:     failed(deposit("sig-1", "wallet-1", "10")),
			reason: monitor.ReasonTransactionFailed,
		},
		{
			name:   "it skips transfers of another mint",
			tx:     withMint(deposit("sig-1", "wallet-1", "10"), "OtherMint"),
			reason: monitor.ReasonNoBalanceChange,
		},
		{
			name:   "it skips transactions without a pre balance line",
			tx:     withoutPre(deposit("sig-1", "wallet-1", "10")),
			reason: monitor.ReasonNoBalanceChange,
		},
		{
			name:   "it skips outgoing transfers",
			tx:     deposit("sig-1", "wallet-1", "-10"),
			reason: monitor.ReasonNotIncoming,
		},
		{
			name:   "it skips transactions that leave the balance unchanged",
			tx:     deposit("sig-1", "wallet-1", "0"),
			reason: monitor.ReasonNotIncoming,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			// Arrange
			c := newFakeChain()
			c.add(tc.tx)
			ledger := memstore.New()
			processor := newProcessor(c, ledger)

			// Act
			outcome, err := processor.Process(t.Context(), "sig-1")

			// Assert
			require.NoError(t, err)
			assert.Equal(t, staking.OutcomeSkipped, outcome.Kind)
			assert.Equal(t, tc.reason, outcome.Reason)
			assert.Empty(t, ledger.Entries())
		})
	}

	t.Run("it skips transactions that cannot be decoded", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		c.breakTransaction("sig-1", fmt.Errorf("%w: no meta", chain.ErrDecodeFailed))
		processor := newProcessor(c, memstore.New())

		// Act
		outcome, err := processor.Process(t.Context(), "sig-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, staking.OutcomeSkipped, outcome.Kind)
		assert.Equal(t, monitor.ReasonUndecodable, outcome.Reason)
	})
}

func TestProcessorProcessWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("it retries with exponential backoff until the transfer is recorded", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		c.add(deposit("sig-1", "wallet-1", "10"))
		c.failTransaction("sig-1", 2)
		clk := &instantClock{}
		processor := monitor.NewProcessor(c, memstore.New(), paymentAddress, tokenMint, monitor.WithRetryClock(clk))

		// Act
		outcome, err := processor.ProcessWithRetry(t.Context(), "sig-1")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, staking.OutcomeRecorded, outcome.Kind)
		assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second}, clk.waited())
	})

	t.Run("it gives up after three attempts", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		c.add(deposit("sig-1", "wallet-1", "10"))
		c.failTransaction("sig-1", 5)
		clk := &instantClock{}
		processor := monitor.NewProcessor(c, memstore.New(), paymentAddress, tokenMint, monitor.WithRetryClock(clk))

		// Act
		_, err := processor.ProcessWithRetry(t.Context(), "sig-1")

		// Assert
		var reconErr *monitor.ReconciliationError
		require.ErrorAs(t, err, &reconErr)
		assert.ErrorIs(t, err, monitor.ErrReconciliation)
		assert.ErrorIs(t, err, chain.ErrRPCRequestFailed)
		assert.Equal(t, "sig-1", reconErr.Signature)
		assert.Equal(t, 3, reconErr.Attempts)
		assert.Equal(t, 3, c.transactionCalls())
		assert.Len(t, clk.waited(), 2)
	})

	t.Run("it stops waiting when the context ends", func(t *testing.T) {
		t.Parallel()

		// Arrange
		c := newFakeChain()
		c.failTransaction("sig-1", 5)
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		processor := monitor.NewProcessor(c, memstore.New(), paymentAddress, tokenMint,
			monitor.WithRetryClock(&fakeClock{tick: make(chan time.Time)}))

		// Act
		_, err := processor.ProcessWithRetry(ctx, "sig-1")

		// Assert
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestExponentialBackoff(t *testing.T) {
	t.Parallel()

	t.Run("it doubles the pause after every attempt", func(t *testing.T) {
		t.Parallel()

		// Arrange
		backoff := monitor.ExponentialBackoff(5 * time.Second)

		// Act
		got := []time.Duration{backoff(1), backoff(2), backoff(3)}

		// Assert
		assert.Equal(t, []time.Duration{5 * time.Second, 10 * time.Second, 20 * time.Second}, got)
	})
}

// Test helpers

func newProcessor(c *fakeChain, ledger monitor.Ledger) *monitor.Processor {
	return monitor.NewProcessor(c, ledger, paymentAddress, tokenMint, monitor.WithRetryClock(&instantClock{}))
}

func failed(tx *chain.Transaction) *chain.Transaction {
	tx.Failed = true
	return tx
}

func withMint(tx *chain.Transaction, mint string) *chain.Transaction {
	for i := range tx.PreTokenBalances {
		tx.PreTokenBalances[i].Mint = mint
	}
	for i := range tx.PostTokenBalances {
		tx.PostTokenBalances[i].Mint = mint
	}
	return tx
}

func withoutPre(tx *chain.Transaction) *chain.Transaction {
	tx.PreTokenBalances = nil
	return tx
}

func assertBalance(t *testing.T, ledger *memstore.Store, wallet, want string) {
	t.Helper()
	got, err := ledger.Balance(t.Context(), wallet)
	require.NoError(t, err)
	assert.True(t, decimal.RequireFromString(want).Equal(got), "balance of %s: want %s, got %s", wallet, want, got)
}

// racingLedger loses every insert to a concurrent writer
type racingLedger struct {
	*memstore.Store
}

func (racingLedger) RecordDelta(context.Context, string, decimal.Decimal, string) (staking.EntryID, error) {
	return 0, staking.ErrDuplicateSignature
}

type brokenLedger struct {
	*memstore.Store
}

func (brokenLedger) HasSignature(context.Context, string) (bool, error) {
	return false, errors.New("connection reset")
}
