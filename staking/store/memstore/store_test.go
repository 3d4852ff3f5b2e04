package memstore_test

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/staking"
	"github.com/screwyprof/stakevote/staking/store/memstore"
)

const wallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

func TestLedgerInvariants(t *testing.T) {
	t.Parallel()

	t.Run("it never lets a random sequence of signed operations drive a balance negative", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		rng := rand.New(rand.NewPCG(42, 7))
		expected := decimal.Zero

		// Act
		for i := range 500 {
			amt := decimal.NewFromInt(rng.Int64N(2001) - 1000)
			sig := fmt.Sprintf("sig-%d", i)

			if rng.IntN(2) == 0 {
				_, err := store.RecordDelta(t.Context(), wallet, amt, sig)
				if amt.IsPositive() {
					require.NoError(t, err)
					expected = expected.Add(amt)
				} else {
					require.ErrorIs(t, err, staking.ErrInvalidAmount, "step %d: delta %s", i, amt)
				}
			} else {
				_, err := store.RecordUnstake(t.Context(), wallet, amt, sig)
				switch {
				case !amt.IsPositive():
					require.ErrorIs(t, err, staking.ErrInvalidAmount, "step %d: unstake %s", i, amt)
				case amt.GreaterThan(expected):
					require.ErrorIs(t, err, staking.ErrInsufficientStake)
				default:
					require.NoError(t, err)
					expected = expected.Sub(amt)
				}
			}

			// Assert
			balance, err := store.Balance(t.Context(), wallet)
			require.NoError(t, err)
			require.False(t, balance.IsNegative(), "step %d: balance %s", i, balance)
			require.True(t, expected.Equal(balance), "step %d: want %s, got %s", i, expected, balance)
		}
	})

	t.Run("it applies a signature only once", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "sig-1")
		require.NoError(t, err)

		// Act
		_, err = store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "sig-1")

		// Assert
		assert.True(t, staking.IsAlreadyRecorded(err))
		assert.Len(t, store.Entries(), 1)
		balance, err := store.Balance(t.Context(), wallet)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(100).Equal(balance))
	})

	t.Run("it rejects zero deltas", func(t *testing.T) {
		t.Parallel()

		// Act
		_, err := memstore.New().RecordDelta(t.Context(), wallet, decimal.Zero, "sig-1")

		// Assert
		assert.ErrorIs(t, err, staking.ErrInvalidAmount)
	})

	t.Run("it refuses a negative delta on an empty wallet", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()

		// Act
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(-5000), "sig-1")

		// Assert
		assert.ErrorIs(t, err, staking.ErrInvalidAmount)
		assert.Empty(t, store.Entries())
		balance, err := store.Balance(t.Context(), wallet)
		require.NoError(t, err)
		assert.True(t, balance.IsZero(), "balance: %s", balance)
	})

	t.Run("it lets exactly one of many concurrent unstakes drain the balance", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "stake")
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make(chan error, 10)

		// Act
		for i := range 10 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := store.RecordUnstake(t.Context(), wallet, decimal.NewFromInt(100), fmt.Sprintf("unstake-%d", i))
				results <- err
			}()
		}
		wg.Wait()
		close(results)

		// Assert
		var ok, rejected int
		for err := range results {
			if err == nil {
				ok++
				continue
			}
			require.ErrorIs(t, err, staking.ErrInsufficientStake)
			rejected++
		}
		assert.Equal(t, 1, ok)
		assert.Equal(t, 9, rejected)
	})
}

func TestUnstakeReservations(t *testing.T) {
	t.Parallel()

	t.Run("it counts open reservations against the balance", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "stake")
		require.NoError(t, err)
		_, err = store.ReserveUnstake(t.Context(), wallet, decimal.NewFromInt(70))
		require.NoError(t, err)

		// Act
		_, err = store.ReserveUnstake(t.Context(), wallet, decimal.NewFromInt(40))

		// Assert
		assert.ErrorIs(t, err, staking.ErrInsufficientStake)
	})

	t.Run("it releases a reservation once it fails", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "stake")
		require.NoError(t, err)
		id, err := store.ReserveUnstake(t.Context(), wallet, decimal.NewFromInt(70))
		require.NoError(t, err)
		require.NoError(t, store.FailPending(t.Context(), id, "transfer failed"))

		// Act
		_, err = store.ReserveUnstake(t.Context(), wallet, decimal.NewFromInt(70))

		// Assert
		assert.NoError(t, err)
	})

	t.Run("it settles a record only once", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		id, err := store.CreatePendingStake(t.Context(), wallet, decimal.NewFromInt(5))
		require.NoError(t, err)
		require.NoError(t, store.CompletePending(t.Context(), id, "sig-1"))

		// Act
		require.NoError(t, store.FailPending(t.Context(), id, "late failure"))

		// Assert
		records, err := store.PendingTransactions(t.Context(), wallet)
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, staking.StatusCompleted, records[0].Status)
		assert.Equal(t, "sig-1", records[0].Signature)
		assert.Empty(t, records[0].Error)
		assert.NotNil(t, records[0].CompletedAt)
	})

	t.Run("it completes an unstake and its reservation together", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "stake")
		require.NoError(t, err)
		id, err := store.ReserveUnstake(t.Context(), wallet, decimal.NewFromInt(30))
		require.NoError(t, err)

		// Act
		_, err = store.CompleteUnstake(t.Context(), id, wallet, decimal.NewFromInt(30), "payout-1")

		// Assert
		require.NoError(t, err)
		balance, err := store.Balance(t.Context(), wallet)
		require.NoError(t, err)
		assert.True(t, decimal.NewFromInt(70).Equal(balance))

		records, err := store.PendingTransactions(t.Context(), wallet)
		require.NoError(t, err)
		assert.Equal(t, staking.StatusCompleted, records[0].Status)

		_, err = store.LatestPendingStake(t.Context(), wallet)
		assert.ErrorIs(t, err, staking.ErrNoPendingTransaction)
	})
}

func TestLedgerHistory(t *testing.T) {
	t.Parallel()

	t.Run("it returns only the wallet's entries newest first up to the limit", func(t *testing.T) {
		t.Parallel()

		// Arrange
		store := memstore.New()
		_, err := store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(100), "sig-1")
		require.NoError(t, err)
		_, err = store.RecordDelta(t.Context(), "other-wallet", decimal.NewFromInt(7), "sig-2")
		require.NoError(t, err)
		_, err = store.RecordUnstake(t.Context(), wallet, decimal.NewFromInt(40), "sig-3")
		require.NoError(t, err)
		_, err = store.RecordDelta(t.Context(), wallet, decimal.NewFromInt(5), "sig-4")
		require.NoError(t, err)

		// Act
		history, err := store.History(t.Context(), wallet, 2)

		// Assert
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "sig-4", history[0].Signature)
		assert.Equal(t, "sig-3", history[1].Signature)
		assert.True(t, decimal.NewFromInt(-40).Equal(history[1].Amount))
	})
}
