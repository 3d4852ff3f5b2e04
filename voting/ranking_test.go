package voting_test

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/voting"
)

func TestRank(t *testing.T) {
	t.Parallel()

	t.Run("it orders by stake, then votes, then recency, then address", func(t *testing.T) {
		t.Parallel()

		// Arrange
		votes := []voting.VoteEntry{
			vote(1, "TokenA", "100", 0),
			vote(2, "TokenB", "60", 1),
			vote(3, "TokenB", "40", 2),
			vote(4, "TokenC", "100", 3),
			vote(5, "TokenE", "50", 4),
			vote(6, "TokenD", "50", 4),
		}

		// Act
		rows := voting.Rank(votes)

		// Assert
		assert.Equal(t, []string{"TokenB", "TokenC", "TokenA", "TokenD", "TokenE"}, addresses(rows))
	})

	t.Run("it produces the same order for any input order", func(t *testing.T) {
		t.Parallel()

		// Arrange
		var votes []voting.VoteEntry
		for i := range 60 {
			token := []string{"TokenA", "TokenB", "TokenC", "TokenD", "TokenE", "TokenF"}[i%6]
			votes = append(votes, vote(int64(i+1), token, []string{"10", "20", "30"}[i%3], i%4))
		}
		want := addresses(voting.Rank(votes))
		rng := rand.New(rand.NewPCG(1, 2))

		for range 20 {
			shuffled := append([]voting.VoteEntry(nil), votes...)
			rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

			// Act
			got := addresses(voting.Rank(shuffled))

			// Assert
			require.Equal(t, want, got)
		}
	})

	t.Run("it takes name and symbol from the latest vote", func(t *testing.T) {
		t.Parallel()

		// Arrange
		older := vote(1, "TokenA", "1", 0)
		older.TokenName, older.TokenSymbol = "Old Name", "OLD"
		newer := vote(2, "TokenA", "1", 5)
		newer.TokenName, newer.TokenSymbol = "New Name", "NEW"

		// Act
		rows := voting.Rank([]voting.VoteEntry{newer, older})

		// Assert
		require.Len(t, rows, 1)
		assert.Equal(t, "New Name", rows[0].TokenName)
		assert.Equal(t, "NEW", rows[0].TokenSymbol)
		assert.Equal(t, 2, rows[0].VoteCount)
		assert.Equal(t, t0.Add(5*time.Minute), rows[0].LastVote)
		assert.True(t, decimal.NewFromInt(2).Equal(rows[0].TotalStake))
	})

	t.Run("it returns an empty leaderboard without votes", func(t *testing.T) {
		t.Parallel()

		// Act
		rows := voting.Rank(nil)

		// Assert
		assert.Empty(t, rows)
	})
}

func vote(id int64, token, staked string, minute int) voting.VoteEntry {
	return voting.VoteEntry{
		ID:           voting.EntryID(id),
		Wallet:       "wallet",
		TokenAddress: token,
		TokenName:    token + " name",
		TokenSymbol:  token[len(token)-1:],
		StakedAmount: decimal.RequireFromString(staked),
		Timestamp:    t0.Add(time.Duration(minute) * time.Minute),
	}
}

func addresses(rows []voting.RankingRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.TokenAddress
	}
	return out
}
