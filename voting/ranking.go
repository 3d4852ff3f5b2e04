package voting

import (
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Rank folds votes into the leaderboard.
//
// Rows are ordered by total stake, vote count and last vote time, all
// descending, then by token address. Name and symbol come from the most
// recent vote for each token.
func Rank(votes []VoteEntry) []RankingRow {
	type acc struct {
		row      RankingRow
		latestID EntryID
	}

	byToken := make(map[string]*acc)
	for _, v := range votes {
		a, ok := byToken[v.TokenAddress]
		if !ok {
			a = &acc{row: RankingRow{TokenAddress: v.TokenAddress, TotalStake: decimal.Zero}}
			byToken[v.TokenAddress] = a
		}

		a.row.TotalStake = a.row.TotalStake.Add(v.StakedAmount)
		a.row.VoteCount++
		if a.row.VoteCount == 1 || newer(v.Timestamp, v.ID, a.row.LastVote, a.latestID) {
			a.row.LastVote = v.Timestamp
			a.row.TokenName = v.TokenName
			a.row.TokenSymbol = v.TokenSymbol
			a.latestID = v.ID
		}
	}

	rows := make([]RankingRow, 0, len(byToken))
	for _, a := range byToken {
		rows = append(rows, a.row)
	}
	slices.SortFunc(rows, compareRows)
	return rows
}

func newer(ts time.Time, id EntryID, thanTS time.Time, thanID EntryID) bool {
	if !ts.Equal(thanTS) {
		return ts.After(thanTS)
	}
	return id > thanID
}

func compareRows(a, b RankingRow) int {
	if c := b.TotalStake.Cmp(a.TotalStake); c != 0 {
		return c
	}
	if a.VoteCount != b.VoteCount {
		return b.VoteCount - a.VoteCount
	}
	if c := b.LastVote.Compare(a.LastVote); c != 0 {
		return c
	}
	return strings.Compare(a.TokenAddress, b.TokenAddress)
}
