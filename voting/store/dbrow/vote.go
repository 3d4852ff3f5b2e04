package dbrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/voting"
)

// Vote represents a votes row as stored in the database
type Vote struct {
	ID           int64           `db:"id"`
	Wallet       string          `db:"wallet_address"`
	TokenAddress string          `db:"token_address"`
	TokenName    string          `db:"token_name"`
	TokenSymbol  string          `db:"token_symbol"`
	StakedAmount decimal.Decimal `db:"staked_amount"`
	AnalysisData []byte          `db:"analysis_data"`
	Timestamp    time.Time       `db:"timestamp"`
}

// ToDomain converts the row to a voting.VoteEntry
func (r Vote) ToDomain() voting.VoteEntry {
	return voting.VoteEntry{
		ID:           voting.EntryID(r.ID),
		Wallet:       r.Wallet,
		TokenAddress: r.TokenAddress,
		TokenName:    r.TokenName,
		TokenSymbol:  r.TokenSymbol,
		StakedAmount: r.StakedAmount,
		AnalysisData: r.AnalysisData,
		Timestamp:    r.Timestamp,
	}
}

// VotesToDomain converts rows in order
func VotesToDomain(rows []Vote) []voting.VoteEntry {
	out := make([]voting.VoteEntry, len(rows))
	for i, r := range rows {
		out[i] = r.ToDomain()
	}
	return out
}

// RankingRow represents one aggregated ranking row
type RankingRow struct {
	TokenAddress string          `db:"token_address"`
	TokenName    string          `db:"token_name"`
	TokenSymbol  string          `db:"token_symbol"`
	TotalStake   decimal.Decimal `db:"total_stake"`
	VoteCount    int             `db:"vote_count"`
	LastVote     time.Time       `db:"last_vote"`
}

// RankingsToDomain converts rows in order
func RankingsToDomain(rows []RankingRow) []voting.RankingRow {
	out := make([]voting.RankingRow, len(rows))
	for i, r := range rows {
		out[i] = voting.RankingRow{
			TokenAddress: r.TokenAddress,
			TokenName:    r.TokenName,
			TokenSymbol:  r.TokenSymbol,
			TotalStake:   r.TotalStake,
			VoteCount:    r.VoteCount,
			LastVote:     r.LastVote,
		}
	}
	return out
}

// SystemLog represents a system_logs row
type SystemLog struct {
	ID        int64     `db:"id"`
	Type      string    `db:"type"`
	Message   string    `db:"message"`
	RelatedID *int64    `db:"related_id"`
	Data      []byte    `db:"data"`
	Timestamp time.Time `db:"timestamp"`
}

// SystemLogsToDomain converts rows in order
func SystemLogsToDomain(rows []SystemLog) []voting.SystemLog {
	out := make([]voting.SystemLog, len(rows))
	for i, r := range rows {
		out[i] = voting.SystemLog{
			ID:        r.ID,
			Type:      voting.LogType(r.Type),
			Message:   r.Message,
			RelatedID: r.RelatedID,
			Data:      r.Data,
			Timestamp: r.Timestamp,
		}
	}
	return out
}
