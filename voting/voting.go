// Package voting records stake-weighted token votes and projects them into
// rankings and an activity feed.
package voting

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for vote submission and queries
var (
	ErrCooldownActive    = errors.New("vote cooldown in effect")
	ErrNoStake           = errors.New("a positive stake is required to vote")
	ErrInvalidToken      = errors.New("invalid token: not found on DEX")
	ErrTokenLookupFailed = errors.New("token lookup failed")
	ErrStakeLookupFailed = errors.New("stake lookup failed")
	ErrWriteFailed       = errors.New("vote write failed")
	ErrInvalidAddress    = errors.New("invalid address")
)

// Default configuration values
const (
	DefaultCooldown  = time.Hour
	DefaultLogsLimit = 50
	MaxLogsLimit     = 100
)

// EntryID identifies a vote
type EntryID int64

// VoteEntry is one recorded vote
type VoteEntry struct {
	ID           EntryID
	Wallet       string
	TokenAddress string
	TokenName    string
	TokenSymbol  string
	StakedAmount decimal.Decimal
	AnalysisData json.RawMessage
	Timestamp    time.Time
}

// RankingRow is the aggregate of all votes for one token
type RankingRow struct {
	TokenAddress string
	TokenName    string
	TokenSymbol  string
	TotalStake   decimal.Decimal
	VoteCount    int
	LastVote     time.Time
}

// LogType classifies system log entries
type LogType string

const (
	LogTypeVote     LogType = "vote"
	LogTypeAnalysis LogType = "analysis"
)

// SystemLog is an advisory entry in the activity feed
type SystemLog struct {
	ID        int64
	Type      LogType
	Message   string
	RelatedID *int64
	Data      json.RawMessage
	Timestamp time.Time
}

// ActivityKind tells votes and system logs apart in the feed
type ActivityKind string

const (
	ActivityVote   ActivityKind = "vote"
	ActivitySystem ActivityKind = "system"
)

// Activity is one item of the merged feed; exactly one of Vote and Log is set
type Activity struct {
	Kind      ActivityKind
	Timestamp time.Time
	Vote      *VoteEntry
	Log       *SystemLog
}

// TokenAnalysis is the market snapshot stored with a vote
type TokenAnalysis struct {
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume24h"`
	FDV       float64 `json:"fdv"`
}

// TokenInfo is the validation result for a token
type TokenInfo struct {
	Valid    bool
	Name     string
	Symbol   string
	Analysis TokenAnalysis
}

// Store persists votes and system logs
type Store interface {
	// LastVote returns the wallet's most recent vote or nil.
	LastVote(ctx context.Context, wallet string) (*VoteEntry, error)
	// InsertVote fails with *CooldownError if another vote by the wallet lies within
	// cooldown of entry.Timestamp, checked atomically with the insert.
	InsertVote(ctx context.Context, entry VoteEntry, cooldown time.Duration) (EntryID, error)
	Rankings(ctx context.Context) ([]RankingRow, error)
	// Logs returns the newest votes first.
	Logs(ctx context.Context, limit int) ([]VoteEntry, error)
	VoteCount(ctx context.Context, wallet string) (int, error)
	AppendSystemLog(ctx context.Context, log SystemLog) error
	// ActivityLogs merges votes and system logs, newest first.
	ActivityLogs(ctx context.Context, limit int) ([]Activity, error)
}

// BalanceReader reads staked balances
type BalanceReader interface {
	Balance(ctx context.Context, wallet string) (decimal.Decimal, error)
}

// TokenValidator checks that a token trades on a DEX
type TokenValidator interface {
	Validate(ctx context.Context, tokenAddress string) (TokenInfo, error)
}

// Clock abstracts time for production and testing
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}
