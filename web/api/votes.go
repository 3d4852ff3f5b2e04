package api

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/auth"
)

// Vote is a recorded vote as returned by the vote endpoints
type Vote struct {
	ID            int64           `json:"id"`
	WalletAddress string          `json:"wallet_address"`
	TokenAddress  string          `json:"token_address"`
	TokenName     string          `json:"token_name"`
	TokenSymbol   string          `json:"token_symbol"`
	StakedAmount  decimal.Decimal `json:"staked_amount"`
	AnalysisData  json.RawMessage `json:"analysis_data,omitempty"`
	Timestamp     string          `json:"timestamp"`
	TimestampMS   int64           `json:"timestamp_ms"`
}

// Ranking is one row of GET /api/votes/rankings
type Ranking struct {
	TokenAddress string          `json:"token_address"`
	TokenName    string          `json:"token_name"`
	TokenSymbol  string          `json:"token_symbol"`
	TotalStake   decimal.Decimal `json:"total_stake"`
	VoteCount    int             `json:"vote_count"`
	LastVote     string          `json:"last_vote"`
}

// Activity is one item of GET /api/votes/logs. Source is "vote" or "system";
// vote items carry the vote fields, system items the log fields.
type Activity struct {
	Source      string `json:"source"`
	ID          int64  `json:"id"`
	Timestamp   string `json:"timestamp"`
	TimestampMS int64  `json:"timestamp_ms"`

	WalletAddress string           `json:"wallet_address,omitempty"`
	TokenAddress  string           `json:"token_address,omitempty"`
	TokenName     string           `json:"token_name,omitempty"`
	TokenSymbol   string           `json:"token_symbol,omitempty"`
	StakedAmount  *decimal.Decimal `json:"staked_amount,omitempty"`

	Type      string          `json:"type,omitempty"`
	Message   string          `json:"message,omitempty"`
	RelatedID *int64          `json:"related_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// VoteCountResponse is the body of GET /api/votes/count/{wallet}
type VoteCountResponse struct {
	Count int `json:"count"`
}

// SubmitVoteRequest is the signed body of POST /api/votes
type SubmitVoteRequest struct {
	auth.SignedRequest
	TokenAddress string `json:"tokenAddress"`
}

// SubmitVoteResponse identifies the recorded vote
type SubmitVoteResponse struct {
	ID           int64           `json:"id"`
	Timestamp    string          `json:"timestamp"`
	TokenName    string          `json:"token_name"`
	TokenSymbol  string          `json:"token_symbol"`
	StakedAmount decimal.Decimal `json:"staked_amount"`
}

// TokenValidation is the body of GET /api/tokens/validate/{address}
type TokenValidation struct {
	IsValid      bool           `json:"isValid"`
	TokenInfo    *TokenInfo     `json:"tokenInfo"`
	AnalysisData *TokenAnalysis `json:"analysisData"`
}

// TokenInfo names a validated token
type TokenInfo struct {
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
}

// TokenAnalysis is the DEX market snapshot of a token
type TokenAnalysis struct {
	Price     float64 `json:"price"`
	Liquidity float64 `json:"liquidity"`
	Volume24h float64 `json:"volume24h"`
	FDV       float64 `json:"fdv"`
}
