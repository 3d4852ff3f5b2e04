package api

import (
	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/auth"
)

// StakeStatusResponse is the body of GET /api/stakes/status/{wallet}
type StakeStatusResponse struct {
	Amount decimal.Decimal `json:"amount"`
}

// TotalStakedResponse is the body of GET /api/stakes/total
type TotalStakedResponse struct {
	Total decimal.Decimal `json:"total"`
}

// UnstakeRequest is the signed body of POST /api/stakes/unstake
type UnstakeRequest struct {
	auth.SignedRequest
	Amount decimal.Decimal `json:"amount"`
}

// UnstakeResponse carries the payout transaction signature
type UnstakeResponse struct {
	Signature string `json:"signature"`
}

// PrepareStakeRequest is the body of POST /api/stakes/prepare
type PrepareStakeRequest struct {
	WalletAddress string          `json:"walletAddress"`
	Amount        decimal.Decimal `json:"amount"`
}

// PrepareStakeResponse carries the unsigned transfer for the wallet to sign
type PrepareStakeResponse struct {
	SerializedTransaction string `json:"serializedTransaction"`
	PendingID             int64  `json:"pendingId"`
}

// ConfirmStakeRequest is the body of POST /api/stakes/confirm
type ConfirmStakeRequest struct {
	WalletAddress string `json:"walletAddress"`
	Signature     string `json:"signature"`
}

// Outcome describes what the ledger did with a transfer
type Outcome struct {
	Kind      string           `json:"kind"`
	Signature string           `json:"signature"`
	Wallet    string           `json:"wallet,omitempty"`
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Reason    string           `json:"reason,omitempty"`
}

// ConfirmStakeResponse is the body of POST /api/stakes/confirm
type ConfirmStakeResponse struct {
	Success bool    `json:"success"`
	Outcome Outcome `json:"outcome"`
}

// StakeHistoryEntry is one entry of GET /api/stakes/history/{wallet}.
// Type is "stake" for credits and "unstake" for debits; Amount is unsigned.
type StakeHistoryEntry struct {
	ID        int64           `json:"id"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Signature string          `json:"signature"`
	Timestamp string          `json:"timestamp"`
}

// PendingTransaction is one entry of GET /api/stakes/pending/{wallet}
type PendingTransaction struct {
	ID            int64           `json:"id"`
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	Type          string          `json:"type"`
	Status        string          `json:"status"`
	CreatedAt     string          `json:"created_at"`
	CompletedAt   *string         `json:"completed_at"`
	Signature     *string         `json:"signature"`
	Error         *string         `json:"error"`
}
