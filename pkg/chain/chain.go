// Package chain adapts the Solana JSON-RPC and websocket APIs to the plain
// values used by the staking monitor and the unstake payouts.
package chain

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Sentinel errors for chain access
var (
	ErrInvalidAddress     = errors.New("invalid address")
	ErrInvalidSignature   = errors.New("invalid transaction signature")
	ErrTransactionMissing = errors.New("transaction not found")
	ErrRPCRequestFailed   = errors.New("RPC request failed")
	ErrDecodeFailed       = errors.New("transaction decode failed")
	ErrInvalidAmount      = errors.New("invalid token amount")
)

// Default configuration values
const (
	DefaultHTTPTimeout      = 30 * time.Second
	DefaultReconnectBackoff = 3 * time.Second
)

// TokenBalance is one SPL token balance line of a transaction
type TokenBalance struct {
	Owner  string
	Mint   string
	Amount decimal.Decimal
}

// Transaction is the subset of a confirmed transaction the monitor needs
type Transaction struct {
	Signature         string
	FeePayer          string
	Failed            bool
	BlockTime         time.Time
	PreTokenBalances  []TokenBalance
	PostTokenBalances []TokenBalance
}

// BalanceOf returns the balance line for owner and mint, if present
func BalanceOf(balances []TokenBalance, owner, mint string) (TokenBalance, bool) {
	for _, b := range balances {
		if b.Owner == owner && b.Mint == mint {
			return b, true
		}
	}
	return TokenBalance{}, false
}

// ValidAddress reports whether s is a base58 encoded 32 byte public key
func ValidAddress(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}
