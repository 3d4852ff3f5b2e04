// Package staking keeps the append-only stake ledger and runs the stake and
// unstake flows against it.
package staking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Sentinel errors for ledger and service operations
var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidAddress       = errors.New("invalid wallet address")
	ErrInsufficientStake    = errors.New("insufficient staked balance")
	ErrDuplicateSignature   = errors.New("signature already recorded")
	ErrRateLimited          = errors.New("too many unstake requests")
	ErrTransferFailed       = errors.New("token transfer failed")
	ErrBuildFailed          = errors.New("failed to build stake transaction")
	ErrNoPendingTransaction = errors.New("no pending transaction found")
	ErrConfirmationFailed   = errors.New("stake confirmation failed")
	ErrStorageFailed        = errors.New("stake storage failed")
)

// validAmount requires a positive amount the token can represent
func validAmount(amount decimal.Decimal, decimals uint8) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !amount.Shift(int32(decimals)).IsInteger() {
		return fmt.Errorf("%w: more than %d decimals", ErrInvalidAmount, decimals)
	}
	return nil
}

// IsAlreadyRecorded reports whether err means the entry is already in the ledger.
// Callers treat this as success.
func IsAlreadyRecorded(err error) bool {
	return errors.Is(err, ErrDuplicateSignature)
}

// History page sizes
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 100
)

// EntryID identifies a ledger entry
type EntryID int64

// PendingID identifies a pending transaction record
type PendingID int64

// StakeEntry is one signed delta in the ledger
type StakeEntry struct {
	ID        EntryID
	Wallet    string
	Amount    decimal.Decimal // positive for stakes, negative for unstakes
	Signature string
	Timestamp time.Time
}

// Total is the amount staked across all wallets
type Total struct {
	Amount decimal.Decimal
	// NegativeWallets counts wallets whose net is below zero.
	// They are excluded from Amount.
	NegativeWallets int
}

// PendingType distinguishes stake and unstake records
type PendingType string

const (
	PendingStake   PendingType = "stake"
	PendingUnstake PendingType = "unstake"
)

// PendingStatus is the lifecycle of a pending record
type PendingStatus string

const (
	StatusPending   PendingStatus = "pending"
	StatusCompleted PendingStatus = "completed"
	StatusFailed    PendingStatus = "failed"
)

// PendingTransaction audits a stake or unstake between intent and settlement
type PendingTransaction struct {
	ID          PendingID
	Wallet      string
	Amount      decimal.Decimal
	Type        PendingType
	Status      PendingStatus
	CreatedAt   time.Time
	CompletedAt *time.Time
	Signature   string
	Error       string
}

// Ledger is the append-only store of stake deltas
type Ledger interface {
	// RecordDelta appends a positive entry; anything else yields ErrInvalidAmount.
	// A known signature yields ErrDuplicateSignature.
	RecordDelta(ctx context.Context, wallet string, amount decimal.Decimal, signature string) (EntryID, error)
	// RecordUnstake appends -amount if the wallet balance covers it, atomically.
	RecordUnstake(ctx context.Context, wallet string, amount decimal.Decimal, signature string) (EntryID, error)
	// Balance returns the sum of the wallet's deltas, zero if unknown.
	Balance(ctx context.Context, wallet string) (decimal.Decimal, error)
	// TotalStaked sums the positive per-wallet nets.
	TotalStaked(ctx context.Context) (Total, error)
	// HasSignature reports whether an entry with signature exists.
	HasSignature(ctx context.Context, signature string) (bool, error)
	// History returns up to limit of the wallet's entries, newest first.
	History(ctx context.Context, wallet string, limit int) ([]StakeEntry, error)
}

// PendingStore tracks pending stake and unstake records
type PendingStore interface {
	CreatePendingStake(ctx context.Context, wallet string, amount decimal.Decimal) (PendingID, error)
	// LatestPendingStake returns ErrNoPendingTransaction when none is open.
	LatestPendingStake(ctx context.Context, wallet string) (PendingTransaction, error)
	// ReserveUnstake inserts a pending unstake if balance minus open unstakes covers amount.
	ReserveUnstake(ctx context.Context, wallet string, amount decimal.Decimal) (PendingID, error)
	// CompleteUnstake records the ledger entry and completes the reservation in one transaction.
	CompleteUnstake(ctx context.Context, id PendingID, wallet string, amount decimal.Decimal, signature string) (EntryID, error)
	// CompletePending and FailPending settle an open record; settled records are left untouched.
	CompletePending(ctx context.Context, id PendingID, signature string) error
	FailPending(ctx context.Context, id PendingID, reason string) error
	PendingTransactions(ctx context.Context, wallet string) ([]PendingTransaction, error)
}

// Store combines the ledger with pending record bookkeeping
type Store interface {
	Ledger
	PendingStore
}

// OutcomeKind is the result of processing a transfer signature
type OutcomeKind string

const (
	OutcomeRecorded        OutcomeKind = "recorded"
	OutcomeSkipped         OutcomeKind = "skipped"
	OutcomeAlreadyRecorded OutcomeKind = "already_recorded"
)

// Outcome describes what happened to one on-chain transfer
type Outcome struct {
	Kind      OutcomeKind
	Signature string
	Wallet    string // empty when the ledger already held the signature
	Amount    decimal.Decimal
	Reason    string // set when skipped
}

// Settled reports whether the transfer is reflected in the ledger
func (o Outcome) Settled() bool {
	return o.Kind == OutcomeRecorded || o.Kind == OutcomeAlreadyRecorded
}

// Clock abstracts time for production and testing
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}
