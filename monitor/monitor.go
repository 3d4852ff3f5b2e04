// Package monitor reconciles confirmed token transfers into the payment
// address with the stake ledger.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/chain"
	"github.com/screwyprof/stakevote/staking"
)

// Sentinel errors for failure cases
var (
	ErrCheckpointRetrieval = errors.New("checkpoint retrieval failed")
	ErrCheckpointSave      = errors.New("checkpoint save failed")
	ErrRPCRequestFailed    = errors.New("RPC request failed")
	ErrLedgerFailed        = errors.New("ledger operation failed")
	ErrReconciliation      = errors.New("chain reconciliation failed")
)

// Default configuration values
const (
	DefaultPollInterval = 30 * time.Second
	DefaultSweepSize    = 50
	DefaultFetchLimit   = 1000
	DefaultMaxAttempts  = 3
	DefaultBaseBackoff  = 5 * time.Second
)

// Chain reads signatures and transactions for the payment address
// ---------------------------------------------------------------
type Chain interface {
	// LatestSignatures returns up to limit signatures, newest first
	LatestSignatures(ctx context.Context, limit int) ([]string, error)
	// SignaturesUntil returns signatures newer than until, newest first
	SignaturesUntil(ctx context.Context, until string, limit int) ([]string, error)
	Transaction(ctx context.Context, signature string) (*chain.Transaction, error)
}

// Ledger is the part of the stake ledger the monitor writes to
type Ledger interface {
	RecordDelta(ctx context.Context, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error)
	HasSignature(ctx context.Context, signature string) (bool, error)
}

// CheckpointStore persists the newest handled signature
type CheckpointStore interface {
	// LastSignature returns the high-water mark, empty when none is stored
	LastSignature(ctx context.Context) (string, error)
	SaveSignature(ctx context.Context, signature string) error
}

// Clock abstracts time for production and testing
// ------------------------------------------------
type Clock interface {
	After(d time.Duration) <-chan time.Time
	Now() time.Time
}

// Backoff returns the pause after the given failed attempt, starting at 1
type Backoff func(attempt int) time.Duration

// ExponentialBackoff doubles base after every failed attempt
func ExponentialBackoff(base time.Duration) Backoff {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base << (attempt - 1)
	}
}

// ReconciliationError reports a signature that kept failing after all attempts
type ReconciliationError struct {
	Signature string
	Attempts  int
	Err       error
}

func (e *ReconciliationError) Error() string {
	return fmt.Sprintf("%s: %s after %d attempts: %v", ErrReconciliation, e.Signature, e.Attempts, e.Err)
}

func (e *ReconciliationError) Unwrap() error { return e.Err }

func (e *ReconciliationError) Is(target error) bool { return target == ErrReconciliation }

// Trigger names what woke the monitor up
type Trigger string

const (
	TriggerTick Trigger = "tick"
	TriggerPush Trigger = "push"
)

// Event represents a monitor lifecycle event
// ------------------------------------------
type Event any

type MonitorStarted struct {
	StartedAt  time.Time
	Checkpoint string
	Interval   time.Duration
}

type CheckCompleted struct {
	Trigger    Trigger
	Fetched    int
	Checkpoint string
}

type TransferRecorded struct {
	Signature string
	Wallet    string
	Amount    decimal.Decimal
}

type TransferSkipped struct {
	Signature string
	Reason    string
}

type ReconciliationCompleted struct {
	Checked  int
	Recorded int
	Failed   int
}

type PollingError struct {
	Err error
}

type ProcessingFailed struct {
	Signature string
	Err       error
}

type MonitorShutdown struct {
	Reason error // Why shutdown occurred (ctx.Err())
}
