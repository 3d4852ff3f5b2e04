package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/screwyprof/stakevote/pkg/chain"
	"github.com/screwyprof/stakevote/pkg/clock"
	"github.com/screwyprof/stakevote/staking"
)

// Skip reasons reported with OutcomeSkipped
const (
	ReasonTransactionFailed = "transaction failed on chain"
	ReasonUndecodable       = "transaction could not be decoded"
	ReasonNoBalanceChange   = "no token balance for the payment address"
	ReasonNotIncoming       = "token balance did not increase"
)

// ProcessorOption configures the Processor
type ProcessorOption func(*Processor)

// WithBackoff sets the pause between attempts of ProcessWithRetry
func WithBackoff(b Backoff) ProcessorOption {
	return func(p *Processor) { p.backoff = b }
}

// WithMaxAttempts bounds ProcessWithRetry
func WithMaxAttempts(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

// WithRetryClock injects the clock used for backoff waits
func WithRetryClock(c Clock) ProcessorOption {
	return func(p *Processor) { p.clock = c }
}

// Processor turns one transfer signature into a ledger entry
type Processor struct {
	chain       Chain
	ledger      Ledger
	address     string
	mint        string
	clock       Clock
	backoff     Backoff
	maxAttempts int
}

// NewProcessor creates a Processor crediting incoming mint transfers to address.
// By default it retries 3 times, waiting 5s and then 10s.
func NewProcessor(c Chain, ledger Ledger, address, mint string, opts ...ProcessorOption) *Processor {
	p := &Processor{
		chain:       c,
		ledger:      ledger,
		address:     address,
		mint:        mint,
		clock:       clock.SystemClock{},
		backoff:     ExponentialBackoff(DefaultBaseBackoff),
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process records the transfer behind signature once.
// Replays yield OutcomeAlreadyRecorded without touching the chain.
func (p *Processor) Process(ctx context.Context, signature string) (staking.Outcome, error) {
	known, err := p.ledger.HasSignature(ctx, signature)
	if err != nil {
		return staking.Outcome{}, fmt.Errorf("%w: %w", ErrLedgerFailed, err)
	}
	if known {
		return staking.Outcome{Kind: staking.OutcomeAlreadyRecorded, Signature: signature}, nil
	}

	tx, err := p.chain.Transaction(ctx, signature)
	if errors.Is(err, chain.ErrDecodeFailed) || errors.Is(err, chain.ErrInvalidSignature) {
		return skipped(signature, ReasonUndecodable), nil
	}
	if err != nil {
		return staking.Outcome{}, fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}

	if tx.Failed {
		return skipped(signature, ReasonTransactionFailed), nil
	}

	pre, okPre := chain.BalanceOf(tx.PreTokenBalances, p.address, p.mint)
	post, okPost := chain.BalanceOf(tx.PostTokenBalances, p.address, p.mint)
	if !okPre || !okPost {
		return skipped(signature, ReasonNoBalanceChange), nil
	}

	delta := post.Amount.Sub(pre.Amount)
	if !delta.IsPositive() {
		return skipped(signature, ReasonNotIncoming), nil
	}

	outcome := staking.Outcome{
		Kind:      staking.OutcomeRecorded,
		Signature: signature,
		Wallet:    tx.FeePayer,
		Amount:    delta,
	}

	_, err = p.ledger.RecordDelta(ctx, tx.FeePayer, delta, signature)
	if staking.IsAlreadyRecorded(err) {
		outcome.Kind = staking.OutcomeAlreadyRecorded
		return outcome, nil
	}
	if err != nil {
		return staking.Outcome{}, fmt.Errorf("%w: %w", ErrLedgerFailed, err)
	}
	return outcome, nil
}

// ProcessWithRetry runs Process up to the configured number of attempts.
// It gives up with a *ReconciliationError; the reconciliation sweep picks
// the signature up later.
func (p *Processor) ProcessWithRetry(ctx context.Context, signature string) (staking.Outcome, error) {
	var lastErr error
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		outcome, err := p.Process(ctx, signature)
		if err == nil {
			return outcome, nil
		}
		lastErr = err

		if attempt == p.maxAttempts {
			break
		}
		if err := clock.Sleep(ctx, p.clock, p.backoff(attempt)); err != nil {
			return staking.Outcome{}, err
		}
	}

	return staking.Outcome{}, &ReconciliationError{
		Signature: signature,
		Attempts:  p.maxAttempts,
		Err:       lastErr,
	}
}

func skipped(signature, reason string) staking.Outcome {
	return staking.Outcome{Kind: staking.OutcomeSkipped, Signature: signature, Reason: reason}
}
