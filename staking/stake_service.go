package staking

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/chain"
)

// TxBuilder prepares an unsigned stake transfer for the wallet to sign
type TxBuilder interface {
	Build(ctx context.Context, wallet string, amount decimal.Decimal) (string, error)
}

// TransferProcessor records an on-chain transfer into the ledger, idempotently
type TransferProcessor interface {
	Process(ctx context.Context, signature string) (Outcome, error)
}

// PreparedStake is an unsigned transaction and the pending record tracking it
type PreparedStake struct {
	SerializedTransaction string
	PendingID             PendingID
}

// ConfirmResult reports how a confirmed stake settled
type ConfirmResult struct {
	Success bool
	Outcome Outcome
}

// StakeService prepares and confirms stakes and answers balance queries
type StakeService struct {
	store     Store
	builder   TxBuilder
	processor TransferProcessor
	log       *slog.Logger
	decimals  uint8
}

// NewStakeService constructs a StakeService
func NewStakeService(store Store, builder TxBuilder, processor TransferProcessor, opts ...Option) *StakeService {
	o := applyOptions(opts)
	return &StakeService{
		store:     store,
		builder:   builder,
		processor: processor,
		log:       o.log,
		decimals:  o.decimals,
	}
}

// Prepare builds the stake transfer and opens a pending record for it
func (s *StakeService) Prepare(ctx context.Context, wallet string, amount decimal.Decimal) (PreparedStake, error) {
	if err := validAmount(amount, s.decimals); err != nil {
		return PreparedStake{}, err
	}
	if !chain.ValidAddress(wallet) {
		return PreparedStake{}, fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}

	serialized, err := s.builder.Build(ctx, wallet, amount)
	if err != nil {
		return PreparedStake{}, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	id, err := s.store.CreatePendingStake(ctx, wallet, amount)
	if err != nil {
		return PreparedStake{}, fmt.Errorf("%w: %w", ErrStorageFailed, err)
	}

	return PreparedStake{SerializedTransaction: serialized, PendingID: id}, nil
}

// Confirm settles the wallet's latest pending stake against the on-chain transfer.
// Processing errors leave the record pending so the wallet can confirm again.
func (s *StakeService) Confirm(ctx context.Context, wallet, signature string) (ConfirmResult, error) {
	pending, err := s.store.LatestPendingStake(ctx, wallet)
	if err != nil {
		return ConfirmResult{}, err
	}

	outcome, err := s.processor.Process(ctx, signature)
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: %w", ErrConfirmationFailed, err)
	}

	if reason, ok := settlesFor(outcome, wallet); !ok {
		if err := s.store.FailPending(ctx, pending.ID, reason); err != nil {
			return ConfirmResult{}, fmt.Errorf("%w: %w", ErrStorageFailed, err)
		}
		s.log.WarnContext(ctx, "stake confirmation rejected",
			slog.String("wallet", wallet),
			slog.String("signature", signature),
			slog.String("reason", reason))
		return ConfirmResult{Success: false, Outcome: outcome}, nil
	}

	if err := s.store.CompletePending(ctx, pending.ID, signature); err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: %w", ErrStorageFailed, err)
	}
	return ConfirmResult{Success: true, Outcome: outcome}, nil
}

// settlesFor reports whether outcome settles a stake made by wallet
func settlesFor(outcome Outcome, wallet string) (string, bool) {
	if !outcome.Settled() {
		return outcome.Reason, false
	}
	if outcome.Wallet != "" && outcome.Wallet != wallet {
		return fmt.Sprintf("transfer was sent by %s", outcome.Wallet), false
	}
	return "", true
}

// Status returns the wallet's staked balance
func (s *StakeService) Status(ctx context.Context, wallet string) (decimal.Decimal, error) {
	if !chain.ValidAddress(wallet) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}
	return s.store.Balance(ctx, wallet)
}

// Total returns the amount staked across all wallets
func (s *StakeService) Total(ctx context.Context) (decimal.Decimal, error) {
	total, err := s.store.TotalStaked(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if total.NegativeWallets > 0 {
		s.log.WarnContext(ctx, "wallets with negative stake excluded from total",
			slog.Int("count", total.NegativeWallets))
	}
	return total.Amount, nil
}

// History lists the wallet's ledger entries, newest first.
// A non-positive limit falls back to the default; larger ones are capped.
func (s *StakeService) History(ctx context.Context, wallet string, limit int) ([]StakeEntry, error) {
	if !chain.ValidAddress(wallet) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return s.store.History(ctx, wallet, min(limit, MaxHistoryLimit))
}

// Pending lists the wallet's pending records, newest first
func (s *StakeService) Pending(ctx context.Context, wallet string) ([]PendingTransaction, error) {
	if !chain.ValidAddress(wallet) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}
	return s.store.PendingTransactions(ctx, wallet)
}
