package staking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/chain"
)

// Transferer sends staked tokens back to a wallet
type Transferer interface {
	Transfer(ctx context.Context, wallet string, amount decimal.Decimal) (string, error)
}

// UnstakeService pays out staked tokens and records the matching negative delta
type UnstakeService struct {
	store      Store
	transferer Transferer
	limiter    *walletLimiter
	log        *slog.Logger
	decimals   uint8
}

// NewUnstakeService constructs an UnstakeService.
// By default wallets may unstake 5 times per minute.
func NewUnstakeService(store Store, transferer Transferer, opts ...Option) *UnstakeService {
	o := applyOptions(opts)
	return &UnstakeService{
		store:      store,
		transferer: transferer,
		limiter:    newWalletLimiter(o.clock, o.unstakeLimit, o.unstakeWindow),
		log:        o.log,
		decimals:   o.decimals,
	}
}

// Unstake transfers amount back to wallet and returns the payout signature.
//
// The amount is reserved before the transfer so concurrent requests cannot
// overdraw the balance while a payout is in flight.
func (s *UnstakeService) Unstake(ctx context.Context, wallet string, amount decimal.Decimal) (string, error) {
	if err := validAmount(amount, s.decimals); err != nil {
		return "", err
	}
	if !chain.ValidAddress(wallet) {
		return "", fmt.Errorf("%w: %s", ErrInvalidAddress, wallet)
	}

	if !s.limiter.allow(wallet) {
		return "", ErrRateLimited
	}

	pendingID, err := s.store.ReserveUnstake(ctx, wallet, amount)
	if err != nil {
		return "", err
	}

	signature, err := s.transferer.Transfer(ctx, wallet, amount)
	if err != nil {
		if failErr := s.store.FailPending(ctx, pendingID, err.Error()); failErr != nil {
			s.log.ErrorContext(ctx, "failed to mark unstake as failed",
				slog.Int64("pending_id", int64(pendingID)),
				slog.String("error", failErr.Error()))
		}
		return "", fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}

	if _, err := s.store.CompleteUnstake(ctx, pendingID, wallet, amount, signature); err != nil {
		if IsAlreadyRecorded(err) {
			return signature, nil
		}
		// Tokens left the payment wallet but the ledger did not follow.
		s.log.ErrorContext(ctx, "unstake paid out but not recorded",
			slog.String("wallet", wallet),
			slog.String("amount", amount.String()),
			slog.String("signature", signature),
			slog.Int64("pending_id", int64(pendingID)),
			slog.String("error", err.Error()))
		if errors.Is(err, ErrInsufficientStake) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrStorageFailed, err)
	}

	s.log.InfoContext(ctx, "unstake completed",
		slog.String("wallet", wallet),
		slog.String("amount", amount.String()),
		slog.String("signature", signature))

	return signature, nil
}
