package voting

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// StakeGate admits only wallets holding a positive stake
type StakeGate struct {
	balances BalanceReader
}

// NewStakeGate creates a gate over the given balances
func NewStakeGate(balances BalanceReader) *StakeGate {
	return &StakeGate{balances: balances}
}

// Check returns the wallet's balance, or ErrNoStake when it is not positive
func (g *StakeGate) Check(ctx context.Context, wallet string) (decimal.Decimal, error) {
	balance, err := g.balances.Balance(ctx, wallet)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %w", ErrStakeLookupFailed, err)
	}
	if !balance.IsPositive() {
		return decimal.Zero, ErrNoStake
	}
	return balance, nil
}
