// Package memstore is an in-memory staking.Store for tests and local runs
package memstore

import (
	"context"
	"slices"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/clock"
	"github.com/screwyprof/stakevote/staking"
)

// Store implements staking.Store behind a single mutex
type Store struct {
	mu         sync.Mutex
	clock      staking.Clock
	entries    []staking.StakeEntry
	signatures map[string]struct{}
	pending    []staking.PendingTransaction
}

// Option configures the Store
type Option func(*Store)

// WithClock sets the time source for entry timestamps
func WithClock(c staking.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New creates an empty Store
func New(opts ...Option) *Store {
	s := &Store{
		clock:      clock.SystemClock{},
		signatures: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordDelta appends a stake; debits go through RecordUnstake
func (s *Store) RecordDelta(_ context.Context, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendLocked(wallet, amount, signature)
}

// RecordUnstake appends -amount if the balance covers it
func (s *Store) RecordUnstake(_ context.Context, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recordUnstakeLocked(wallet, amount, signature)
}

// Balance returns the sum of the wallet's deltas
func (s *Store) Balance(_ context.Context, wallet string) (decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(wallet), nil
}

// TotalStaked sums positive per-wallet nets
func (s *Store) TotalStaked(_ context.Context) (staking.Total, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nets := make(map[string]decimal.Decimal)
	for _, e := range s.entries {
		nets[e.Wallet] = nets[e.Wallet].Add(e.Amount)
	}

	total := staking.Total{Amount: decimal.Zero}
	for _, net := range nets {
		switch {
		case net.IsPositive():
			total.Amount = total.Amount.Add(net)
		case net.IsNegative():
			total.NegativeWallets++
		}
	}
	return total, nil
}

// HasSignature reports whether signature is in the ledger
func (s *Store) HasSignature(_ context.Context, signature string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.signatures[signature]
	return ok, nil
}

// History returns up to limit of the wallet's entries, newest first
func (s *Store) History(_ context.Context, wallet string, limit int) ([]staking.StakeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []staking.StakeEntry
	for i := len(s.entries) - 1; i >= 0 && len(out) < limit; i-- {
		if s.entries[i].Wallet == wallet {
			out = append(out, s.entries[i])
		}
	}
	return out, nil
}

// Entries returns a copy of the ledger in insertion order
func (s *Store) Entries() []staking.StakeEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}

// CreatePendingStake opens a pending stake record
func (s *Store) CreatePendingStake(_ context.Context, wallet string, amount decimal.Decimal) (staking.PendingID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addPendingLocked(wallet, amount, staking.PendingStake), nil
}

// LatestPendingStake returns the newest open stake record for wallet
func (s *Store) LatestPendingStake(_ context.Context, wallet string) (staking.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.pending) - 1; i >= 0; i-- {
		p := s.pending[i]
		if p.Wallet == wallet && p.Type == staking.PendingStake && p.Status == staking.StatusPending {
			return p, nil
		}
	}
	return staking.PendingTransaction{}, staking.ErrNoPendingTransaction
}

// ReserveUnstake opens a pending unstake if the unreserved balance covers amount
func (s *Store) ReserveUnstake(_ context.Context, wallet string, amount decimal.Decimal) (staking.PendingID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	available := s.balanceLocked(wallet)
	for _, p := range s.pending {
		if p.Wallet == wallet && p.Type == staking.PendingUnstake && p.Status == staking.StatusPending {
			available = available.Sub(p.Amount)
		}
	}
	if available.LessThan(amount) {
		return 0, staking.ErrInsufficientStake
	}

	return s.addPendingLocked(wallet, amount, staking.PendingUnstake), nil
}

// CompleteUnstake records the unstake and completes its reservation together
func (s *Store) CompleteUnstake(_ context.Context, id staking.PendingID, wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if !amount.IsPositive() {
		return 0, staking.ErrInvalidAmount
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entryID, err := s.recordUnstakeLocked(wallet, amount, signature)
	if err != nil {
		return 0, err
	}
	s.settleLocked(id, staking.StatusCompleted, signature, "")
	return entryID, nil
}

// CompletePending marks an open record completed
func (s *Store) CompletePending(_ context.Context, id staking.PendingID, signature string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(id, staking.StatusCompleted, signature, "")
	return nil
}

// FailPending marks an open record failed
func (s *Store) FailPending(_ context.Context, id staking.PendingID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settleLocked(id, staking.StatusFailed, "", reason)
	return nil
}

// PendingTransactions lists wallet records newest first
func (s *Store) PendingTransactions(_ context.Context, wallet string) ([]staking.PendingTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []staking.PendingTransaction
	for i := len(s.pending) - 1; i >= 0; i-- {
		if s.pending[i].Wallet == wallet {
			out = append(out, s.pending[i])
		}
	}
	return out, nil
}

func (s *Store) appendLocked(wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if _, ok := s.signatures[signature]; ok {
		return 0, staking.ErrDuplicateSignature
	}

	id := staking.EntryID(len(s.entries) + 1)
	s.entries = append(s.entries, staking.StakeEntry{
		ID:        id,
		Wallet:    wallet,
		Amount:    amount,
		Signature: signature,
		Timestamp: s.clock.Now(),
	})
	s.signatures[signature] = struct{}{}
	return id, nil
}

func (s *Store) recordUnstakeLocked(wallet string, amount decimal.Decimal, signature string) (staking.EntryID, error) {
	if s.balanceLocked(wallet).LessThan(amount) {
		return 0, staking.ErrInsufficientStake
	}
	return s.appendLocked(wallet, amount.Neg(), signature)
}

func (s *Store) balanceLocked(wallet string) decimal.Decimal {
	balance := decimal.Zero
	for _, e := range s.entries {
		if e.Wallet == wallet {
			balance = balance.Add(e.Amount)
		}
	}
	return balance
}

func (s *Store) addPendingLocked(wallet string, amount decimal.Decimal, typ staking.PendingType) staking.PendingID {
	id := staking.PendingID(len(s.pending) + 1)
	s.pending = append(s.pending, staking.PendingTransaction{
		ID:        id,
		Wallet:    wallet,
		Amount:    amount,
		Type:      typ,
		Status:    staking.StatusPending,
		CreatedAt: s.clock.Now(),
	})
	return id
}

// settleLocked moves an open record to status; settled records are left as they are
func (s *Store) settleLocked(id staking.PendingID, status staking.PendingStatus, signature, reason string) {
	idx := int(id) - 1
	if idx < 0 || idx >= len(s.pending) || s.pending[idx].Status != staking.StatusPending {
		return
	}

	now := s.clock.Now()
	p := &s.pending[idx]
	p.Status = status
	p.CompletedAt = &now
	p.Signature = signature
	p.Error = reason
}
