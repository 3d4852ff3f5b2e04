package dbrow

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/staking"
)

// StakeEntry represents a ledger row as stored in the database
type StakeEntry struct {
	ID        int64           `db:"id"`
	Wallet    string          `db:"wallet_address"`
	Amount    decimal.Decimal `db:"amount"`
	Signature string          `db:"signature"`
	Timestamp time.Time       `db:"timestamp"`
}

// ToDomain converts the row to a staking.StakeEntry
func (r StakeEntry) ToDomain() staking.StakeEntry {
	return staking.StakeEntry{
		ID:        staking.EntryID(r.ID),
		Wallet:    r.Wallet,
		Amount:    r.Amount,
		Signature: r.Signature,
		Timestamp: r.Timestamp,
	}
}

// StakeEntriesToDomain converts rows in order
func StakeEntriesToDomain(rows []StakeEntry) []staking.StakeEntry {
	out := make([]staking.StakeEntry, len(rows))
	for i, r := range rows {
		out[i] = r.ToDomain()
	}
	return out
}

// PendingTransaction represents a pending_transactions row
type PendingTransaction struct {
	ID          int64           `db:"id"`
	Wallet      string          `db:"wallet_address"`
	Amount      decimal.Decimal `db:"amount"`
	Type        string          `db:"type"`
	Status      string          `db:"status"`
	CreatedAt   time.Time       `db:"created_at"`
	CompletedAt *time.Time      `db:"completed_at"`
	Signature   *string         `db:"signature"`
	Error       *string         `db:"error"`
}

// ToDomain converts the row to a staking.PendingTransaction
func (r PendingTransaction) ToDomain() staking.PendingTransaction {
	return staking.PendingTransaction{
		ID:          staking.PendingID(r.ID),
		Wallet:      r.Wallet,
		Amount:      r.Amount,
		Type:        staking.PendingType(r.Type),
		Status:      staking.PendingStatus(r.Status),
		CreatedAt:   r.CreatedAt,
		CompletedAt: r.CompletedAt,
		Signature:   deref(r.Signature),
		Error:       deref(r.Error),
	}
}

// PendingTransactionsToDomain converts rows in order
func PendingTransactionsToDomain(rows []PendingTransaction) []staking.PendingTransaction {
	out := make([]staking.PendingTransaction, len(rows))
	for i, r := range rows {
		out[i] = r.ToDomain()
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
