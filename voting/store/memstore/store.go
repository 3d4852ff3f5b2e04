// Package memstore is an in-memory voting.Store for tests and local runs
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/screwyprof/stakevote/voting"
)

// Store implements voting.Store behind a single mutex
type Store struct {
	mu    sync.Mutex
	votes []voting.VoteEntry
	logs  []voting.SystemLog
}

// New creates an empty Store
func New() *Store {
	return &Store{}
}

// LastVote returns the wallet's most recent vote or nil
func (s *Store) LastVote(_ context.Context, wallet string) (*voting.VoteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var last *voting.VoteEntry
	for i := range s.votes {
		v := s.votes[i]
		if v.Wallet != wallet {
			continue
		}
		if last == nil || !v.Timestamp.Before(last.Timestamp) {
			last = &v
		}
	}
	return last, nil
}

// InsertVote appends the vote unless it conflicts with the wallet's cooldown
func (s *Store) InsertVote(_ context.Context, entry voting.VoteEntry, cooldown time.Duration) (voting.EntryID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.votes {
		if v.Wallet != entry.Wallet {
			continue
		}
		if err := voting.CheckCooldown(v.Timestamp, entry.Timestamp, cooldown); err != nil {
			return 0, err
		}
	}

	entry.ID = voting.EntryID(len(s.votes) + 1)
	s.votes = append(s.votes, entry)
	return entry.ID, nil
}

// Rankings aggregates all votes
func (s *Store) Rankings(_ context.Context) ([]voting.RankingRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return voting.Rank(s.votes), nil
}

// Logs returns up to limit votes, newest first
func (s *Store) Logs(_ context.Context, limit int) ([]voting.VoteEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newestVotesLocked(limit), nil
}

// VoteCount counts the wallet's votes
func (s *Store) VoteCount(_ context.Context, wallet string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int
	for _, v := range s.votes {
		if v.Wallet == wallet {
			n++
		}
	}
	return n, nil
}

// AppendSystemLog appends an advisory log entry
func (s *Store) AppendSystemLog(_ context.Context, log voting.SystemLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	log.ID = int64(len(s.logs) + 1)
	s.logs = append(s.logs, log)
	return nil
}

// ActivityLogs merges votes and system logs, newest first
func (s *Store) ActivityLogs(_ context.Context, limit int) ([]voting.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	logs := slices.Clone(s.logs)
	slices.Reverse(logs)
	return voting.MergeActivity(s.newestVotesLocked(limit), logs, limit), nil
}

func (s *Store) newestVotesLocked(limit int) []voting.VoteEntry {
	votes := slices.Clone(s.votes)
	slices.SortStableFunc(votes, func(a, b voting.VoteEntry) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return int(b.ID - a.ID)
	})
	if len(votes) > limit {
		votes = votes[:limit]
	}
	return votes
}
