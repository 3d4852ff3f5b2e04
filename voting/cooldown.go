package voting

import (
	"context"
	"fmt"
	"time"
)

// CooldownError reports how long a wallet must wait before voting again
type CooldownError struct {
	Remaining time.Duration
}

// NewCooldownError builds the error for a vote at `at` that conflicts with one at `last`
func NewCooldownError(last, at time.Time, cooldown time.Duration) *CooldownError {
	remaining := last.Add(cooldown).Sub(at)
	// Round up so a wait of 0.4s is reported as 1s, never 0s.
	if rem := remaining % time.Second; rem > 0 {
		remaining += time.Second - rem
	}
	return &CooldownError{Remaining: remaining}
}

func (e *CooldownError) Error() string {
	secs := int64(e.Remaining / time.Second)
	return fmt.Sprintf("Vote cooldown in effect. Please wait %dm %ds.", secs/60, secs%60)
}

// Is makes errors.Is(err, ErrCooldownActive) match
func (e *CooldownError) Is(target error) bool {
	return target == ErrCooldownActive
}

// CheckCooldown fails when last lies within cooldown of at, in either direction
func CheckCooldown(last, at time.Time, cooldown time.Duration) error {
	distance := at.Sub(last)
	if distance < 0 {
		distance = -distance
	}
	if distance < cooldown {
		return NewCooldownError(last, at, cooldown)
	}
	return nil
}

// LastVoteReader reads a wallet's latest vote
type LastVoteReader interface {
	LastVote(ctx context.Context, wallet string) (*VoteEntry, error)
}

// CooldownGate allows one vote per wallet per cooldown period
type CooldownGate struct {
	votes    LastVoteReader
	clock    Clock
	cooldown time.Duration
}

// NewCooldownGate creates a gate over the given votes
func NewCooldownGate(votes LastVoteReader, clock Clock, cooldown time.Duration) *CooldownGate {
	return &CooldownGate{votes: votes, clock: clock, cooldown: cooldown}
}

// Check returns a *CooldownError if the wallet voted within the cooldown
func (g *CooldownGate) Check(ctx context.Context, wallet string) error {
	last, err := g.votes.LastVote(ctx, wallet)
	if err != nil {
		return err
	}
	if last == nil {
		return nil
	}
	return CheckCooldown(last.Timestamp, g.clock.Now(), g.cooldown)
}
