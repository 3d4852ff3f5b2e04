package voting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/chain"
	"github.com/screwyprof/stakevote/pkg/clock"
	"github.com/screwyprof/stakevote/pkg/logger"
)

// State is a step of vote submission
type State string

const (
	StateCheckingCooldown State = "checking_cooldown"
	StateCheckingStake    State = "checking_stake"
	StateValidatingToken  State = "validating_token"
	StateRecording        State = "recording"
	StateDone             State = "done"
	StateError            State = "error"
)

// StateObserver is told about every transition of a submission.
// err is set only for StateError.
type StateObserver func(wallet string, state State, err error)

// VoteResult is a recorded vote
type VoteResult struct {
	ID           EntryID
	Timestamp    time.Time
	Token        TokenInfo
	StakedAmount decimal.Decimal
}

// Option configures the Service
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithCooldown sets the minimum time between two votes of a wallet
func WithCooldown(d time.Duration) Option {
	return func(s *Service) { s.cooldown = d }
}

// WithLogger sets the logger used for best-effort side channels
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// WithStateObserver registers a transition observer
func WithStateObserver(fn StateObserver) Option {
	return func(s *Service) { s.observe = fn }
}

// Service runs vote submission and serves vote queries
type Service struct {
	store    Store
	balances BalanceReader
	tokens   TokenValidator
	clock    Clock
	cooldown time.Duration
	log      *slog.Logger
	observe  StateObserver
}

// NewService constructs a Service.
// By default, it uses a real clock and a one hour cooldown.
func NewService(store Store, balances BalanceReader, tokens TokenValidator, opts ...Option) *Service {
	s := &Service{
		store:    store,
		balances: balances,
		tokens:   tokens,
		clock:    clock.SystemClock{},
		cooldown: DefaultCooldown,
		log:      logger.Discard(),
		observe:  func(string, State, error) {}, // nop by default
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitVote checks the cooldown, the stake and the token, then records the vote
func (s *Service) SubmitVote(ctx context.Context, wallet, tokenAddress string) (VoteResult, error) {
	result, err := s.submit(ctx, wallet, tokenAddress)
	if err != nil {
		s.observe(wallet, StateError, err)
		return VoteResult{}, err
	}
	s.observe(wallet, StateDone, nil)
	return result, nil
}

func (s *Service) submit(ctx context.Context, wallet, tokenAddress string) (VoteResult, error) {
	if !chain.ValidAddress(wallet) {
		return VoteResult{}, fmt.Errorf("%w: wallet %s", ErrInvalidAddress, wallet)
	}
	if !chain.ValidAddress(tokenAddress) {
		return VoteResult{}, fmt.Errorf("%w: token %s", ErrInvalidAddress, tokenAddress)
	}

	s.observe(wallet, StateCheckingCooldown, nil)
	if err := NewCooldownGate(s.store, s.clock, s.cooldown).Check(ctx, wallet); err != nil {
		return VoteResult{}, err
	}

	s.observe(wallet, StateCheckingStake, nil)
	stakeGate := NewStakeGate(s.balances)
	if _, err := stakeGate.Check(ctx, wallet); err != nil {
		return VoteResult{}, err
	}

	s.observe(wallet, StateValidatingToken, nil)
	token, err := s.tokens.Validate(ctx, tokenAddress)
	if err != nil {
		return VoteResult{}, fmt.Errorf("%w: %w", ErrTokenLookupFailed, err)
	}
	if !token.Valid {
		return VoteResult{}, ErrInvalidToken
	}

	s.observe(wallet, StateRecording, nil)
	// The stake may have moved while the token was looked up.
	staked, err := stakeGate.Check(ctx, wallet)
	if err != nil {
		return VoteResult{}, err
	}

	analysis, err := json.Marshal(token.Analysis)
	if err != nil {
		return VoteResult{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}

	entry := VoteEntry{
		Wallet:       wallet,
		TokenAddress: tokenAddress,
		TokenName:    token.Name,
		TokenSymbol:  token.Symbol,
		StakedAmount: staked,
		AnalysisData: analysis,
		Timestamp:    s.clock.Now(),
	}

	id, err := s.store.InsertVote(ctx, entry, s.cooldown)
	if err != nil {
		if errors.Is(err, ErrCooldownActive) {
			return VoteResult{}, err
		}
		return VoteResult{}, fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	entry.ID = id

	s.appendSystemLogs(ctx, entry)

	return VoteResult{
		ID:           id,
		Timestamp:    entry.Timestamp,
		Token:        token,
		StakedAmount: staked,
	}, nil
}

// appendSystemLogs writes the feed lines for a recorded vote; failures are only logged
func (s *Service) appendSystemLogs(ctx context.Context, v VoteEntry) {
	for _, entry := range voteLogMessages(v) {
		if err := s.store.AppendSystemLog(ctx, entry); err != nil {
			s.log.WarnContext(ctx, "failed to append system log",
				slog.Int64("vote_id", int64(v.ID)),
				slog.String("type", string(entry.Type)),
				slog.String("error", err.Error()))
		}
	}
}

// ValidateToken looks the token up without voting for it
func (s *Service) ValidateToken(ctx context.Context, tokenAddress string) (TokenInfo, error) {
	if !chain.ValidAddress(tokenAddress) {
		return TokenInfo{}, fmt.Errorf("%w: token %s", ErrInvalidAddress, tokenAddress)
	}
	token, err := s.tokens.Validate(ctx, tokenAddress)
	if err != nil {
		return TokenInfo{}, fmt.Errorf("%w: %w", ErrTokenLookupFailed, err)
	}
	return token, nil
}

// LastVote returns the wallet's latest vote or nil
func (s *Service) LastVote(ctx context.Context, wallet string) (*VoteEntry, error) {
	if !chain.ValidAddress(wallet) {
		return nil, fmt.Errorf("%w: wallet %s", ErrInvalidAddress, wallet)
	}
	return s.store.LastVote(ctx, wallet)
}

// Rankings returns the current leaderboard
func (s *Service) Rankings(ctx context.Context) ([]RankingRow, error) {
	return s.store.Rankings(ctx)
}

// ActivityLogs returns the merged feed; limit is clamped to [1, MaxLogsLimit]
func (s *Service) ActivityLogs(ctx context.Context, limit int) ([]Activity, error) {
	return s.store.ActivityLogs(ctx, ClampLimit(limit))
}

// VoteCount returns how many votes the wallet has cast
func (s *Service) VoteCount(ctx context.Context, wallet string) (int, error) {
	if !chain.ValidAddress(wallet) {
		return 0, fmt.Errorf("%w: wallet %s", ErrInvalidAddress, wallet)
	}
	return s.store.VoteCount(ctx, wallet)
}
