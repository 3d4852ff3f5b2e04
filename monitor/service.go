package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/screwyprof/stakevote/pkg/clock"
	"github.com/screwyprof/stakevote/staking"
)

// Option configures the Service
// ------------------------------------------------
type Option func(*Service)

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

// WithPollInterval sets the tick interval for checks and sweeps
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) { s.pollInterval = d }
}

// WithSweepSize sets how many recent signatures each sweep re-checks
func WithSweepSize(n int) Option {
	return func(s *Service) { s.sweepSize = n }
}

// WithFetchLimit caps the signatures fetched per check
func WithFetchLimit(n int) Option {
	return func(s *Service) { s.fetchLimit = n }
}

// WithNotifications wakes the monitor up on every push signal
func WithNotifications(notify <-chan struct{}) Option {
	return func(s *Service) { s.notify = notify }
}

// Service watches the payment address: push-triggered checks plus a
// periodic check and reconciliation sweep
// -----------------------------------------------------------------
type Service struct {
	chain        Chain
	checkpoints  CheckpointStore
	processor    *Processor
	clock        Clock
	pollInterval time.Duration
	sweepSize    int
	fetchLimit   int
	notify       <-chan struct{}
	events       chan Event

	mark    string
	skipped map[string]struct{}
}

// NewService constructs a Service with required dependencies and options
// ---------------------------------------------------------------------
// By default, it uses a real clock, a 30s interval and a 50 signature sweep.
func NewService(c Chain, checkpoints CheckpointStore, processor *Processor, opts ...Option) *Service {
	s := &Service{
		chain:        c,
		checkpoints:  checkpoints,
		processor:    processor,
		clock:        clock.SystemClock{},
		pollInterval: DefaultPollInterval,
		sweepSize:    DefaultSweepSize,
		fetchLimit:   DefaultFetchLimit,
		events:       make(chan Event, 10),
		skipped:      make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the monitor and returns the events channel and done channel.
//
// Shutdown pattern:
//  1. Cancel context to request shutdown: cancel()
//  2. Service stops producing events and closes events channel
//  3. Wait for complete shutdown: <-done
func (s *Service) Start(ctx context.Context) (<-chan Event, <-chan struct{}) {
	done := make(chan struct{})
	go func() {
		defer close(s.events)
		defer close(done)
		s.run(ctx)
	}()
	return s.events, done
}

// run loads the mark and then serves triggers until ctx is cancelled
func (s *Service) run(ctx context.Context) {
	start := s.clock.Now()

	mark, err := s.checkpoints.LastSignature(ctx)
	if err != nil {
		s.events <- PollingError{Err: fmt.Errorf("%w: %w", ErrCheckpointRetrieval, err)}
		s.events <- MonitorShutdown{Reason: err}
		return
	}
	s.mark = mark

	// An empty mark is retried on the next trigger
	if s.mark == "" {
		if err := s.initMark(ctx); err != nil {
			s.events <- PollingError{Err: err}
		}
	}

	s.events <- MonitorStarted{
		StartedAt:  start,
		Checkpoint: s.mark,
		Interval:   s.pollInterval,
	}

	for {
		select {
		case <-ctx.Done():
			s.events <- MonitorShutdown{Reason: ctx.Err()}
			return
		case <-s.notify:
			s.check(ctx, TriggerPush)
		case <-s.clock.After(s.pollInterval):
			s.check(ctx, TriggerTick)
			s.sweep(ctx)
		}
	}
}

// initMark starts from the newest existing signature without processing it
func (s *Service) initMark(ctx context.Context) error {
	latest, err := s.chain.LatestSignatures(ctx, 1)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)
	}
	if len(latest) == 0 {
		return nil
	}
	if err := s.checkpoints.SaveSignature(ctx, latest[0]); err != nil {
		return fmt.Errorf("%w: %w", ErrCheckpointSave, err)
	}
	s.mark = latest[0]
	return nil
}

// check processes signatures newer than the mark, oldest first.
// A signature that exhausts its retries is reported and passed over; the
// sweep records it once the chain answers again.
func (s *Service) check(ctx context.Context, trigger Trigger) {
	if s.mark == "" {
		if err := s.initMark(ctx); err != nil {
			s.events <- PollingError{Err: err}
			return
		}
		s.events <- CheckCompleted{Trigger: trigger, Checkpoint: s.mark}
		return
	}

	sigs, err := s.chain.SignaturesUntil(ctx, s.mark, s.fetchLimit)
	if err != nil {
		s.events <- PollingError{Err: fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)}
		return
	}

	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i]

		outcome, err := s.processor.ProcessWithRetry(ctx, sig)
		if ctx.Err() != nil {
			break
		}
		if err != nil {
			s.events <- ProcessingFailed{Signature: sig, Err: err}
		} else {
			s.emitOutcome(outcome)
		}

		if err := s.checkpoints.SaveSignature(ctx, sig); err != nil {
			s.events <- PollingError{Err: fmt.Errorf("%w: %w", ErrCheckpointSave, err)}
			break
		}
		s.mark = sig
	}

	s.events <- CheckCompleted{
		Trigger:    trigger,
		Fetched:    len(sigs),
		Checkpoint: s.mark,
	}
}

// sweep re-checks the most recent signatures and records any the ledger lacks
func (s *Service) sweep(ctx context.Context) {
	sigs, err := s.chain.LatestSignatures(ctx, s.sweepSize)
	if err != nil {
		s.events <- PollingError{Err: fmt.Errorf("%w: %w", ErrRPCRequestFailed, err)}
		return
	}

	result := ReconciliationCompleted{Checked: len(sigs)}
	window := make(map[string]struct{}, len(sigs))

	for i := len(sigs) - 1; i >= 0; i-- {
		sig := sigs[i]
		if _, ok := s.skipped[sig]; ok {
			window[sig] = struct{}{}
			continue
		}

		outcome, err := s.processor.Process(ctx, sig)
		if err != nil {
			result.Failed++
			s.events <- ProcessingFailed{Signature: sig, Err: err}
			continue
		}

		switch outcome.Kind {
		case staking.OutcomeRecorded:
			result.Recorded++
			s.events <- TransferRecorded{Signature: sig, Wallet: outcome.Wallet, Amount: outcome.Amount}
		case staking.OutcomeSkipped:
			window[sig] = struct{}{}
		}
	}

	// Skips outside the window can no longer come up
	s.skipped = window
	s.events <- result
}

func (s *Service) emitOutcome(o staking.Outcome) {
	switch o.Kind {
	case staking.OutcomeRecorded:
		s.events <- TransferRecorded{Signature: o.Signature, Wallet: o.Wallet, Amount: o.Amount}
	case staking.OutcomeSkipped:
		s.skipped[o.Signature] = struct{}{}
		s.events <- TransferSkipped{Signature: o.Signature, Reason: o.Reason}
	}
}
