package staking

import (
	"log/slog"
	"time"

	"github.com/screwyprof/stakevote/pkg/clock"
	"github.com/screwyprof/stakevote/pkg/logger"
)

// Default configuration values
const (
	DefaultUnstakeLimit  = 5
	DefaultUnstakeWindow = 60 * time.Second
	DefaultTokenDecimals = 6
)

type options struct {
	log           *slog.Logger
	clock         Clock
	unstakeLimit  int
	unstakeWindow time.Duration
	decimals      uint8
}

func defaultOptions() options {
	return options{
		log:           logger.Discard(),
		clock:         clock.SystemClock{},
		unstakeLimit:  DefaultUnstakeLimit,
		unstakeWindow: DefaultUnstakeWindow,
		decimals:      DefaultTokenDecimals,
	}
}

// Option configures the stake and unstake services
type Option func(*options)

// WithLogger sets the logger used for best-effort side channels
func WithLogger(log *slog.Logger) Option {
	return func(o *options) { o.log = log }
}

// WithClock injects a custom Clock (e.g., for testing)
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithUnstakeRateLimit allows limit unstake requests per wallet within window.
// A limit of zero turns rate limiting off.
func WithUnstakeRateLimit(limit int, window time.Duration) Option {
	return func(o *options) {
		o.unstakeLimit = limit
		o.unstakeWindow = window
	}
}

// WithTokenDecimals sets the precision of the staked token; finer amounts are rejected
func WithTokenDecimals(d uint8) Option {
	return func(o *options) { o.decimals = d }
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
