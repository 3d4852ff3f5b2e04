package staking

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// maxTrackedWallets bounds the limiter map; idle wallets are dropped past it
const maxTrackedWallets = 10000

// walletLimiter is a token bucket per wallet
type walletLimiter struct {
	mu       sync.Mutex
	clock    Clock
	every    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

// newWalletLimiter allows limit events per window; a non-positive limit or
// window disables limiting.
func newWalletLimiter(c Clock, limit int, window time.Duration) *walletLimiter {
	every := rate.Inf
	if limit > 0 && window > 0 {
		every = rate.Every(window / time.Duration(limit))
	}
	return &walletLimiter{
		clock:    c,
		every:    every,
		burst:    limit,
		limiters: make(map[string]*rate.Limiter),
	}
}

// allow consumes one token for wallet if available
func (l *walletLimiter) allow(wallet string) bool {
	if l.every == rate.Inf {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	lim, ok := l.limiters[wallet]
	if !ok {
		if len(l.limiters) >= maxTrackedWallets {
			l.pruneIdle(now)
		}
		lim = rate.NewLimiter(l.every, l.burst)
		l.limiters[wallet] = lim
	}
	return lim.AllowN(now, 1)
}

// pruneIdle drops limiters whose bucket has refilled
func (l *walletLimiter) pruneIdle(now time.Time) {
	for wallet, lim := range l.limiters {
		if lim.TokensAt(now) >= float64(l.burst) {
			delete(l.limiters, wallet)
		}
	}
}
