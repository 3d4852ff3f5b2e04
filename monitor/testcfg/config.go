package testcfg

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds test-specific configuration for monitor acceptance tests
// NOTE: All values are test-optimized (smaller, faster) compared to production
type Config struct {
	PollInterval    time.Duration `env:"MONITOR_TEST_POLL_INTERVAL" envDefault:"100ms"` // vs 30s in production
	ShutdownTimeout time.Duration `env:"MONITOR_TEST_SHUTDOWN_TIMEOUT" envDefault:"5s"`
	LeaderLockKey   int32         `env:"MONITOR_TEST_LEADER_LOCK_KEY" envDefault:"727099"`
}

// parseConfig wraps env.Parse to return (Config, error) for use with env.Must
func parseConfig() (Config, error) {
	var cfg Config
	err := env.Parse(&cfg)
	return cfg, err
}

// New loads test configuration from environment variables
func New() Config {
	return env.Must(parseConfig())
}
