package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/screwyprof/stakevote/monitor"
	"github.com/screwyprof/stakevote/monitor/config"
	"github.com/screwyprof/stakevote/monitor/store/pgxstore"
	"github.com/screwyprof/stakevote/pkg/chain"
	"github.com/screwyprof/stakevote/pkg/logger"
	"github.com/screwyprof/stakevote/pkg/pgxdb"
	stakingstore "github.com/screwyprof/stakevote/staking/store/pgxstore"
)

var (
	version = "dev"
	date    = "unknown"
)

var errMonitorStopped = errors.New("monitor stopped unexpectedly")

func main() {
	// Optional .env for local runs
	_ = godotenv.Load()

	// Load configuration
	cfg := config.New()

	// Initialize logger and set as default
	log := logger.NewFromConfig(logger.Config{
		LogLevel:         cfg.LogLevel,
		LogHumanFriendly: cfg.LogHumanFriendly,
	})
	slog.SetDefault(log)

	// Prepare context with signal handling
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.InfoContext(ctx, "StakeVote transfer monitor starting",
		slog.String("version", version),
		slog.String("date", date),
		slog.String("paymentAddress", cfg.PaymentAddress),
	)

	// Database connection; the leader lock pins one connection for the process lifetime
	db, err := pgxdb.NewConnectionWithOptions(ctx, cfg.DatabaseURL, pgxdb.PoolOptions{MinConns: 2, MaxConns: 4})
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Stores; their closers must run after the leader lock is released
	ledger, ledgerCloser := stakingstore.New(db)
	defer ledgerCloser()
	checkpoints, checkpointsCloser := pgxstore.New(db)
	defer checkpointsCloser()

	// Only one monitor may advance the checkpoint
	lock, err := pgxdb.WaitForLeadership(ctx, db, cfg.LeaderLockKey, cfg.LeaderRetryInterval, func() {
		log.InfoContext(ctx, "Another monitor is leading, waiting",
			slog.Int("lockKey", int(cfg.LeaderLockKey)),
			slog.Duration("retryInterval", cfg.LeaderRetryInterval),
		)
	})
	if err != nil {
		if ctx.Err() != nil {
			log.InfoContext(ctx, "Monitor stopped before becoming leader")
			return
		}
		log.ErrorContext(ctx, "Failed to acquire leader lock", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := lock.Release(releaseCtx); err != nil {
			log.ErrorContext(releaseCtx, "Failed to release leader lock", slog.Any("error", err))
		}
	}()
	log.InfoContext(ctx, "Leadership acquired", slog.Int("lockKey", int(cfg.LeaderLockKey)))

	// Solana RPC client watching the payment address
	rpcClient := chain.NewRPC(chain.NewHTTPClient(cfg.SolanaHTTPTimeout), cfg.SolanaRPCURL)
	chainClient, err := chain.NewClient(rpcClient, cfg.PaymentAddress)
	if err != nil {
		log.ErrorContext(ctx, "Invalid payment address", slog.Any("error", err))
		os.Exit(1)
	}

	processor := monitor.NewProcessor(chainClient, ledger, cfg.PaymentAddress, cfg.TokenMint,
		monitor.WithMaxAttempts(cfg.RetryAttempts),
		monitor.WithBackoff(monitor.ExponentialBackoff(cfg.RetryBackoff)),
	)

	// Push notifications wake the monitor up between ticks
	notify := make(chan struct{}, 1)
	notifier := chain.NewAccountNotifier(cfg.SolanaWSURL, cfg.PaymentAddress,
		chain.WithNotifierLogger(logger.Component(log, "notifier")),
	)

	service := monitor.NewService(chainClient, checkpoints, processor,
		monitor.WithPollInterval(cfg.PollInterval),
		monitor.WithSweepSize(cfg.SweepSize),
		monitor.WithFetchLimit(cfg.FetchLimit),
		monitor.WithNotifications(notify),
	)

	g, gctx := errgroup.WithContext(ctx)

	events, done := service.Start(gctx)
	subCloser := setupEventLogging(gctx, events, log)

	g.Go(func() error {
		return notifier.Run(gctx, notify)
	})
	// Losing the lock connection means another monitor may take over
	g.Go(func() error {
		return lock.Hold(gctx, cfg.LeaderPingInterval)
	})
	g.Go(func() error {
		<-done
		subCloser()
		// A monitor that stops on its own takes the notifier down with it
		if gctx.Err() == nil {
			return errMonitorStopped
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		log.ErrorContext(ctx, "Monitor failed", slog.Any("error", err))
		os.Exit(1)
	}
	log.InfoContext(ctx, "Monitor stopped gracefully")
}

// setupEventLogging configures event handlers using slog directly
func setupEventLogging(ctx context.Context, events <-chan monitor.Event, log *slog.Logger) func() {
	return monitor.NewSubscriber(events,
		monitor.OnMonitorStarted(func(event monitor.MonitorStarted) {
			log.InfoContext(ctx, "Monitor started",
				slog.String("startedAt", event.StartedAt.Format(logger.BritishTimeFormat)),
				slog.String("checkpoint", event.Checkpoint),
				slog.Duration("interval", event.Interval),
			)
		}),
		monitor.OnCheckCompleted(func(event monitor.CheckCompleted) {
			if event.Fetched > 0 {
				log.InfoContext(ctx, "Check completed",
					slog.String("trigger", string(event.Trigger)),
					slog.Int("fetched", event.Fetched),
					slog.String("checkpoint", event.Checkpoint),
				)
			} else {
				log.DebugContext(ctx, "Check completed, no new signatures",
					slog.String("trigger", string(event.Trigger)),
				)
			}
		}),
		monitor.OnTransferRecorded(func(event monitor.TransferRecorded) {
			log.InfoContext(ctx, "Stake recorded",
				slog.String("signature", event.Signature),
				slog.String("wallet", event.Wallet),
				slog.String("amount", event.Amount.String()),
			)
		}),
		monitor.OnTransferSkipped(func(event monitor.TransferSkipped) {
			log.DebugContext(ctx, "Transaction skipped",
				slog.String("signature", event.Signature),
				slog.String("reason", event.Reason),
			)
		}),
		monitor.OnReconciliationCompleted(func(event monitor.ReconciliationCompleted) {
			if event.Recorded > 0 || event.Failed > 0 {
				log.WarnContext(ctx, "Reconciliation found missed transfers",
					slog.Int("checked", event.Checked),
					slog.Int("recorded", event.Recorded),
					slog.Int("failed", event.Failed),
				)
			}
		}),
		monitor.OnPollingError(func(event monitor.PollingError) {
			log.ErrorContext(ctx, "Polling failed", slog.Any("error", event.Err))
		}),
		monitor.OnProcessingFailed(func(event monitor.ProcessingFailed) {
			log.ErrorContext(ctx, "Transfer processing failed",
				slog.String("signature", event.Signature),
				slog.Any("error", event.Err),
			)
		}),
		monitor.OnMonitorShutdown(func(event monitor.MonitorShutdown) {
			log.InfoContext(ctx, "Monitor stopped",
				slog.String("reason", event.Reason.Error()),
			)
		}),
	)
}
