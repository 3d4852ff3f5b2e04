package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/screwyprof/stakevote/auth"
	"github.com/screwyprof/stakevote/monitor"
	"github.com/screwyprof/stakevote/pkg/chain"
	"github.com/screwyprof/stakevote/pkg/dexscreener"
	"github.com/screwyprof/stakevote/pkg/logger"
	"github.com/screwyprof/stakevote/pkg/pgxdb"
	"github.com/screwyprof/stakevote/staking"
	stakingstore "github.com/screwyprof/stakevote/staking/store/pgxstore"
	"github.com/screwyprof/stakevote/voting"
	votingstore "github.com/screwyprof/stakevote/voting/store/pgxstore"
	"github.com/screwyprof/stakevote/web/config"
	"github.com/screwyprof/stakevote/web/handler"
)

var (
	version = "dev"
	date    = "unknown"
)

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

	log.InfoContext(ctx, "StakeVote Web API Service starting",
		slog.String("version", version),
		slog.String("date", date),
	)

	// Initialize database connection
	db, err := pgxdb.NewConnection(ctx, cfg.DatabaseURL)
	if err != nil {
		log.ErrorContext(ctx, "Failed to connect to database", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	// Initialize stores
	stakes, stakesCloser := stakingstore.New(db)
	defer stakesCloser()
	votes, votesCloser := votingstore.New(db)
	defer votesCloser()

	// Solana RPC: watcher for stake confirmations, builder and payouts for transfers
	rpcClient := chain.NewRPC(chain.NewHTTPClient(cfg.SolanaHTTPTimeout), cfg.SolanaRPCURL)
	chainClient, err := chain.NewClient(rpcClient, cfg.PaymentAddress)
	if err != nil {
		log.ErrorContext(ctx, "Invalid payment address", slog.Any("error", err))
		os.Exit(1)
	}
	token, err := chain.NewToken(cfg.TokenMint, cfg.TokenDecimals)
	if err != nil {
		log.ErrorContext(ctx, "Invalid token mint", slog.Any("error", err))
		os.Exit(1)
	}
	payouts, err := chain.NewPayouts(rpcClient, token, cfg.PaymentPrivateKey)
	if err != nil {
		log.ErrorContext(ctx, "Invalid payment key", slog.Any("error", err))
		os.Exit(1)
	}
	if payouts.PaymentAddress() != cfg.PaymentAddress {
		log.ErrorContext(ctx, "Payment key does not match payment address",
			slog.String("paymentAddress", cfg.PaymentAddress),
			slog.String("keyAddress", payouts.PaymentAddress()),
		)
		os.Exit(1)
	}
	builder, err := chain.NewStakeTxBuilder(rpcClient, token, cfg.PaymentAddress)
	if err != nil {
		log.ErrorContext(ctx, "Failed to create stake transaction builder", slog.Any("error", err))
		os.Exit(1)
	}
	processor := monitor.NewProcessor(chainClient, stakes, cfg.PaymentAddress, cfg.TokenMint)

	// Token validation through DexScreener
	dex := dexscreener.NewClient(&http.Client{Timeout: cfg.DexScreenerTimeout}, cfg.DexScreenerURL)

	// Domain services
	stakeService := staking.NewStakeService(stakes, builder, processor,
		staking.WithLogger(logger.Component(log, "staking")),
		staking.WithTokenDecimals(cfg.TokenDecimals),
	)
	unstakeService := staking.NewUnstakeService(stakes, payouts,
		staking.WithLogger(logger.Component(log, "unstaking")),
		staking.WithTokenDecimals(cfg.TokenDecimals),
		staking.WithUnstakeRateLimit(cfg.UnstakeRateLimit, cfg.UnstakeRateWindow),
	)
	voteLog := logger.Component(log, "voting")
	voteService := voting.NewService(votes, stakes, voting.NewDexValidator(dex),
		voting.WithCooldown(cfg.VoteCooldown),
		voting.WithLogger(voteLog),
		voting.WithStateObserver(func(wallet string, state voting.State, err error) {
			if err != nil {
				voteLog.DebugContext(ctx, "Vote rejected",
					slog.String("wallet", wallet),
					slog.String("error", err.Error()),
				)
				return
			}
			voteLog.DebugContext(ctx, "Vote state",
				slog.String("wallet", wallet),
				slog.String("state", string(state)),
			)
		}),
	)
	verifier := auth.NewVerifier(auth.WithMaxAge(cfg.AuthMaxAge))

	// Create HTTP server
	mux := http.NewServeMux()
	handler.NewStakes(stakeService, unstakeService, verifier).AddRoutes(mux)
	handler.NewVotes(voteService, verifier).AddRoutes(mux)
	handler.NewTokens(voteService).AddRoutes(mux)

	// Wrap with logging middleware
	loggedMux := logger.NewMiddleware(log)(mux)

	// Create server address
	addr := net.JoinHostPort(cfg.HTTPHost, cfg.HTTPPort)

	server := &http.Server{
		Addr:    addr,
		Handler: loggedMux,
	}

	// Start server in a goroutine
	go func() {
		log.InfoContext(ctx, "Server started", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.ErrorContext(ctx, "Server failed to start", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	<-ctx.Done()

	log.InfoContext(ctx, "Shutting down server...")

	// Give outstanding requests time to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.ErrorContext(ctx, "Server forced to shutdown", slog.Any("error", err))
		os.Exit(1)
	}

	log.InfoContext(ctx, "Server exited gracefully")
}
