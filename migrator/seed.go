package migrator

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/pkg/pgxdb"
	"github.com/screwyprof/stakevote/staking"
	stakingstore "github.com/screwyprof/stakevote/staking/store/pgxstore"
	"github.com/screwyprof/stakevote/voting"
	votingstore "github.com/screwyprof/stakevote/voting/store/pgxstore"
)

// DemoStake is one seeded ledger entry
type DemoStake struct {
	Wallet    string
	Amount    decimal.Decimal
	Signature string
}

// DemoToken is a token the seeded votes may reference
type DemoToken struct {
	Address  string
	Name     string
	Symbol   string
	Analysis voting.TokenAnalysis
}

// DemoVote is one seeded vote, cast through the voting service
type DemoVote struct {
	Wallet string
	Token  string
}

// DemoData describes the demo database content
type DemoData struct {
	Version    string
	Start      time.Time
	Stakes     []DemoStake
	Unstakes   []DemoStake
	Tokens     []DemoToken
	Votes      []DemoVote
	Checkpoint string
}

// Well known mainnet mints used by the demo data
const (
	DemoTokenBonk = "DezXAZ8z7PnrnRJjz3wXBoRgixCa6xjnB7YaB1pPB263"
	DemoTokenJup  = "JUPyiwrYJFskUPiHa7hkeR8VUtAeFoSYbKedZNsDvCN"
	DemoTokenWif  = "EKpQGSJtjMFqKZ9KQanSqYXRcF8fBopzLHYxdM65zcjm"
)

// DemoWalletKey derives a stable signing key for demo slot n
func DemoWalletKey(n int) solana.PrivateKey {
	seed := sha256.Sum256([]byte("stakevote-demo-wallet-" + strconv.Itoa(n)))
	return solana.PrivateKey(ed25519.NewKeyFromSeed(seed[:]))
}

// DemoWallet is the address of DemoWalletKey(n)
func DemoWallet(n int) string {
	return DemoWalletKey(n).PublicKey().String()
}

// DefaultDemoData returns four wallets, three tokens and five votes.
// Wallet 4 staked and fully unstaked, so it cannot vote.
func DefaultDemoData() DemoData {
	stake := func(n int, amount int64) DemoStake {
		return DemoStake{
			Wallet:    DemoWallet(n),
			Amount:    decimal.NewFromInt(amount),
			Signature: fmt.Sprintf("demo-stake-%d", n),
		}
	}

	return DemoData{
		Version: "v1",
		Start:   time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC),
		Stakes: []DemoStake{
			stake(1, 1500),
			stake(2, 800),
			stake(3, 250),
			stake(4, 100),
		},
		Unstakes: []DemoStake{
			{Wallet: DemoWallet(4), Amount: decimal.NewFromInt(100), Signature: "demo-unstake-4"},
		},
		Tokens: []DemoToken{
			{Address: DemoTokenBonk, Name: "Bonk", Symbol: "BONK", Analysis: voting.TokenAnalysis{Price: 0.000021, Liquidity: 8_500_000, Volume24h: 41_000_000, FDV: 1_600_000_000}},
			{Address: DemoTokenJup, Name: "Jupiter", Symbol: "JUP", Analysis: voting.TokenAnalysis{Price: 0.82, Liquidity: 12_000_000, Volume24h: 23_000_000, FDV: 8_200_000_000}},
			{Address: DemoTokenWif, Name: "dogwifhat", Symbol: "WIF", Analysis: voting.TokenAnalysis{Price: 1.45, Liquidity: 6_300_000, Volume24h: 150_000_000, FDV: 1_450_000_000}},
		},
		Votes: []DemoVote{
			{Wallet: DemoWallet(1), Token: DemoTokenBonk},
			{Wallet: DemoWallet(2), Token: DemoTokenBonk},
			{Wallet: DemoWallet(3), Token: DemoTokenJup},
			{Wallet: DemoWallet(1), Token: DemoTokenJup},
			{Wallet: DemoWallet(2), Token: DemoTokenWif},
		},
	}
}

// Seed writes data through the production stores and the voting service
func Seed(ctx context.Context, dbURL string, data DemoData) error {
	slog.InfoContext(ctx, "🌱 Seeding demo database",
		slog.String("version", data.Version),
		slog.Int("stakes", len(data.Stakes)),
		slog.Int("votes", len(data.Votes)),
	)

	pool, err := pgxdb.NewConnection(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSeedFailed, err)
	}
	defer pool.Close()

	stakes, _ := stakingstore.New(pool)
	votes, _ := votingstore.New(pool)

	for _, s := range data.Stakes {
		if _, err := stakes.RecordDelta(ctx, s.Wallet, s.Amount, s.Signature); err != nil && !staking.IsAlreadyRecorded(err) {
			return fmt.Errorf("%w: stake %s: %w", ErrSeedFailed, s.Signature, err)
		}
	}
	for _, u := range data.Unstakes {
		if _, err := stakes.RecordUnstake(ctx, u.Wallet, u.Amount, u.Signature); err != nil && !staking.IsAlreadyRecorded(err) {
			return fmt.Errorf("%w: unstake %s: %w", ErrSeedFailed, u.Signature, err)
		}
	}

	// Votes are spaced one cooldown plus a minute apart
	clk := &stepClock{now: data.Start, step: voting.DefaultCooldown + time.Minute}
	svc := voting.NewService(votes, stakes, DemoTokens(data.Tokens), voting.WithClock(clk))
	for _, v := range data.Votes {
		if _, err := svc.SubmitVote(ctx, v.Wallet, v.Token); err != nil {
			return fmt.Errorf("%w: vote by %s: %w", ErrSeedFailed, v.Wallet, err)
		}
		clk.advance()
	}

	if data.Checkpoint != "" {
		if err := SetCheckpoint(ctx, pool, data.Checkpoint); err != nil {
			return err
		}
	}

	slog.InfoContext(ctx, "✅ Demo database seeding completed successfully")
	return nil
}

// DemoTokens validates only the seeded tokens
type DemoTokens []DemoToken

func (d DemoTokens) Validate(_ context.Context, address string) (voting.TokenInfo, error) {
	for _, t := range d {
		if t.Address == address {
			return voting.TokenInfo{Valid: true, Name: t.Name, Symbol: t.Symbol, Analysis: t.Analysis}, nil
		}
	}
	return voting.TokenInfo{}, nil
}

// stepClock moves forward only when told to
type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time { return c.now }

func (c *stepClock) After(d time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- c.now.Add(d)
	return ch
}

func (c *stepClock) advance() { c.now = c.now.Add(c.step) }
