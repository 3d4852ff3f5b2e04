package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/screwyprof/stakevote/auth"
	"github.com/screwyprof/stakevote/staking"
	stakingmem "github.com/screwyprof/stakevote/staking/store/memstore"
	"github.com/screwyprof/stakevote/voting"
	votingmem "github.com/screwyprof/stakevote/voting/store/memstore"
	"github.com/screwyprof/stakevote/web/api"
	"github.com/screwyprof/stakevote/web/handler"
)

var now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time                         { return c.t }
func (c fixedClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// apiServer wires the handlers to in-memory stores
type apiServer struct {
	mux      *http.ServeMux
	stakes   *stakingmem.Store
	votes    *votingmem.Store
	payouts  *stubTransferer
	confirms *stubProcessor
}

func newAPIServer(t *testing.T) *apiServer {
	t.Helper()

	clk := fixedClock{t: now}
	s := &apiServer{
		mux:      http.NewServeMux(),
		stakes:   stakingmem.New(stakingmem.WithClock(clk)),
		votes:    votingmem.New(),
		payouts:  &stubTransferer{},
		confirms: &stubProcessor{},
	}

	verifier := auth.NewVerifier(auth.WithClock(clk))
	stakeService := staking.NewStakeService(s.stakes, stubBuilder{tx: "AQID"}, s.confirms)
	unstakeService := staking.NewUnstakeService(s.stakes, s.payouts,
		staking.WithClock(clk), staking.WithUnstakeRateLimit(2, time.Minute))
	voteService := voting.NewService(s.votes, s.stakes, bonk{}, voting.WithClock(clk))

	handler.NewStakes(stakeService, unstakeService, verifier).AddRoutes(s.mux)
	handler.NewVotes(voteService, verifier).AddRoutes(s.mux)
	handler.NewTokens(voteService).AddRoutes(s.mux)
	return s
}

func (s *apiServer) stake(t *testing.T, wallet, amount, signature string) {
	t.Helper()
	_, err := s.stakes.RecordDelta(t.Context(), wallet, decimal.RequireFromString(amount), signature)
	require.NoError(t, err)
}

func (s *apiServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func amount(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func unstakeBody(t *testing.T, key solana.PrivateKey, amt string, data map[string]any) api.UnstakeRequest {
	t.Helper()
	return api.UnstakeRequest{
		SignedRequest: signed(t, key, auth.ActionUnstake, data),
		Amount:        amount(amt),
	}
}

func newWallet() solana.PrivateKey {
	return solana.NewWallet().PrivateKey
}

func signed(t *testing.T, key solana.PrivateKey, action auth.Action, data map[string]any) auth.SignedRequest {
	t.Helper()

	payload := map[string]any{
		"action":    action,
		"timestamp": now.UnixMilli(),
	}
	if data != nil {
		payload["data"] = data
	}
	msg, err := json.Marshal(payload)
	require.NoError(t, err)

	sig, err := key.Sign(msg)
	require.NoError(t, err)

	wallet := key.PublicKey().String()
	return auth.SignedRequest{
		Signature:     sig.String(),
		PublicKey:     wallet,
		Message:       string(msg),
		WalletAddress: wallet,
	}
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

type stubBuilder struct{ tx string }

func (b stubBuilder) Build(context.Context, string, decimal.Decimal) (string, error) {
	return b.tx, nil
}

type stubProcessor struct {
	outcome staking.Outcome
	err     error
}

func (p *stubProcessor) Process(_ context.Context, signature string) (staking.Outcome, error) {
	o := p.outcome
	o.Signature = signature
	return o, p.err
}

// stubTransferer hands out a fresh payout signature per transfer
type stubTransferer struct {
	mu   sync.Mutex
	paid []string
	err  error
}

func (s *stubTransferer) Transfer(context.Context, string, decimal.Decimal) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	sig := fmt.Sprintf("payout-sig-%d", len(s.paid)+1)
	s.paid = append(s.paid, sig)
	return sig, nil
}

func (s *stubTransferer) signatures() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.paid)
}

// untradedMint is the one token bonk does not know
const untradedMint = "So11111111111111111111111111111111111111112"

// bonk accepts every other token as BONK
type bonk struct{}

func (bonk) Validate(_ context.Context, tokenAddress string) (voting.TokenInfo, error) {
	if tokenAddress == untradedMint {
		return voting.TokenInfo{}, nil
	}
	return voting.TokenInfo{
		Valid:    true,
		Name:     "Bonk",
		Symbol:   "BONK",
		Analysis: voting.TokenAnalysis{Price: 0.00002, Liquidity: 1e6},
	}, nil
}
