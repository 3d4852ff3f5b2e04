package handler

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/auth"
	"github.com/screwyprof/stakevote/pkg/httpkit"
	"github.com/screwyprof/stakevote/staking"
	"github.com/screwyprof/stakevote/web/api"
	"github.com/screwyprof/stakevote/web/handler/bind"
)

const (
	StakeStatusRoute  = http.MethodGet + " " + "/api/stakes/status/{wallet}"
	TotalStakedRoute  = http.MethodGet + " " + "/api/stakes/total"
	PendingStakeRoute = http.MethodGet + " " + "/api/stakes/pending/{wallet}"
	StakeHistoryRoute = http.MethodGet + " " + "/api/stakes/history/{wallet}"
	PrepareStakeRoute = http.MethodPost + " " + "/api/stakes/prepare"
	ConfirmStakeRoute = http.MethodPost + " " + "/api/stakes/confirm"
	UnstakeRoute      = http.MethodPost + " " + "/api/stakes/unstake"
)

// StakeService is the staking side of the API
type StakeService interface {
	Prepare(ctx context.Context, wallet string, amount decimal.Decimal) (staking.PreparedStake, error)
	Confirm(ctx context.Context, wallet, signature string) (staking.ConfirmResult, error)
	Status(ctx context.Context, wallet string) (decimal.Decimal, error)
	Total(ctx context.Context) (decimal.Decimal, error)
	Pending(ctx context.Context, wallet string) ([]staking.PendingTransaction, error)
	History(ctx context.Context, wallet string, limit int) ([]staking.StakeEntry, error)
}

// Unstaker pays staked tokens back to a wallet
type Unstaker interface {
	Unstake(ctx context.Context, wallet string, amount decimal.Decimal) (string, error)
}

// Verifier checks signed requests
type Verifier interface {
	Verify(req auth.SignedRequest, action auth.Action) (auth.Message, error)
}

type Stakes struct {
	stakes   StakeService
	unstaker Unstaker
	verifier Verifier
}

func NewStakes(stakes StakeService, unstaker Unstaker, verifier Verifier) *Stakes {
	return &Stakes{
		stakes:   stakes,
		unstaker: unstaker,
		verifier: verifier,
	}
}

func (h *Stakes) AddRoutes(m *http.ServeMux) {
	m.Handle(StakeStatusRoute, httpkit.HandlerFunc(h.Status))
	m.Handle(TotalStakedRoute, httpkit.HandlerFunc(h.Total))
	m.Handle(PendingStakeRoute, httpkit.HandlerFunc(h.Pending))
	m.Handle(StakeHistoryRoute, httpkit.HandlerFunc(h.History))
	m.Handle(PrepareStakeRoute, httpkit.HandlerFunc(h.Prepare))
	m.Handle(ConfirmStakeRoute, httpkit.HandlerFunc(h.Confirm))
	m.Handle(UnstakeRoute, httpkit.HandlerFunc(h.Unstake))
}

func (h *Stakes) Status(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	wallet, err := bind.WalletParam(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	amount, err := h.stakes.Status(r.Context(), wallet)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(api.StakeStatusResponse{Amount: amount})
}

func (h *Stakes) Total(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	total, err := h.stakes.Total(r.Context())
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(api.TotalStakedResponse{Total: total})
}

func (h *Stakes) Pending(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	wallet, err := bind.WalletParam(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	txs, err := h.stakes.Pending(r.Context(), wallet)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.PendingTransactionsResponse(txs))
}

func (h *Stakes) Prepare(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.PrepareStakeRequest(w, r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	prepared, err := h.stakes.Prepare(r.Context(), req.WalletAddress, req.Amount)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.PrepareStakeResponse(prepared))
}

func (h *Stakes) Confirm(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.ConfirmStakeRequest(w, r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	res, err := h.stakes.Confirm(r.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.ConfirmStakeResponse(res))
}

func (h *Stakes) Unstake(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.UnstakeRequest(w, r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	msg, err := h.verifier.Verify(req.SignedRequest, auth.ActionUnstake)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}
	if err := bind.MatchUnstakeData(msg, req); err != nil {
		return httpkit.JsonError(mapError(err))
	}

	signature, err := h.unstaker.Unstake(r.Context(), req.WalletAddress, req.Amount)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(api.UnstakeResponse{Signature: signature})
}

// History lists the wallet's stakes and unstakes, newest first
func (h *Stakes) History(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	wallet, err := bind.WalletParam(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}
	limit, err := bind.HistoryLimit(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	entries, err := h.stakes.History(r.Context(), wallet, limit)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.StakeHistoryResponse(entries))
}
