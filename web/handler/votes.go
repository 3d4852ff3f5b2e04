package handler

import (
	"context"
	"net/http"

	"github.com/screwyprof/stakevote/auth"
	"github.com/screwyprof/stakevote/pkg/httpkit"
	"github.com/screwyprof/stakevote/voting"
	"github.com/screwyprof/stakevote/web/api"
	"github.com/screwyprof/stakevote/web/handler/bind"
)

const (
	SubmitVoteRoute   = http.MethodPost + " " + "/api/votes"
	LastVoteRoute     = http.MethodGet + " " + "/api/votes/last/{wallet}"
	RankingsRoute     = http.MethodGet + " " + "/api/votes/rankings"
	ActivityLogsRoute = http.MethodGet + " " + "/api/votes/logs"
	VoteCountRoute    = http.MethodGet + " " + "/api/votes/count/{wallet}"
)

// VoteService is the voting side of the API
type VoteService interface {
	SubmitVote(ctx context.Context, wallet, tokenAddress string) (voting.VoteResult, error)
	LastVote(ctx context.Context, wallet string) (*voting.VoteEntry, error)
	Rankings(ctx context.Context) ([]voting.RankingRow, error)
	ActivityLogs(ctx context.Context, limit int) ([]voting.Activity, error)
	VoteCount(ctx context.Context, wallet string) (int, error)
}

type Votes struct {
	votes    VoteService
	verifier Verifier
}

func NewVotes(votes VoteService, verifier Verifier) *Votes {
	return &Votes{
		votes:    votes,
		verifier: verifier,
	}
}

func (h *Votes) AddRoutes(m *http.ServeMux) {
	m.Handle(SubmitVoteRoute, httpkit.HandlerFunc(h.SubmitVote))
	m.Handle(LastVoteRoute, httpkit.HandlerFunc(h.LastVote))
	m.Handle(RankingsRoute, httpkit.HandlerFunc(h.Rankings))
	m.Handle(ActivityLogsRoute, httpkit.HandlerFunc(h.ActivityLogs))
	m.Handle(VoteCountRoute, httpkit.HandlerFunc(h.VoteCount))
}

func (h *Votes) SubmitVote(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	req, err := bind.SubmitVoteRequest(w, r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	msg, err := h.verifier.Verify(req.SignedRequest, auth.ActionVote)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}
	if err := bind.MatchVoteData(msg, req); err != nil {
		return httpkit.JsonError(mapError(err))
	}

	res, err := h.votes.SubmitVote(r.Context(), req.WalletAddress, req.TokenAddress)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.SubmitVoteResponse(res))
}

// LastVote responds with null when the wallet never voted
func (h *Votes) LastVote(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	wallet, err := bind.WalletParam(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	vote, err := h.votes.LastVote(r.Context(), wallet)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.VoteResponse(vote))
}

func (h *Votes) Rankings(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	rows, err := h.votes.Rankings(r.Context())
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.RankingsResponse(rows))
}

func (h *Votes) ActivityLogs(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	limit, err := bind.LogsLimit(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	items, err := h.votes.ActivityLogs(r.Context(), limit)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.ActivityResponse(items))
}

func (h *Votes) VoteCount(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	wallet, err := bind.WalletParam(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	count, err := h.votes.VoteCount(r.Context(), wallet)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(api.VoteCountResponse{Count: count})
}
