package bind

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/screwyprof/stakevote/auth"
	"github.com/screwyprof/stakevote/pkg/httpkit"
	"github.com/screwyprof/stakevote/staking"
	"github.com/screwyprof/stakevote/voting"
	"github.com/screwyprof/stakevote/web/api"
)

// Sentinel errors for request binding
var (
	ErrInvalidBody      = errors.New("invalid request body")
	ErrMissingWallet    = errors.New("wallet address is required")
	ErrMissingAmount    = errors.New("amount is required")
	ErrMissingToken     = errors.New("token address is required")
	ErrMissingSignature = errors.New("transaction signature is required")
	ErrInvalidLimit     = errors.New("invalid limit parameter")

	// Specific limit validation errors
	ErrLimitNotNumeric  = errors.New("limit must be numeric")
	ErrLimitNotPositive = errors.New("limit must be positive")

	// Signed message data must agree with the request body
	ErrAmountMismatch = errors.New("signed amount does not match request amount")
	ErrTokenMismatch  = errors.New("signed token does not match request token")
)

// WalletParam returns the {wallet} path value
func WalletParam(r *http.Request) (string, error) {
	wallet := strings.TrimSpace(r.PathValue("wallet"))
	if wallet == "" {
		return "", ErrMissingWallet
	}
	return wallet, nil
}

// AddressParam returns the {address} path value
func AddressParam(r *http.Request) (string, error) {
	address := strings.TrimSpace(r.PathValue("address"))
	if address == "" {
		return "", ErrMissingToken
	}
	return address, nil
}

// LogsLimit binds the optional limit query parameter.
// Values above the maximum are clamped by the voting service.
func LogsLimit(r *http.Request) (int, error) {
	return limitParam(r, voting.DefaultLogsLimit)
}

// HistoryLimit binds the optional limit query parameter of the stake history
func HistoryLimit(r *http.Request) (int, error) {
	return limitParam(r, staking.DefaultHistoryLimit)
}

func limitParam(r *http.Request, def int) (int, error) {
	param := r.URL.Query().Get("limit")
	if param == "" {
		return def, nil
	}

	limit, err := strconv.Atoi(param)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidLimit, ErrLimitNotNumeric)
	}
	if limit <= 0 {
		return 0, fmt.Errorf("%w: %w", ErrInvalidLimit, ErrLimitNotPositive)
	}
	return limit, nil
}

// UnstakeRequest decodes POST /api/stakes/unstake
func UnstakeRequest(w http.ResponseWriter, r *http.Request) (api.UnstakeRequest, error) {
	var req api.UnstakeRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if req.WalletAddress == "" {
		return req, ErrMissingWallet
	}
	if req.Amount.IsZero() {
		return req, ErrMissingAmount
	}
	return req, nil
}

// PrepareStakeRequest decodes POST /api/stakes/prepare
func PrepareStakeRequest(w http.ResponseWriter, r *http.Request) (api.PrepareStakeRequest, error) {
	var req api.PrepareStakeRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if req.WalletAddress == "" {
		return req, ErrMissingWallet
	}
	if req.Amount.IsZero() {
		return req, ErrMissingAmount
	}
	return req, nil
}

// ConfirmStakeRequest decodes POST /api/stakes/confirm
func ConfirmStakeRequest(w http.ResponseWriter, r *http.Request) (api.ConfirmStakeRequest, error) {
	var req api.ConfirmStakeRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if req.WalletAddress == "" {
		return req, ErrMissingWallet
	}
	if req.Signature == "" {
		return req, ErrMissingSignature
	}
	return req, nil
}

// SubmitVoteRequest decodes POST /api/votes
func SubmitVoteRequest(w http.ResponseWriter, r *http.Request) (api.SubmitVoteRequest, error) {
	var req api.SubmitVoteRequest
	if err := httpkit.DecodeJSON(w, r, &req); err != nil {
		return req, fmt.Errorf("%w: %w", ErrInvalidBody, err)
	}
	if req.WalletAddress == "" {
		return req, ErrMissingWallet
	}
	if req.TokenAddress == "" {
		return req, ErrMissingToken
	}
	return req, nil
}

// MatchUnstakeData rejects a signed message whose data names another amount
func MatchUnstakeData(msg auth.Message, req api.UnstakeRequest) error {
	if len(msg.Data) == 0 {
		return nil
	}
	var data struct {
		Amount *decimal.Decimal `json:"amount"`
	}
	if err := msg.Bind(&data); err != nil {
		return err
	}
	if data.Amount != nil && !data.Amount.Equal(req.Amount) {
		return ErrAmountMismatch
	}
	return nil
}

// MatchVoteData rejects a signed message whose data names another token
func MatchVoteData(msg auth.Message, req api.SubmitVoteRequest) error {
	if len(msg.Data) == 0 {
		return nil
	}
	var data struct {
		TokenAddress string `json:"tokenAddress"`
	}
	if err := msg.Bind(&data); err != nil {
		return err
	}
	if data.TokenAddress != "" && data.TokenAddress != req.TokenAddress {
		return ErrTokenMismatch
	}
	return nil
}

// PrepareStakeResponse binds a prepared stake to the API response format
func PrepareStakeResponse(p staking.PreparedStake) api.PrepareStakeResponse {
	return api.PrepareStakeResponse{
		SerializedTransaction: p.SerializedTransaction,
		PendingID:             int64(p.PendingID),
	}
}

// ConfirmStakeResponse binds a confirmation result to the API response format
func ConfirmStakeResponse(res staking.ConfirmResult) api.ConfirmStakeResponse {
	out := api.Outcome{
		Kind:      string(res.Outcome.Kind),
		Signature: res.Outcome.Signature,
		Wallet:    res.Outcome.Wallet,
		Reason:    res.Outcome.Reason,
	}
	if !res.Outcome.Amount.IsZero() {
		amount := res.Outcome.Amount
		out.Amount = &amount
	}
	return api.ConfirmStakeResponse{Success: res.Success, Outcome: out}
}

// PendingTransactionsResponse binds pending records to the API response format
func StakeHistoryResponse(entries []staking.StakeEntry) []api.StakeHistoryEntry {
	out := make([]api.StakeHistoryEntry, len(entries))
	for i, e := range entries {
		typ := string(staking.PendingStake)
		if e.Amount.IsNegative() {
			typ = string(staking.PendingUnstake)
		}
		out[i] = api.StakeHistoryEntry{
			ID:        int64(e.ID),
			Type:      typ,
			Amount:    e.Amount.Abs(),
			Signature: e.Signature,
			Timestamp: e.Timestamp.UTC().Format(time.RFC3339),
		}
	}
	return out
}

func PendingTransactionsResponse(txs []staking.PendingTransaction) []api.PendingTransaction {
	out := make([]api.PendingTransaction, len(txs))
	for i, tx := range txs {
		out[i] = api.PendingTransaction{
			ID:            int64(tx.ID),
			WalletAddress: tx.Wallet,
			Amount:        tx.Amount,
			Type:          string(tx.Type),
			Status:        string(tx.Status),
			CreatedAt:     tx.CreatedAt.UTC().Format(time.RFC3339),
			Signature:     optional(tx.Signature),
			Error:         optional(tx.Error),
		}
		if tx.CompletedAt != nil {
			completed := tx.CompletedAt.UTC().Format(time.RFC3339)
			out[i].CompletedAt = &completed
		}
	}
	return out
}

// VoteResponse binds a vote to the API response format; nil stays nil
func VoteResponse(v *voting.VoteEntry) *api.Vote {
	if v == nil {
		return nil
	}
	return &api.Vote{
		ID:            int64(v.ID),
		WalletAddress: v.Wallet,
		TokenAddress:  v.TokenAddress,
		TokenName:     v.TokenName,
		TokenSymbol:   v.TokenSymbol,
		StakedAmount:  v.StakedAmount,
		AnalysisData:  v.AnalysisData,
		Timestamp:     v.Timestamp.UTC().Format(time.RFC3339),
		TimestampMS:   v.Timestamp.UnixMilli(),
	}
}

// RankingsResponse binds ranking rows to the API response format
func RankingsResponse(rows []voting.RankingRow) []api.Ranking {
	out := make([]api.Ranking, len(rows))
	for i, r := range rows {
		out[i] = api.Ranking{
			TokenAddress: r.TokenAddress,
			TokenName:    r.TokenName,
			TokenSymbol:  r.TokenSymbol,
			TotalStake:   r.TotalStake,
			VoteCount:    r.VoteCount,
			LastVote:     r.LastVote.UTC().Format(time.RFC3339),
		}
	}
	return out
}

// ActivityResponse binds the merged feed to the API response format
func ActivityResponse(items []voting.Activity) []api.Activity {
	out := make([]api.Activity, 0, len(items))
	for _, item := range items {
		a := api.Activity{
			Source:      string(item.Kind),
			Timestamp:   item.Timestamp.UTC().Format(time.RFC3339),
			TimestampMS: item.Timestamp.UnixMilli(),
		}
		switch {
		case item.Vote != nil:
			staked := item.Vote.StakedAmount
			a.ID = int64(item.Vote.ID)
			a.WalletAddress = item.Vote.Wallet
			a.TokenAddress = item.Vote.TokenAddress
			a.TokenName = item.Vote.TokenName
			a.TokenSymbol = item.Vote.TokenSymbol
			a.StakedAmount = &staked
			a.Data = item.Vote.AnalysisData
		case item.Log != nil:
			a.ID = item.Log.ID
			a.Type = string(item.Log.Type)
			a.Message = item.Log.Message
			a.RelatedID = item.Log.RelatedID
			a.Data = item.Log.Data
		}
		out = append(out, a)
	}
	return out
}

// SubmitVoteResponse binds a recorded vote to the API response format
func SubmitVoteResponse(res voting.VoteResult) api.SubmitVoteResponse {
	return api.SubmitVoteResponse{
		ID:           int64(res.ID),
		Timestamp:    res.Timestamp.UTC().Format(time.RFC3339),
		TokenName:    res.Token.Name,
		TokenSymbol:  res.Token.Symbol,
		StakedAmount: res.StakedAmount,
	}
}

// TokenValidationResponse binds a token lookup; an invalid token carries no details
func TokenValidationResponse(info voting.TokenInfo) api.TokenValidation {
	if !info.Valid {
		return api.TokenValidation{}
	}
	return api.TokenValidation{
		IsValid:   true,
		TokenInfo: &api.TokenInfo{Name: info.Name, Symbol: info.Symbol},
		AnalysisData: &api.TokenAnalysis{
			Price:     info.Analysis.Price,
			Liquidity: info.Analysis.Liquidity,
			Volume24h: info.Analysis.Volume24h,
			FDV:       info.Analysis.FDV,
		},
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
