package handler

import (
	"context"
	"net/http"

	"github.com/screwyprof/stakevote/pkg/httpkit"
	"github.com/screwyprof/stakevote/voting"
	"github.com/screwyprof/stakevote/web/api"
	"github.com/screwyprof/stakevote/web/handler/bind"
)

const TokenValidateRoute = http.MethodGet + " " + "/api/tokens/validate/{address}"

// TokenService looks tokens up on the DEX
type TokenService interface {
	ValidateToken(ctx context.Context, tokenAddress string) (voting.TokenInfo, error)
}

type Tokens struct {
	tokens TokenService
}

func NewTokens(tokens TokenService) *Tokens {
	return &Tokens{tokens: tokens}
}

func (h *Tokens) AddRoutes(m *http.ServeMux) {
	m.Handle(TokenValidateRoute, httpkit.HandlerFunc(h.Validate))
}

// Validate answers isValid false for tokens the DEX does not trade
func (h *Tokens) Validate(w http.ResponseWriter, r *http.Request) http.HandlerFunc {
	address, err := bind.AddressParam(r)
	if err != nil {
		return httpkit.JsonError(api.BadRequest(err))
	}

	info, err := h.tokens.ValidateToken(r.Context(), address)
	if err != nil {
		return httpkit.JsonError(mapError(err))
	}

	return httpkit.JSON(bind.TokenValidationResponse(info))
}
