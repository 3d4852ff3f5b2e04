package handler

import (
	"errors"

	"github.com/screwyprof/stakevote/auth"
	"github.com/screwyprof/stakevote/staking"
	"github.com/screwyprof/stakevote/voting"
	"github.com/screwyprof/stakevote/web/api"
	"github.com/screwyprof/stakevote/web/handler/bind"
)

// mapError classifies a domain error into an HTTP-aware API error
func mapError(err error) *api.Error {
	switch {
	case errors.Is(err, staking.ErrRateLimited):
		return api.TooManyRequests(err)

	case errors.Is(err, auth.ErrWalletMismatch),
		errors.Is(err, auth.ErrActionMismatch),
		errors.Is(err, auth.ErrInvalidSignature),
		errors.Is(err, auth.ErrMessageExpired),
		errors.Is(err, bind.ErrAmountMismatch),
		errors.Is(err, bind.ErrTokenMismatch):
		return api.Forbidden(err)

	case errors.Is(err, auth.ErrMissingAuthFields),
		errors.Is(err, auth.ErrMalformedMessage),
		errors.Is(err, staking.ErrInvalidAmount),
		errors.Is(err, staking.ErrInvalidAddress),
		errors.Is(err, staking.ErrInsufficientStake),
		errors.Is(err, staking.ErrNoPendingTransaction),
		errors.Is(err, voting.ErrCooldownActive),
		errors.Is(err, voting.ErrNoStake),
		errors.Is(err, voting.ErrInvalidToken),
		errors.Is(err, voting.ErrInvalidAddress):
		return api.BadRequest(err)
	}

	return api.Wrap(err)
}
