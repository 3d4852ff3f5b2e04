package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

// Error is the {code, message} body returned for every failed request.
// Client errors echo their cause; server errors only carry the status text.
type Error struct {
	cause    error
	message  string
	httpCode int
}

// errorBody is the wire shape of Error
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func newError(code int, cause error) *Error {
	message := http.StatusText(code)
	if code < http.StatusInternalServerError {
		message = cause.Error()
	}
	return &Error{cause: cause, message: message, httpCode: code}
}

// BadRequest reports invalid input, a failed business rule or a cooldown
func BadRequest(cause error) *Error { return newError(http.StatusBadRequest, cause) }

// Forbidden reports a signed request that does not authorize the action
func Forbidden(cause error) *Error { return newError(http.StatusForbidden, cause) }

// TooManyRequests reports a wallet over its unstake rate limit
func TooManyRequests(cause error) *Error { return newError(http.StatusTooManyRequests, cause) }

// InternalServerError hides storage and chain failures from the client
func InternalServerError(cause error) *Error {
	return newError(http.StatusInternalServerError, cause)
}

// Wrap turns err into an API error. Errors that already are one pass through;
// anything else is treated as internal.
func Wrap(err error) *Error {
	if err == nil {
		return nil
	}

	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return InternalServerError(err)
}

// HTTPCode is both the response status and the body code
func (e *Error) HTTPCode() int { return e.httpCode }

func (e *Error) Error() string { return e.message }

func (e *Error) Unwrap() error { return e.cause }

// Cause is what the access log records
func (e *Error) Cause() error { return e.cause }

func (e *Error) MarshalJSON() ([]byte, error) {
	return json.Marshal(errorBody{Code: e.httpCode, Message: e.message})
}
