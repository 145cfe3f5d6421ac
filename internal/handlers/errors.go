package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/nkiryanov/betplatform/internal/apperrors"
	"github.com/nkiryanov/betplatform/internal/handlers/render"
	"github.com/nkiryanov/betplatform/internal/logger"
)

// Error kinds rendered in 'error' field
const (
	errInvalidArgument   = "invalid_argument"
	errNotFound          = "not_found"
	errAlreadyExists     = "already_exists"
	errInvalidState      = "invalid_state"
	errWindowClosed      = "window_closed"
	errInsufficientFunds = "insufficient_funds"
	errBelowMinimum      = "below_minimum"
	errUnavailable       = "unavailable"
	errInternal          = "internal"
)

// Render error returned by services
func serviceError(w http.ResponseWriter, l logger.Logger, err error) {
	var funds *apperrors.InsufficientFundsError
	var minimum *apperrors.BelowMinimumError

	switch {
	case errors.As(err, &funds):
		render.Error(w, render.ErrorResponse{
			Error:     errInsufficientFunds,
			Message:   "Insufficient funds",
			Shortfall: funds.Shortfall().StringFixed(2),
		}, http.StatusPaymentRequired)
	case errors.As(err, &minimum):
		render.Error(w, render.ErrorResponse{
			Error:   errBelowMinimum,
			Message: "Amount does not buy a single quota",
			Minimum: minimum.Minimum.StringFixed(2),
		}, http.StatusUnprocessableEntity)
	case errors.Is(err, apperrors.ErrInvalidArgument):
		renderKind(w, errInvalidArgument, details(err, apperrors.ErrInvalidArgument), http.StatusBadRequest)
	case errors.Is(err, apperrors.ErrAccountNotFound):
		renderKind(w, errNotFound, "Account not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrEventNotFound):
		renderKind(w, errNotFound, "Event not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrNotFound):
		renderKind(w, errNotFound, "Not found", http.StatusNotFound)
	case errors.Is(err, apperrors.ErrAccountAlreadyExists):
		renderKind(w, errAlreadyExists, "Account already exists", http.StatusConflict)
	case errors.Is(err, apperrors.ErrWindowClosed):
		renderKind(w, errWindowClosed, "Betting window is closed", http.StatusConflict)
	case errors.Is(err, apperrors.ErrInvalidState):
		renderKind(w, errInvalidState, details(err, apperrors.ErrInvalidState), http.StatusConflict)
	case errors.Is(err, apperrors.ErrStoreUnavailable):
		l.Error("Store unavailable", "error", err)
		renderKind(w, errUnavailable, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		l.Error("Unexpected service error", "error", err)
		renderKind(w, errInternal, "Internal server error", http.StatusInternalServerError)
	}
}

func renderKind(w http.ResponseWriter, kind string, message string, code int) {
	render.Error(w, render.ErrorResponse{Error: kind, Message: message}, code)
}

// Message after the sentinel text, the whole error if sentinel is not found there
func details(err error, sentinel error) string {
	msg := err.Error()
	prefix := sentinel.Error() + ": "
	if i := strings.Index(msg, prefix); i >= 0 {
		return msg[i+len(prefix):]
	}
	return msg
}

// Parse uuid from request path, writes 400 on failure
func pathID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		renderKind(w, errInvalidArgument, "Invalid "+name, http.StatusBadRequest)
		return uuid.Nil, false
	}
	return id, true
}
