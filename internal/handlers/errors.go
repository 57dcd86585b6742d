package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/wagers/internal/apperrors"
	"github.com/nkiryanov/wagers/internal/handlers/render"
	"github.com/nkiryanov/wagers/internal/logger"
)

// Service error kinds and how they are rendered. First match wins.
var errorResponses = []struct {
	err     error
	code    int
	message string
}{
	{apperrors.ErrWagerNotFound, http.StatusNotFound, "Wager not found"},
	{apperrors.ErrUserNotFound, http.StatusNotFound, "User not found"},
	{apperrors.ErrNotFound, http.StatusNotFound, "Not found"},
	{apperrors.ErrForbidden, http.StatusForbidden, "Forbidden"},
	{apperrors.ErrInsufficientFunds, http.StatusPaymentRequired, "Insufficient balance"},
	{apperrors.ErrStakeMismatch, http.StatusUnprocessableEntity, "Stake does not match fixed stake"},
	{apperrors.ErrStakeOutOfRange, http.StatusUnprocessableEntity, "Stake is out of allowed range"},
	{apperrors.ErrInvalidChoice, http.StatusUnprocessableEntity, "Invalid choice"},
	{apperrors.ErrInvalidStake, http.StatusUnprocessableEntity, "Invalid stake"},
	{apperrors.ErrInvalidAmount, http.StatusUnprocessableEntity, "Invalid amount"},
	{apperrors.ErrWagerClosed, http.StatusConflict, "Wager is not active"},
	{apperrors.ErrDeadlinePassed, http.StatusConflict, "Wager deadline passed"},
	{apperrors.ErrWagerHasBets, http.StatusConflict, "Wager already has participants"},
	{apperrors.ErrUserAlreadyExists, http.StatusConflict, "User already exists"},
	{apperrors.ErrConflict, http.StatusConflict, "Concurrent update, please retry"},
	{apperrors.ErrUnavailable, http.StatusServiceUnavailable, "Service unavailable, please retry"},
}

// Render service error as json. Unknown errors are logged and hidden behind 500.
func renderError(w http.ResponseWriter, err error, l logger.Logger) {
	if errors.Is(err, apperrors.ErrWagerInvalid) {
		render.ServiceError(w, invalidWagerMessage(err), http.StatusUnprocessableEntity)
		return
	}

	for _, e := range errorResponses {
		if errors.Is(err, e.err) {
			if e.code >= http.StatusInternalServerError {
				l.Error("Service unavailable", "error", err)
			}
			render.ServiceError(w, e.message, e.code)
			return
		}
	}

	l.Error("Unexpected service error", "error", err)
	render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
}

// Keep validation details: "create wager: wager parameters are invalid: title is required" -> "Invalid wager: title is required"
func invalidWagerMessage(err error) string {
	_, detail, found := strings.Cut(err.Error(), apperrors.ErrWagerInvalid.Error()+": ")
	if !found {
		return "Invalid wager"
	}
	return "Invalid wager: " + detail
}
