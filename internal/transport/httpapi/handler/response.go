package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/payrail/payrail/internal/eventlog"
	"github.com/payrail/payrail/internal/ledger"
	"github.com/payrail/payrail/internal/payout"
	apperrors "github.com/payrail/payrail/internal/shared/errors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, statusCode int, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondDomainError maps a domain error onto the HTTP status contract:
// validation 400, not-found 404, conflicts and illegal transitions 409,
// everything else 500 with the detail kept out of the response body.
func respondDomainError(w http.ResponseWriter, err error) {
	if appErr := apperrors.GetAppError(err); appErr != nil {
		respondJSON(w, appErrorStatus(appErr.Code), ErrorResponse{
			Error: appErr.Message,
			Code:  appErr.Code,
		})
		return
	}

	switch {
	case isValidationErr(err):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, payout.ErrPayoutNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrTransactionNotFound),
		errors.Is(err, eventlog.ErrEventNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, payout.ErrIdempotencyConflict),
		errors.Is(err, payout.ErrIllegalTransition),
		errors.Is(err, payout.ErrExternalIDMismatch),
		errors.Is(err, ledger.ErrTransactionConflict):
		respondError(w, http.StatusConflict, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}

func appErrorStatus(code string) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict,
		apperrors.ErrCodeIdempotencyConflict,
		apperrors.ErrCodeIllegalTransition:
		return http.StatusConflict
	case apperrors.ErrCodeProviderTransient,
		apperrors.ErrCodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func isValidationErr(err error) bool {
	for _, target := range []error{
		payout.ErrMissingIdempotencyKey,
		payout.ErrIdempotencyKeyTooLong,
		payout.ErrNonPositiveAmount,
		payout.ErrMissingRecipient,
		payout.ErrMissingRecipientName,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
