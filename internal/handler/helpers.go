package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/atm-terminal-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error             string `json:"error"`
	AttemptsRemaining *int   `json:"attempts_remaining,omitempty"`
	LimitType         string `json:"limit_type,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var validation *domain.ErrValidation
	var invalidAmount *domain.ErrInvalidAmount
	var pinMismatch *domain.ErrPinMismatch
	var unauthorized *domain.ErrUnauthorized
	var sessionClosed *domain.ErrSessionClosed
	var forbidden *domain.ErrForbidden
	var notFound *domain.ErrNotFound
	var pending *domain.ErrOperationPending
	var noPending *domain.ErrNoPendingOperation
	var conflict *domain.ErrConflict
	var insufficientFunds *domain.ErrInsufficientFunds
	var limitExceeded *domain.ErrLimitExceeded
	var insufficientNotes *domain.ErrInsufficientNotes
	var lockedOut *domain.ErrLockedOut
	var circuitOpen *domain.ErrCircuitOpen
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &validation), errors.As(err, &invalidAmount):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &pinMismatch):
		remaining := pinMismatch.AttemptsRemaining
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: err.Error(), AttemptsRemaining: &remaining})
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &sessionClosed):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.As(err, &forbidden):
		logger.Warn("forbidden access", zap.String("error", err.Error()))
		writeError(w, http.StatusForbidden, err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &pending), errors.As(err, &noPending):
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &insufficientFunds):
		logger.Warn("insufficient funds",
			zap.Int64("available", insufficientFunds.Available),
			zap.Int64("required", insufficientFunds.Required),
		)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &limitExceeded):
		logger.Warn("limit exceeded", zap.String("error", err.Error()))
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error(), LimitType: limitExceeded.LimitType})
	case errors.As(err, &insufficientNotes):
		logger.Warn("insufficient notes", zap.String("error", err.Error()))
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &lockedOut):
		writeError(w, http.StatusLocked, err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.Error(err))
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
