package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/boddenberg/isp-billing-bfa/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorResponse{Error: msg, Code: code})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// decodeJSON reads the request body into dst. Unknown fields are rejected so
// typos in field names surface as 400s instead of silent no-ops.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return &domain.ErrValidation{Field: "body", Message: "invalid JSON: " + err.Error()}
	}
	return nil
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &domain.ErrValidation{Field: key, Message: "must be an integer"}
	}
	return n, nil
}

func queryBool(r *http.Request, key string) (bool, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, &domain.ErrValidation{Field: key, Message: "must be true or false"}
	}
	return b, nil
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var notFound *domain.ErrNotFound
	var circuitOpen *domain.ErrCircuitOpen
	var timeout *domain.ErrTimeout
	var validation *domain.ErrValidation
	var invalidAmount *domain.ErrInvalidAmount
	var integrity *domain.ErrDataIntegrity
	var constraint *domain.ErrConstraintViolation
	var conflict *domain.ErrConflict
	var inconsistency *domain.ErrDeliveryInconsistency
	var external *domain.ErrExternalService

	switch {
	case errors.As(err, &inconsistency):
		// checked first: it may wrap a transport error as well
		logger.Error("delivery inconsistency",
			zap.String("client_id", inconsistency.ClientID),
			zap.Bool("sent", inconsistency.Sent),
			zap.Error(err),
		)
		writeError(w, http.StatusBadGateway, "delivery_inconsistency", err.Error())
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		writeError(w, http.StatusServiceUnavailable, "circuit_open", err.Error())
	case errors.As(err, &timeout):
		logger.Error("request timeout", zap.Error(err))
		writeError(w, http.StatusGatewayTimeout, "timeout", err.Error())
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		writeError(w, http.StatusBadRequest, "validation", err.Error())
	case errors.As(err, &invalidAmount):
		logger.Debug("invalid amount", zap.String("amount", invalidAmount.Amount.String()))
		writeError(w, http.StatusUnprocessableEntity, "invalid_amount", err.Error())
	case errors.As(err, &integrity):
		logger.Warn("data integrity", zap.String("client_id", integrity.ClientID), zap.String("field", integrity.Field))
		writeError(w, http.StatusConflict, "data_integrity", err.Error())
	case errors.As(err, &constraint):
		logger.Debug("constraint violation", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, "constraint_violation", err.Error())
	case errors.As(err, &conflict):
		logger.Debug("conflict", zap.String("error", err.Error()))
		writeError(w, http.StatusConflict, "conflict", err.Error())
	case errors.As(err, &external):
		logger.Error("external service error", zap.String("service", external.Service), zap.Error(err))
		writeError(w, http.StatusBadGateway, "external_service", err.Error())
	default:
		logger.Error("unhandled error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal", "internal server error")
	}
}
