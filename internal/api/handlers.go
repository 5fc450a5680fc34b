package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/example/ec-wallet-shop/internal/apperror"
	"go.uber.org/zap"
)

var (
	ErrInvalidBody      = apperror.New(apperror.ErrValidation, "Invalid request body")
	ErrQuantityRequired = apperror.New(apperror.ErrValidation, "quantity is required")
)

// envelope is the shape of every response body.
type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Data: data})
}

func respondMessage(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: true, Message: message})
}

func respondJSONError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Success: false, Message: message})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(err error) int {
	switch apperror.KindOf(err) {
	case apperror.ErrNotFound:
		return http.StatusNotFound
	case apperror.ErrValidation,
		apperror.ErrInsufficientStock,
		apperror.ErrInsufficientFunds,
		apperror.ErrIllegalTransition,
		apperror.ErrInactive:
		return http.StatusBadRequest
	case apperror.ErrConflict:
		return http.StatusConflict
	case apperror.ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// responder writes error responses. Storage and unknown failures are logged
// and reported with an opaque message.
type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return responder{logger: logger}
}

func (rs responder) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		rs.logger.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		respondJSONError(w, "Internal server error", status)
		return
	}
	respondJSONError(w, err.Error(), status)
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidBody, err)
	}
	return nil
}

// queryInt parses an optional integer query parameter.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.Newf(apperror.ErrValidation, "%s must be an integer", name)
	}
	return n, nil
}

type quantityRequest struct {
	Quantity *int `json:"quantity"`
}

func (q quantityRequest) value() (int, error) {
	if q.Quantity == nil {
		return 0, ErrQuantityRequired
	}
	return *q.Quantity, nil
}
