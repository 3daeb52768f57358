package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-user-registration/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message   string `json:"message,omitempty"`
	Error     string `json:"error,omitempty"`
	ErrorCode int    `json:"error_code,omitempty"`
}

// RegisterEnvelope is returned by POST /users/register.
type RegisterEnvelope struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

// ActivateEnvelope is returned by POST /users/activate.
type ActivateEnvelope struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email"`
	IsActive bool   `json:"is_active"`
}

// ResendCodeEnvelope is returned by POST /users/resend-code.
type ResendCodeEnvelope struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg, ErrorCode: status})
}

// writeServiceError maps domain sentinels to a status and a fixed message.
// The wrapped error chain is only logged, never sent to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "err", err)
	} else {
		slog.Debug("request rejected", "method", r.Method, "path", r.URL.Path, "status", status, "err", err)
	}
	writeError(w, status, msg)
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, "user already exists or is already active"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "user not found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, domain.ErrCodeMismatch):
		return http.StatusBadRequest, "verification code is invalid"
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, "invalid request"
	case errors.Is(err, domain.ErrCodeUnavailable):
		return http.StatusGone, "verification code expired or was not issued"
	case errors.Is(err, domain.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
