package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-user-registration/internal/application/user"
	"github.com/go-user-registration/internal/domain"
	"github.com/go-user-registration/internal/pkg/validate"
	"github.com/go-user-registration/internal/transport/http/middleware"
)

const (
	registeredMessage = "User registered. Please check your email for verification code to activate your account."
	resentMessage     = "A new verification code has been sent to your email."
)

// UserHandler handles registration and activation endpoints.
type UserHandler struct {
	svc user.Service
}

func NewUserHandler(svc user.Service) *UserHandler { return &UserHandler{svc: svc} }

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req domain.RegisterUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	u, err := h.svc.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, RegisterEnvelope{
		UserID:  u.UserID,
		Email:   u.Email,
		Message: registeredMessage,
	})
}

func (h *UserHandler) ResendCode(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.CredentialsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	email, err := h.svc.ResendCode(r.Context(), creds.Email, creds.Password)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ResendCodeEnvelope{Email: email.String(), Message: resentMessage})
}

func (h *UserHandler) Activate(w http.ResponseWriter, r *http.Request) {
	creds, ok := middleware.CredentialsFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req domain.ActivateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	u, err := h.svc.Activate(r.Context(), creds.Email, creds.Password, req.Code)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ActivateEnvelope{UserID: u.UserID, Email: u.Email, IsActive: u.IsActive})
}
