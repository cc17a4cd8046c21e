package authhandler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"leavedesk/internal/domain/auth"
	"leavedesk/internal/domain/user"
	"leavedesk/internal/transport/http/api"
	"leavedesk/internal/transport/http/middleware"
)

type Handler struct {
	Users     *user.Service
	JWTSecret string
	TokenTTL  time.Duration
}

func NewHandler(users *user.Service, jwtSecret string, tokenTTL time.Duration) *Handler {
	return &Handler{Users: users, JWTSecret: jwtSecret, TokenTTL: tokenTTL}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.handleLogin)
		r.Post("/logout", h.handleLogout)
		r.Get("/me", h.handleMe)
		r.Post("/change-password", h.handleChangePassword)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Get("/check-username", h.handleCheckUsername)
	})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	u, sessionID, err := h.Users.Login(r.Context(), payload.Username, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrInvalidCredentials):
			api.Fail(w, http.StatusUnauthorized, "invalid_credentials", "invalid username or password", reqID)
		case errors.Is(err, user.ErrAccountDisabled):
			api.Fail(w, http.StatusForbidden, "account_disabled", "account is inactive", reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", reqID)
		}
		return
	}

	token, err := auth.GenerateToken(h.JWTSecret, auth.Claims{UserID: u.ID.String(), SessionID: sessionID}, h.TokenTTL)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "login_failed", "login failed", reqID)
		return
	}

	api.Success(w, map[string]any{"token": token, "user": u}, reqID)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	if err := h.Users.Logout(r.Context(), actor.UserID); err != nil {
		api.Fail(w, http.StatusInternalServerError, "logout_failed", "logout failed", reqID)
		return
	}
	api.Success(w, map[string]string{"status": "logged out"}, reqID)
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}
	u, err := h.Users.GetByID(r.Context(), actor.UserID)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "profile_failed", "failed to load profile", reqID)
		return
	}
	api.Success(w, u, reqID)
}

func (h *Handler) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	actor, ok := middleware.GetUser(r.Context())
	if !ok {
		api.Fail(w, http.StatusUnauthorized, "unauthorized", "authentication required", reqID)
		return
	}

	var payload struct {
		CurrentPassword string `json:"currentPassword"`
		NewPassword     string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	err := h.Users.ChangePassword(r.Context(), actor.UserID, payload.CurrentPassword, payload.NewPassword)
	if err != nil {
		switch {
		case errors.Is(err, user.ErrWeakPassword):
			api.Fail(w, http.StatusBadRequest, "weak_password", err.Error(), reqID)
		case errors.Is(err, user.ErrInvalidCredentials):
			api.Fail(w, http.StatusForbidden, "invalid_credentials", "current password is incorrect", reqID)
		default:
			api.Fail(w, http.StatusInternalServerError, "password_change_failed", "failed to change password", reqID)
		}
		return
	}
	api.Success(w, map[string]string{"status": "password changed"}, reqID)
}

// handleForgotPassword always answers the same way so the endpoint leaks
// nothing about which emails have accounts.
func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	var payload struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", reqID)
		return
	}

	h.Users.ForgotPassword(r.Context(), payload.Email)
	api.Success(w, map[string]string{"status": "if the account exists, recovery instructions were sent"}, reqID)
}

func (h *Handler) handleCheckUsername(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())
	username := r.URL.Query().Get("username")

	available, err := h.Users.UsernameAvailable(r.Context(), username)
	if err != nil {
		api.Fail(w, http.StatusInternalServerError, "username_check_failed", "failed to check username", reqID)
		return
	}
	api.Success(w, map[string]bool{"available": available}, reqID)
}
