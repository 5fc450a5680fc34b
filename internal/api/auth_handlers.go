package api

import (
	"net/http"

	"github.com/example/ec-wallet-shop/internal/api/middleware"
	"github.com/example/ec-wallet-shop/internal/domain/user"
	"github.com/go-chi/chi"
	"go.uber.org/zap"
)

// AuthHandlers handles authentication-related HTTP requests
type AuthHandlers struct {
	responder
	userService *user.Service
}

// NewAuthHandlers creates a new AuthHandlers instance
func NewAuthHandlers(userService *user.Service, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{responder: newResponder(logger), userService: userService}
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var req user.RegisterInput
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	newUser, err := h.userService.Register(r.Context(), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusCreated, newUser)
}

// Login handles user login and sets the access token cookie
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	session, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    session.AccessToken,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteStrictMode,
	})

	respondJSON(w, http.StatusOK, session)
}

// Logout clears the access token cookie. Tokens are stateless, so there is
// nothing to revoke server side.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AccessTokenCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})

	respondMessage(w, http.StatusOK, "Logout successful")
}

// Me returns the current authenticated user's profile including balance
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	u, err := h.userService.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, u)
}

// ListUsers returns every account. Admin only.
func (h *AuthHandlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.List(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, users)
}

// UpdateUser changes the name or role of an account. Admin only.
func (h *AuthHandlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	var req user.UpdateInput
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, err)
		return
	}

	u, err := h.userService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, u)
}

// DeleteUser removes an account without orders. Admin only.
func (h *AuthHandlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	if err := h.userService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}

	respondMessage(w, http.StatusOK, "User deleted")
}
