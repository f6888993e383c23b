package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/weiawesome/wes-io-live/chat-client/internal/service"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/jwt"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/middleware"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/response"
)

// AuthHandler issues and revokes access tokens.
type AuthHandler struct {
	users  *service.UserService
	tokens *jwt.Manager
}

func NewAuthHandler(users *service.UserService, tokens *jwt.Manager) *AuthHandler {
	return &AuthHandler{users: users, tokens: tokens}
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"accessToken"`
	ID          string `json:"id"`
	Username    string `json:"username"`
}

// Login handles POST /login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}

	id, err := h.users.Login(r.Context(), req.Username, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidUsername), errors.Is(err, service.ErrPasswordRequired):
		response.BadRequest(w, r, err.Error())
		return
	case errors.Is(err, service.ErrInvalidCredentials):
		response.Unauthorized(w, r, err.Error())
		return
	case err != nil:
		response.InternalError(w, r, "login failed")
		return
	}

	token, err := h.tokens.GenerateToken(id.ID, id.Username)
	if err != nil {
		response.InternalError(w, r, "failed to issue token")
		return
	}

	l := log.Ctx(r.Context())
	l.Info().Str(log.FieldUserID, id.ID).Str(log.FieldUsername, id.Username).Msg("user logged in")

	response.Success(w, r, LoginResponse{AccessToken: token, ID: id.ID, Username: id.Username})
}

// Logout handles GET /logout. It must run behind RequireAuth.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, r, "not logged in")
		return
	}
	h.tokens.RevokeToken(claims)

	l := log.Ctx(r.Context())
	l.Info().Msg("user logged out")

	response.Success(w, r, map[string]string{"message": "logged out"})
}
