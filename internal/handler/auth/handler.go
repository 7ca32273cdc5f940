// Package auth exposes the token endpoints: issuing an access/refresh
// pair for a user and rotating an expired access token.
package auth

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/HamdanKAlmehairbi/DellioProject/internal/service/token"
	"github.com/HamdanKAlmehairbi/DellioProject/pkg/utils"
)

// Handler serves the token routes.
type Handler struct {
	tokens *token.Manager
}

// New creates the auth handler.
func New(tokens *token.Manager) *Handler {
	return &Handler{tokens: tokens}
}

// RegisterRoutes mounts the token routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/generate-token", h.handleGenerateToken)
	r.Post("/refresh-token", h.handleRefreshToken)
}

type generateTokenRequest struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

func (h *Handler) handleGenerateToken(w http.ResponseWriter, r *http.Request) {
	var req generateTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.UserID = strings.TrimSpace(req.UserID)
	req.Email = strings.TrimSpace(req.Email)
	if req.UserID == "" || req.Email == "" {
		utils.RespondError(w, http.StatusBadRequest, "user_id and email are required")
		return
	}

	pair, err := h.tokens.GeneratePair(req.UserID, req.Email)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, "failed to generate tokens")
		return
	}

	utils.RespondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}

type refreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) handleRefreshToken(w http.ResponseWriter, r *http.Request) {
	var req refreshTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	pair, err := h.tokens.Refresh(req.RefreshToken)
	if err != nil {
		utils.RespondError(w, http.StatusUnauthorized, "invalid or expired refresh token")
		return
	}

	utils.RespondJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "bearer",
	})
}
