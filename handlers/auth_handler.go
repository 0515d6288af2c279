package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/upb/faculty-auth/middleware"
	"github.com/upb/faculty-auth/services/auth"
	"github.com/upb/faculty-auth/tenancy"
	"github.com/upb/faculty-auth/utils"
	"go.uber.org/zap"
)

// LoginRequest represents a credential exchange
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,max=1024"`
}

// RefreshRequest carries a refresh token for rotation or logout
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required,max=512"`
}

// TokenResponse is returned by login and refresh
type TokenResponse struct {
	AccessToken  string    `json:"accessToken"`
	RefreshToken string    `json:"refreshToken"`
	ExpiresAt    time.Time `json:"expiresAt"`
	TokenType    string    `json:"tokenType"`
}

// MeResponse describes the authenticated caller
type MeResponse struct {
	PrincipalID string `json:"principalId"`
	Email       string `json:"email"`
	Name        string `json:"name,omitempty"`
	Role        string `json:"role"`
	TenantID    string `json:"tenantId,omitempty"`
	NoTenant    bool   `json:"noTenant"`
	ExpiresAt   string `json:"expiresAt"`
}

// AuthService defines the operations behind the auth endpoints
type AuthService interface {
	Login(ctx context.Context, in auth.LoginInput) (*auth.TokenPair, error)
	Refresh(ctx context.Context, in auth.RefreshInput) (*auth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string)
}

// KeySetProvider exposes the public verification keys
type KeySetProvider interface {
	JWKS() jose.JSONWebKeySet
}

// AuthHandler handles the token endpoints
type AuthHandler struct {
	service AuthService
	keys    KeySetProvider
	logger  *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(service AuthService, keys KeySetProvider, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		service: service,
		keys:    keys,
		logger:  logger,
	}
}

// HandleLogin handles POST /api/auth/login
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.service.Login(r.Context(), auth.LoginInput{
		Email:     req.Email,
		Password:  req.Password,
		IP:        middleware.ClientIP(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	h.writeTokens(w, pair)
}

// HandleRefresh handles POST /api/auth/refresh
func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}

	pair, err := h.service.Refresh(r.Context(), auth.RefreshInput{
		RefreshToken: req.RefreshToken,
		IP:           middleware.ClientIP(r),
		UserAgent:    r.UserAgent(),
	})
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	h.writeTokens(w, pair)
}

// HandleLogout handles POST /api/auth/logout. It answers 200 whatever the
// state of the token, including a missing or unreadable body.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err == nil && req.RefreshToken != "" {
		h.service.Logout(r.Context(), req.RefreshToken)
	}
	_ = utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse{Message: "logged out"})
}

// HandleMe handles GET /api/auth/me
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	claims := middleware.GetClaimsFromContext(ctx)
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	scope, err := tenancy.Current(ctx)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}

	resp := MeResponse{
		PrincipalID: claims.Subject,
		Email:       claims.Email,
		Name:        claims.FullName,
		Role:        string(claims.Role),
		NoTenant:    scope.NoTenant,
	}
	if !scope.NoTenant {
		resp.TenantID = scope.TenantID.String()
	}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.UTC().Format(time.RFC3339)
	}
	_ = utils.WriteOK(w, resp)
}

// HandleJWKS handles GET /.well-known/jwks.json
func (h *AuthHandler) HandleJWKS(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "public, max-age=300")
	if err := utils.WriteJSON(w, http.StatusOK, h.keys.JWKS()); err != nil {
		h.logger.Error("failed to write jwks", zap.Error(err))
	}
}

func (h *AuthHandler) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(dst); err != nil {
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return false
	}
	if err := utils.ValidateStruct(dst); err != nil {
		utils.WriteValidationError(w, err, h.logger)
		return false
	}
	return true
}

func (h *AuthHandler) writeTokens(w http.ResponseWriter, pair *auth.TokenPair) {
	if err := utils.WriteNoStore(w, http.StatusOK, TokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresAt:    pair.ExpiresAt.UTC(),
		TokenType:    pair.TokenType,
	}); err != nil {
		h.logger.Error("failed to write token response", zap.Error(err))
	}
}
