package middleware

import (
	"context"
	"net/http"
	"strings"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/upb/faculty-auth/internal/observability"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/services"
	"github.com/upb/faculty-auth/services/audit"
	"github.com/upb/faculty-auth/tenancy"
	"github.com/upb/faculty-auth/tokens"
	"github.com/upb/faculty-auth/utils"
	"go.uber.org/zap"
)

// TokenValidator defines the interface for validating access tokens
type TokenValidator interface {
	// Validate verifies a token and returns its claims
	Validate(ctx context.Context, token string) (*tokens.Claims, error)
}

// AuthMiddleware provides authentication middleware functionality
type AuthMiddleware struct {
	validator TokenValidator
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(validator TokenValidator, metrics *observability.Metrics, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		validator: validator,
		metrics:   metrics,
		logger:    logger,
	}
}

// accessTokenCookieName is accepted when no Authorization header is sent
const accessTokenCookieName = "access_token"

// RequestMeta copies the request id, client address and user agent into the
// context for audit records. Run it after chi's RequestID and RealIP.
func RequestMeta(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := chimw.GetReqID(r.Context())
		ctx := WithRequestID(r.Context(), requestID)
		ctx = audit.WithRequestMeta(ctx, audit.RequestMeta{
			RequestID: requestID,
			IP:        ClientIP(r),
			UserAgent: r.UserAgent(),
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth is a middleware that requires a valid access token
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			m.logger.Debug("missing token",
				zap.String("request_id", requestID))
			utils.WriteServiceError(w, services.ErrInvalidToken, m.logger)
			return
		}

		claims, err := m.validator.Validate(ctx, token)
		if err != nil {
			m.logger.Info("token validation failed",
				zap.String("request_id", requestID),
				zap.Error(err))
			utils.WriteServiceError(w, services.ErrInvalidToken, m.logger)
			return
		}

		ctx = WithClaims(ctx, claims)

		m.logger.Debug("authentication successful",
			zap.String("request_id", requestID),
			zap.String("sub", claims.Subject),
			zap.String("role", string(claims.Role)))

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ResolveTenant resolves the request's tenant scope from the verified claims
// and clears it when the request ends. Run it after RequireAuth.
func (m *AuthMiddleware) ResolveTenant(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		claims := GetClaimsFromContext(ctx)
		if claims == nil {
			m.logger.Error("claims not found in context",
				zap.String("request_id", requestID))
			_ = utils.WriteUnauthorized(w, "Authentication required")
			return
		}

		tc := tenancy.NewContext()
		defer tc.Clear()

		scope, err := tc.Resolve(claims)
		if err != nil {
			m.logger.Warn("tenant resolution failed",
				zap.String("request_id", requestID),
				zap.String("sub", claims.Subject),
				zap.Error(err))
			m.metrics.TenantScopeDenied("resolve")
			utils.WriteServiceError(w, err, m.logger)
			return
		}

		m.logger.Debug("tenant resolved",
			zap.String("request_id", requestID),
			zap.String("tenant_id", scope.TenantID.String()),
			zap.Bool("no_tenant", scope.NoTenant))

		next.ServeHTTP(w, r.WithContext(tenancy.WithContext(ctx, tc)))
	})
}

// RequireRole is a middleware that admits only the listed roles
func (m *AuthMiddleware) RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := GetRequestIDFromContext(ctx)

			claims := GetClaimsFromContext(ctx)
			if claims == nil {
				m.logger.Error("claims not found in context",
					zap.String("request_id", requestID))
				_ = utils.WriteUnauthorized(w, "Authentication required")
				return
			}

			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			m.logger.Warn("insufficient permissions",
				zap.String("request_id", requestID),
				zap.String("role", string(claims.Role)))
			utils.WriteServiceError(w, services.ErrForbidden, m.logger)
		})
	}
}

// extractToken reads the Authorization header, then the access_token cookie
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(accessTokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
