// Package auth turns credentials and refresh tokens into token pairs. It is
// the only caller-facing boundary of the token machinery: every internal
// failure is folded into the generic categories of services before it
// leaves this package.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/internal/observability"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/services"
	"github.com/upb/faculty-auth/services/refreshtoken"
	"github.com/upb/faculty-auth/tokens"
	"go.uber.org/zap"
)

// TokenTypeBearer is the only token type issued
const TokenTypeBearer = "Bearer"

var errPrincipalUnavailable = errors.New("principal unavailable")

// CredentialVerifier checks an email and password pair
type CredentialVerifier interface {
	Verify(ctx context.Context, email, password string) (*models.Principal, error)
}

// PrincipalLookup re-reads a principal by id
type PrincipalLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)
}

// AccessTokenIssuer mints signed access tokens
type AccessTokenIssuer interface {
	Issue(ctx context.Context, principal *models.Principal) (*tokens.AccessToken, error)
}

// RefreshTokenStore creates, rotates and revokes refresh tokens
type RefreshTokenStore interface {
	Create(ctx context.Context, principalID uuid.UUID, ip, userAgent string) (*refreshtoken.Issued, error)
	Redeem(ctx context.Context, value, ip, userAgent string, admit refreshtoken.Admission) (*refreshtoken.Rotation, error)
	Revoke(ctx context.Context, value string) (*models.RefreshToken, error)
}

// Auditor records authentication events
type Auditor interface {
	LoginSucceeded(ctx context.Context, principal *models.Principal)
	LoginFailed(ctx context.Context, email string)
	TokenRefreshed(ctx context.Context, principal *models.Principal, fromID, toID string)
	Logout(ctx context.Context, principalID uuid.UUID, tokenID string)
}

// LoginInput is a credential exchange request
type LoginInput struct {
	Email     string
	Password  string
	IP        string
	UserAgent string
}

// RefreshInput is a refresh token exchange request
type RefreshInput struct {
	RefreshToken string
	IP           string
	UserAgent    string
}

// TokenPair is what a client receives from Login and Refresh. ExpiresAt is
// the access token expiry.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	TokenType    string
	Principal    *models.Principal
}

// Service orchestrates login, refresh and logout
type Service struct {
	verifier   CredentialVerifier
	principals PrincipalLookup
	issuer     AccessTokenIssuer
	refresh    RefreshTokenStore
	auditor    Auditor
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewService creates a new auth service. auditor and metrics may be nil.
func NewService(
	verifier CredentialVerifier,
	principals PrincipalLookup,
	issuer AccessTokenIssuer,
	refresh RefreshTokenStore,
	auditor Auditor,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Service {
	return &Service{
		verifier:   verifier,
		principals: principals,
		issuer:     issuer,
		refresh:    refresh,
		auditor:    auditor,
		metrics:    metrics,
		logger:     logger,
	}
}

// Login exchanges credentials for a token pair. An unknown email, a wrong
// password and an inactive principal all fail with
// services.ErrInvalidCredentials.
func (s *Service) Login(ctx context.Context, in LoginInput) (*TokenPair, error) {
	principal, err := s.verifier.Verify(ctx, in.Email, in.Password)
	if err != nil {
		if !errors.Is(err, services.ErrInvalidCredentials) {
			s.metrics.LoginAttempt("error")
			s.logger.Error("credential verification failed", zap.Error(err))
			return nil, services.WrapInternal("login failed", err)
		}
		s.loginFailed(ctx, in.Email, "invalid_credentials")
		return nil, services.ErrInvalidCredentials
	}

	if !principal.IsActive() {
		s.logger.Info("login refused for inactive principal",
			zap.String("principal_id", principal.ID.String()))
		s.loginFailed(ctx, in.Email, "inactive")
		return nil, services.ErrInvalidCredentials
	}

	access, err := s.issuer.Issue(ctx, principal)
	if err != nil {
		s.metrics.LoginAttempt("error")
		s.logger.Error("failed to issue access token", zap.Error(err))
		return nil, services.WrapInternal("login failed", err)
	}

	issued, err := s.refresh.Create(ctx, principal.ID, in.IP, in.UserAgent)
	if err != nil {
		s.metrics.LoginAttempt("error")
		s.logger.Error("failed to issue refresh token", zap.Error(err))
		return nil, services.WrapInternal("login failed", err)
	}

	s.metrics.LoginAttempt("success")
	if s.auditor != nil {
		s.auditor.LoginSucceeded(ctx, principal)
	}
	s.logger.Info("login succeeded",
		zap.String("principal_id", principal.ID.String()),
		zap.String("role", string(principal.Role)))

	return newTokenPair(access, issued.Value, principal), nil
}

// Refresh rotates a refresh token and mints an access token from the
// principal as it is now, not as it was at login. The principal is re-read
// and the access token signed inside the rotation, so a failure there leaves
// the presented token valid and no orphan successor behind. Every rejection
// is services.ErrInvalidRefreshToken; the precise reason is logged only.
func (s *Service) Refresh(ctx context.Context, in RefreshInput) (*TokenPair, error) {
	var (
		principal *models.Principal
		access    *tokens.AccessToken
		issueErr  error
	)
	admit := func(ctx context.Context, principalID uuid.UUID) error {
		p, err := s.principals.GetByID(ctx, principalID)
		if err != nil {
			return fmt.Errorf("%w: %v", errPrincipalUnavailable, err)
		}
		if !p.IsActive() {
			return fmt.Errorf("%w: principal is inactive", errPrincipalUnavailable)
		}
		access, issueErr = s.issuer.Issue(ctx, p)
		if issueErr != nil {
			return issueErr
		}
		principal = p
		return nil
	}

	rotation, err := s.refresh.Redeem(ctx, in.RefreshToken, in.IP, in.UserAgent, admit)
	switch {
	case err == nil:
	case issueErr != nil:
		s.metrics.RefreshAttempt("error")
		s.logger.Error("failed to issue access token", zap.Error(issueErr))
		return nil, services.WrapInternal("refresh failed", issueErr)
	case errors.Is(err, errPrincipalUnavailable):
		s.refreshFailed("principal_unavailable", err)
		return nil, services.ErrInvalidRefreshToken
	default:
		reason := string(services.GetErrorCode(err))
		if reason == "" {
			reason = "error"
		}
		s.refreshFailed(reason, err)
		return nil, services.ErrInvalidRefreshToken
	}

	s.metrics.RefreshAttempt("success")
	if s.auditor != nil {
		s.auditor.TokenRefreshed(ctx, principal, rotation.ReplacedID, rotation.Next.Record.ID)
	}
	s.logger.Debug("refresh token rotated",
		zap.String("principal_id", principal.ID.String()),
		zap.String("from", rotation.ReplacedID),
		zap.String("to", rotation.Next.Record.ID))

	return newTokenPair(access, rotation.Next.Value, principal), nil
}

// Logout revokes a refresh token. It never fails from the caller's point of
// view: unknown and already revoked tokens are logged and ignored.
func (s *Service) Logout(ctx context.Context, refreshToken string) {
	record, err := s.refresh.Revoke(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, services.ErrRefreshTokenNotFound) {
			s.logger.Debug("logout with unknown refresh token")
			return
		}
		s.logger.Warn("logout could not revoke refresh token", zap.Error(err))
		return
	}

	if s.auditor != nil {
		s.auditor.Logout(ctx, record.PrincipalID, record.ID)
	}
	s.logger.Info("logout",
		zap.String("principal_id", record.PrincipalID.String()),
		zap.String("token_id", record.ID))
}

func (s *Service) loginFailed(ctx context.Context, email, outcome string) {
	s.metrics.LoginAttempt(outcome)
	if s.auditor != nil {
		s.auditor.LoginFailed(ctx, email)
	}
}

func (s *Service) refreshFailed(reason string, err error, fields ...zap.Field) {
	s.metrics.RefreshAttempt(reason)
	fields = append(fields, zap.String("reason", reason), zap.Error(err))
	s.logger.Info("refresh rejected", fields...)
}

func newTokenPair(access *tokens.AccessToken, refresh string, principal *models.Principal) *TokenPair {
	return &TokenPair{
		AccessToken:  access.Token,
		RefreshToken: refresh,
		ExpiresAt:    access.ExpiresAt,
		TokenType:    TokenTypeBearer,
		Principal:    principal,
	}
}
