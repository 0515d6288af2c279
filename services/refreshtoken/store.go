// Package refreshtoken issues opaque refresh tokens and rotates them. Only
// the SHA-256 of a token value is persisted.
package refreshtoken

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/internal/ids"
	"github.com/upb/faculty-auth/internal/observability"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/services"
	"go.uber.org/zap"
)

// ValueBytes is the entropy of a token value: 512 bits
const ValueBytes = 64

// ReuseAuditor records redemptions of already rotated tokens
type ReuseAuditor interface {
	RefreshTokenReuse(ctx context.Context, token *models.RefreshToken)
}

// Issued is a freshly minted token. Value is handed to the client once and
// never stored.
type Issued struct {
	Value  string
	Record *models.RefreshToken
}

// Admission decides, inside the rotation transaction, whether the owner of a
// live token may still receive a successor. An error aborts the rotation and
// leaves the presented token untouched.
type Admission func(ctx context.Context, principalID uuid.UUID) error

// Rotation is the outcome of a successful Redeem
type Rotation struct {
	PrincipalID uuid.UUID
	ReplacedID  string
	Next        *Issued
}

// Store creates, rotates and revokes refresh tokens
type Store struct {
	repo    repositories.RefreshTokenRepository
	txMgr   repositories.TransactionManager
	ttl     time.Duration
	now     func() time.Time
	random  io.Reader
	logger  *zap.Logger
	metrics *observability.Metrics
	auditor ReuseAuditor
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithRandom overrides the entropy source
func WithRandom(r io.Reader) Option {
	return func(s *Store) { s.random = r }
}

// WithMetrics counts reuse detections
func WithMetrics(m *observability.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// WithAuditor records reuse detections in the audit trail
func WithAuditor(a ReuseAuditor) Option {
	return func(s *Store) { s.auditor = a }
}

// NewStore creates a Store issuing tokens valid for ttl
func NewStore(repo repositories.RefreshTokenRepository, txMgr repositories.TransactionManager, ttl time.Duration, logger *zap.Logger, opts ...Option) *Store {
	s := &Store{
		repo:   repo,
		txMgr:  txMgr,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		random: rand.Reader,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HashValue returns the lookup key persisted for a token value
func HashValue(value string) string {
	sum := sha256.Sum256([]byte(value))
	return hex.EncodeToString(sum[:])
}

// wellFormed rejects values that cannot have been issued without a lookup
func wellFormed(value string) bool {
	raw, err := base64.RawURLEncoding.DecodeString(value)
	return err == nil && len(raw) == ValueBytes
}

// Create issues a token for a principal
func (s *Store) Create(ctx context.Context, principalID uuid.UUID, ip, userAgent string) (*Issued, error) {
	issued, err := s.mint(principalID, ip, userAgent, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, issued.Record); err != nil {
		return nil, services.WrapInternal("failed to store refresh token", err)
	}

	s.logger.Debug("refresh token issued",
		zap.String("token_id", issued.Record.ID),
		zap.String("principal_id", principalID.String()))
	return issued, nil
}

// Redeem exchanges an active token for a new one. The old record is marked
// replaced and the successor inserted in the same transaction; of concurrent
// redemptions of one value at most one succeeds. admit, when not nil, runs
// after the token checks and before any write; its error is returned as is.
//
// Errors: services.ErrRefreshTokenNotFound, ErrRefreshTokenRevoked (also for
// a token already rotated, which is reported as possible theft) and
// ErrRefreshTokenExpired.
func (s *Store) Redeem(ctx context.Context, value, ip, userAgent string, admit Admission) (*Rotation, error) {
	if !wellFormed(value) {
		return nil, services.ErrRefreshTokenNotFound
	}
	hash := HashValue(value)
	now := s.now()

	return services.WithTransactionResult(ctx, s.txMgr, func(ctx context.Context, tx repositories.Transaction) (*Rotation, error) {
		current, err := s.repo.GetByHash(ctx, hash)
		if err != nil {
			if errors.Is(err, repositories.ErrNotFound) {
				return nil, services.ErrRefreshTokenNotFound
			}
			return nil, services.WrapInternal("failed to load refresh token", err)
		}

		switch {
		case current.IsRotated():
			s.reuseDetected(ctx, current, ip)
			return nil, services.ErrRefreshTokenRevoked
		case current.IsRevoked():
			return nil, services.ErrRefreshTokenRevoked
		case current.IsExpired(now):
			return nil, services.ErrRefreshTokenExpired
		}

		if admit != nil {
			if err := admit(ctx, current.PrincipalID); err != nil {
				return nil, err
			}
		}

		next, err := s.mint(current.PrincipalID, ip, userAgent, now)
		if err != nil {
			return nil, err
		}
		if err := s.repo.Create(ctx, next.Record); err != nil {
			return nil, services.WrapInternal("failed to store refresh token", err)
		}

		swapped, err := s.repo.MarkReplaced(ctx, hash, next.Record.ID, now)
		if err != nil {
			return nil, services.WrapInternal("failed to rotate refresh token", err)
		}
		if !swapped {
			// Another redemption won between the read and the update
			if latest, err := s.repo.GetByHash(ctx, hash); err == nil && latest.IsRotated() {
				s.reuseDetected(ctx, latest, ip)
			}
			return nil, services.ErrRefreshTokenRevoked
		}

		return &Rotation{
			PrincipalID: current.PrincipalID,
			ReplacedID:  current.ID,
			Next:        next,
		}, nil
	})
}

// Revoke ends a token's life. Revoking a revoked token succeeds; an unknown
// value fails with services.ErrRefreshTokenNotFound. The record is returned
// for auditing.
func (s *Store) Revoke(ctx context.Context, value string) (*models.RefreshToken, error) {
	if !wellFormed(value) {
		return nil, services.ErrRefreshTokenNotFound
	}
	hash := HashValue(value)

	if _, err := s.repo.MarkRevoked(ctx, hash, s.now()); err != nil {
		return nil, services.WrapInternal("failed to revoke refresh token", err)
	}

	record, err := s.repo.GetByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, services.ErrRefreshTokenNotFound
		}
		return nil, services.WrapInternal("failed to load refresh token", err)
	}
	return record, nil
}

// PurgeExpired deletes records that expired more than retention ago
func (s *Store) PurgeExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, services.WrapInternal("failed to purge refresh tokens", err)
	}
	if n > 0 {
		s.logger.Info("purged expired refresh tokens", zap.Int64("count", n))
	}
	return n, nil
}

func (s *Store) mint(principalID uuid.UUID, ip, userAgent string, now time.Time) (*Issued, error) {
	raw := make([]byte, ValueBytes)
	if _, err := io.ReadFull(s.random, raw); err != nil {
		return nil, services.WrapInternal("failed to generate refresh token", fmt.Errorf("read random: %w", err))
	}
	value := base64.RawURLEncoding.EncodeToString(raw)

	return &Issued{
		Value: value,
		Record: &models.RefreshToken{
			ID:          ids.New(now),
			PrincipalID: principalID,
			TokenHash:   HashValue(value),
			ExpiresAt:   now.Add(s.ttl),
			CreatedAt:   now,
			CreatedByIP: ip,
			UserAgent:   userAgent,
		},
	}, nil
}

func (s *Store) reuseDetected(ctx context.Context, token *models.RefreshToken, ip string) {
	replacedBy := ""
	if token.ReplacedBy != nil {
		replacedBy = *token.ReplacedBy
	}
	s.logger.Warn("refresh token reuse detected, possible theft",
		zap.String("token_id", token.ID),
		zap.String("principal_id", token.PrincipalID.String()),
		zap.String("replaced_by", replacedBy),
		zap.String("ip", ip))
	s.metrics.RefreshTokenReuse()
	if s.auditor != nil {
		s.auditor.RefreshTokenReuse(ctx, token)
	}
}
