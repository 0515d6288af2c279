package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"go.uber.org/zap"
)

// RefreshTokenRepository implements repositories.RefreshTokenRepository
type RefreshTokenRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewRefreshTokenRepository creates a new refresh token repository
func NewRefreshTokenRepository(db *DB, logger *zap.Logger) repositories.RefreshTokenRepository {
	return &RefreshTokenRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a refresh token record
func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (id, principal_id, token_hash, expires_at, created_at, created_by_ip, user_agent)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		token.ID,
		token.PrincipalID,
		token.TokenHash,
		token.ExpiresAt,
		token.CreatedAt,
		token.CreatedByIP,
		token.UserAgent,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create refresh token: %w", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create refresh token: %w", err)
	}

	r.logger.Debug("refresh token created",
		zap.String("id", token.ID),
		zap.String("principal_id", token.PrincipalID.String()))
	return nil
}

// GetByHash retrieves a refresh token by the hash of its value
func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	query := `
		SELECT id, principal_id, token_hash, expires_at, created_at, created_by_ip, user_agent, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	executor := GetExecutor(ctx, r.db)
	token := &models.RefreshToken{}
	var revokedAt sql.NullTime
	var replacedBy sql.NullString

	err := executor.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID,
		&token.PrincipalID,
		&token.TokenHash,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.CreatedByIP,
		&token.UserAgent,
		&revokedAt,
		&replacedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("refresh token: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get refresh token: %w", err)
	}

	if revokedAt.Valid {
		t := revokedAt.Time
		token.RevokedAt = &t
	}
	if replacedBy.Valid {
		s := replacedBy.String
		token.ReplacedBy = &s
	}
	return token, nil
}

// MarkReplaced revokes the token and links its successor, only if the token
// is still active at now. Row locking makes concurrent callers serialize on
// the row; the loser re-evaluates the WHERE clause and updates nothing.
func (r *RefreshTokenRepository) MarkReplaced(ctx context.Context, tokenHash, replacedBy string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $3, replaced_by = $2
		WHERE token_hash = $1
		  AND revoked_at IS NULL
		  AND replaced_by IS NULL
		  AND expires_at > $3
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, tokenHash, replacedBy, now)
	if err != nil {
		return false, fmt.Errorf("failed to rotate refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// MarkRevoked revokes a token that is not revoked yet
func (r *RefreshTokenRepository) MarkRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE token_hash = $1 AND revoked_at IS NULL
	`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, tokenHash, now)
	if err != nil {
		return false, fmt.Errorf("failed to revoke refresh token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rows == 1, nil
}

// DeleteExpired removes tokens that expired before the cutoff
func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	query := `DELETE FROM refresh_tokens WHERE expires_at < $1`

	executor := GetExecutor(ctx, r.db)
	result, err := executor.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired refresh tokens: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	r.logger.Info("expired refresh tokens deleted", zap.Int64("count", rows))
	return rows, nil
}
