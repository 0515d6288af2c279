package postgres

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"go.uber.org/zap/zaptest"
)

var refreshTokenRowColumns = []string{
	"id", "principal_id", "token_hash", "expires_at", "created_at",
	"created_by_ip", "user_agent", "revoked_at", "replaced_by",
}

func sampleRefreshToken() *models.RefreshToken {
	now := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	return &models.RefreshToken{
		ID:          "01HZY8M4G6N2Q3R4S5T6V7W8X9",
		PrincipalID: uuid.New(),
		TokenHash:   "ab12",
		ExpiresAt:   now.Add(7 * 24 * time.Hour),
		CreatedAt:   now,
		CreatedByIP: "10.0.0.7",
		UserAgent:   "curl/8.5",
	}
}

func TestRefreshTokenRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))
	token := sampleRefreshToken()

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WithArgs(token.ID, token.PrincipalID, token.TokenHash, token.ExpiresAt, token.CreatedAt, token.CreatedByIP, token.UserAgent).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), token))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRefreshTokenRepository_CreateDuplicate(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO refresh_tokens")).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := repo.Create(context.Background(), sampleRefreshToken())
	assert.ErrorIs(t, err, repositories.ErrDuplicate)
}

func TestRefreshTokenRepository_GetByHash(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))
	token := sampleRefreshToken()
	revokedAt := token.CreatedAt.Add(time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
		WithArgs(token.TokenHash).
		WillReturnRows(sqlmock.NewRows(refreshTokenRowColumns).AddRow(
			token.ID, token.PrincipalID.String(), token.TokenHash, token.ExpiresAt, token.CreatedAt,
			token.CreatedByIP, token.UserAgent, revokedAt, "01HZY8M4G6N2Q3R4S5T6V7W8XA",
		))

	got, err := repo.GetByHash(context.Background(), token.TokenHash)
	require.NoError(t, err)
	assert.Equal(t, token.ID, got.ID)
	assert.Equal(t, token.PrincipalID, got.PrincipalID)
	assert.Equal(t, "10.0.0.7", got.CreatedByIP)
	require.NotNil(t, got.RevokedAt)
	assert.True(t, revokedAt.Equal(*got.RevokedAt))
	require.NotNil(t, got.ReplacedBy)
	assert.Equal(t, "01HZY8M4G6N2Q3R4S5T6V7W8XA", *got.ReplacedBy)
	assert.True(t, got.IsRotated())
}

func TestRefreshTokenRepository_GetByHashActive(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))
	token := sampleRefreshToken()

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
		WithArgs(token.TokenHash).
		WillReturnRows(sqlmock.NewRows(refreshTokenRowColumns).AddRow(
			token.ID, token.PrincipalID.String(), token.TokenHash, token.ExpiresAt, token.CreatedAt,
			token.CreatedByIP, token.UserAgent, nil, nil,
		))

	got, err := repo.GetByHash(context.Background(), token.TokenHash)
	require.NoError(t, err)
	assert.Nil(t, got.RevokedAt)
	assert.Nil(t, got.ReplacedBy)
	assert.True(t, got.IsActive(token.CreatedAt))
}

func TestRefreshTokenRepository_GetByHashNotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("FROM refresh_tokens")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestRefreshTokenRepository_MarkReplaced(t *testing.T) {
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		affected int64
		want     bool
	}{
		{"active token is rotated", 1, true},
		{"already rotated or expired", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMockDB(t)
			repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))

			mock.ExpectExec(`UPDATE refresh_tokens\s+SET revoked_at = \$3, replaced_by = \$2\s+WHERE token_hash = \$1\s+AND revoked_at IS NULL\s+AND replaced_by IS NULL\s+AND expires_at > \$3`).
				WithArgs("hash-1", "successor", now).
				WillReturnResult(sqlmock.NewResult(0, tt.affected))

			ok, err := repo.MarkReplaced(context.Background(), "hash-1", "successor", now)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestRefreshTokenRepository_MarkRevoked(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))
	now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`UPDATE refresh_tokens\s+SET revoked_at = \$2\s+WHERE token_hash = \$1 AND revoked_at IS NULL`).
		WithArgs("hash-1", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE refresh_tokens`).
		WithArgs("hash-1", now).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.MarkRevoked(context.Background(), "hash-1", now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.MarkRevoked(context.Background(), "hash-1", now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRefreshTokenRepository_DeleteExpired(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewRefreshTokenRepository(db, zaptest.NewLogger(t))
	cutoff := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE expires_at < $1")).
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
}
