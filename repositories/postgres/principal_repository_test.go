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

var principalRowColumns = []string{
	"id", "email", "full_name", "role", "faculty_id", "status", "password_hash", "created_at", "updated_at",
}

func TestPrincipalRepository_GetByEmailNormalizes(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db, zaptest.NewLogger(t))
	id, facultyID := uuid.New(), uuid.New()
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM principals WHERE email = $1")).
		WithArgs("ana.perez@upb.edu").
		WillReturnRows(sqlmock.NewRows(principalRowColumns).AddRow(
			id.String(), "ana.perez@upb.edu", "Ana Perez", "professor", facultyID.String(), "active", "$2a$12$hash", now, now,
		))

	p, err := repo.GetByEmail(context.Background(), "  Ana.Perez@UPB.edu")
	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, models.RoleProfessor, p.Role)
	assert.Equal(t, facultyID, p.FacultyID)
	assert.True(t, p.IsActive())
	assert.Equal(t, "$2a$12$hash", p.PasswordHash)
}

func TestPrincipalRepository_SuperadminWithoutFaculty(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db, zaptest.NewLogger(t))
	id := uuid.New()
	now := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM principals WHERE id = $1")).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(principalRowColumns).AddRow(
			id.String(), "root@upb.edu", "Root", "superadmin", nil, "active", "$2a$12$hash", now, now,
		))

	p, err := repo.GetByID(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, p.FacultyID)
	assert.Empty(t, p.TenantClaim())
}

func TestPrincipalRepository_NotFound(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db, zaptest.NewLogger(t))

	mock.ExpectQuery(regexp.QuoteMeta("FROM principals")).WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByEmail(context.Background(), "ghost@upb.edu")
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}

func TestPrincipalRepository_Create(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPrincipalRepository(db, zaptest.NewLogger(t))
	p := models.NewPrincipal("root@upb.edu", "Root", uuid.Nil, models.RoleSuperadmin)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO principals")).
		WithArgs(p.ID, p.Email, p.FullName, p.Role, nil, p.Status, p.PasswordHash, p.CreatedAt, p.UpdatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO principals")).
		WillReturnError(&pq.Error{Code: "23505"})

	require.NoError(t, repo.Create(context.Background(), p))
	assert.ErrorIs(t, repo.Create(context.Background(), p), repositories.ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFacultyRepository(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewFacultyRepository(db, zaptest.NewLogger(t))
	eng, law := uuid.New(), uuid.New()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	columns := []string{"id", "name", "code", "created_at", "updated_at"}

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY code ASC")).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(law.String(), "Derecho", "DER", now, now).
			AddRow(eng.String(), "Ingenieria", "ING", now, now))
	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1")).
		WithArgs(eng).
		WillReturnError(sql.ErrNoRows)

	faculties, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, faculties, 2)
	assert.Equal(t, "DER", faculties[0].Code)
	assert.Equal(t, eng, faculties[1].ID)

	_, err = repo.GetByID(context.Background(), eng)
	assert.ErrorIs(t, err, repositories.ErrNotFound)
}
