package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"go.uber.org/zap"
)

// FacultyRepository implements repositories.FacultyRepository
type FacultyRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewFacultyRepository creates a new faculty repository
func NewFacultyRepository(db *DB, logger *zap.Logger) repositories.FacultyRepository {
	return &FacultyRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a faculty by ID
func (r *FacultyRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Faculty, error) {
	query := `
		SELECT id, name, code, created_at, updated_at
		FROM faculties
		WHERE id = $1
	`

	executor := GetExecutor(ctx, r.db)
	f := &models.Faculty{}

	err := executor.QueryRowContext(ctx, query, id).Scan(
		&f.ID,
		&f.Name,
		&f.Code,
		&f.CreatedAt,
		&f.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("faculty %s: %w", id, repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get faculty: %w", err)
	}

	return f, nil
}

// List retrieves all faculties ordered by code
func (r *FacultyRepository) List(ctx context.Context) ([]*models.Faculty, error) {
	query := `
		SELECT id, name, code, created_at, updated_at
		FROM faculties
		ORDER BY code ASC
	`

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list faculties: %w", err)
	}
	defer rows.Close()

	var faculties []*models.Faculty
	for rows.Next() {
		f := &models.Faculty{}
		if err := rows.Scan(&f.ID, &f.Name, &f.Code, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan faculty: %w", err)
		}
		faculties = append(faculties, f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating faculty rows: %w", err)
	}

	return faculties, nil
}
