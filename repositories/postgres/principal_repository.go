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

const principalColumns = `id, email, full_name, role, faculty_id, status, password_hash, created_at, updated_at`

// PrincipalRepository implements repositories.PrincipalRepository
type PrincipalRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewPrincipalRepository creates a new principal repository
func NewPrincipalRepository(db *DB, logger *zap.Logger) repositories.PrincipalRepository {
	return &PrincipalRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new principal
func (r *PrincipalRepository) Create(ctx context.Context, p *models.Principal) error {
	query := `
		INSERT INTO principals (` + principalColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	facultyID := uuid.NullUUID{UUID: p.FacultyID, Valid: p.FacultyID != uuid.Nil}

	executor := GetExecutor(ctx, r.db)
	_, err := executor.ExecContext(ctx, query,
		p.ID,
		p.Email,
		p.FullName,
		p.Role,
		facultyID,
		p.Status,
		p.PasswordHash,
		p.CreatedAt,
		p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create principal: %w", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create principal: %w", err)
	}

	r.logger.Debug("principal created", zap.String("id", p.ID.String()))
	return nil
}

// GetByID retrieves a principal by ID
func (r *PrincipalRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE id = $1`
	return r.getOne(ctx, query, id)
}

// GetByEmail retrieves a principal by email. The email is normalized first.
func (r *PrincipalRepository) GetByEmail(ctx context.Context, email string) (*models.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE email = $1`
	return r.getOne(ctx, query, models.NormalizeEmail(email))
}

func (r *PrincipalRepository) getOne(ctx context.Context, query string, arg interface{}) (*models.Principal, error) {
	executor := GetExecutor(ctx, r.db)
	p := &models.Principal{}
	var facultyID uuid.NullUUID

	err := executor.QueryRowContext(ctx, query, arg).Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.Role,
		&facultyID,
		&p.Status,
		&p.PasswordHash,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("principal: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get principal: %w", err)
	}

	if facultyID.Valid {
		p.FacultyID = facultyID.UUID
	}
	return p, nil
}
