package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/tenancy"
	"go.uber.org/zap"
)

const studentColumns = `id, faculty_id, student_number, full_name, email, enrollment_year, created_at`

// StudentRepository implements repositories.StudentRepository
type StudentRepository struct {
	db       *DB
	enforcer *tenancy.Enforcer
	logger   *zap.Logger
}

// NewStudentRepository creates a new student repository
func NewStudentRepository(db *DB, enforcer *tenancy.Enforcer, logger *zap.Logger) repositories.StudentRepository {
	return &StudentRepository{
		db:       db,
		enforcer: enforcer,
		logger:   logger,
	}
}

// GetByID retrieves a student of the current faculty
func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	return r.getOne(ctx, tenancy.Select(`SELECT `+studentColumns+` FROM students`).Where("id = ?", id))
}

// GetByStudentNumber retrieves a student of the current faculty by number
func (r *StudentRepository) GetByStudentNumber(ctx context.Context, number string) (*models.Student, error) {
	return r.getOne(ctx, tenancy.Select(`SELECT `+studentColumns+` FROM students`).Where("student_number = ?", number))
}

// List retrieves students of the current faculty
func (r *StudentRepository) List(ctx context.Context, limit, offset int) ([]*models.Student, error) {
	q := tenancy.Select(`SELECT `+studentColumns+` FROM students`).OrderBy("student_number ASC").Page(limit, offset)
	return r.list(ctx, q)
}

// ListByEnrollmentYear retrieves students of the current faculty enrolled in year
func (r *StudentRepository) ListByEnrollmentYear(ctx context.Context, year int) ([]*models.Student, error) {
	q := tenancy.Select(`SELECT `+studentColumns+` FROM students`).Where("enrollment_year = ?", year).OrderBy("student_number ASC")
	return r.list(ctx, q)
}

func (r *StudentRepository) list(ctx context.Context, q *tenancy.Query) ([]*models.Student, error) {
	scoped, err := r.enforcer.Apply(ctx, q, "faculty_id")
	if err != nil {
		return nil, err
	}
	query, args := scoped.SQL()

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list students: %w", err)
	}
	defer rows.Close()

	var students []*models.Student
	for rows.Next() {
		s, err := scanStudent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan student: %w", err)
		}
		if !scoped.Allows(s.FacultyID) {
			r.logger.Error("student row outside tenant scope dropped", zap.String("id", s.ID.String()))
			continue
		}
		students = append(students, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating student rows: %w", err)
	}

	return students, nil
}

func (r *StudentRepository) getOne(ctx context.Context, q *tenancy.Query) (*models.Student, error) {
	scoped, err := r.enforcer.Apply(ctx, q, "faculty_id")
	if err != nil {
		return nil, err
	}
	query, args := scoped.SQL()

	executor := GetExecutor(ctx, r.db)
	s, err := scanStudent(executor.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("student: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get student: %w", err)
	}
	if !scoped.Allows(s.FacultyID) {
		return nil, fmt.Errorf("student: %w", repositories.ErrNotFound)
	}
	return s, nil
}

func scanStudent(row rowScanner) (*models.Student, error) {
	s := &models.Student{}
	err := row.Scan(
		&s.ID,
		&s.FacultyID,
		&s.StudentNumber,
		&s.FullName,
		&s.Email,
		&s.EnrollmentYear,
		&s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}
