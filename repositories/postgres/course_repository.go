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

const courseColumns = `id, faculty_id, code, title, credits, created_at, updated_at`

// CourseRepository implements repositories.CourseRepository. Every
// statement goes through the tenancy enforcer.
type CourseRepository struct {
	db       *DB
	enforcer *tenancy.Enforcer
	logger   *zap.Logger
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *DB, enforcer *tenancy.Enforcer, logger *zap.Logger) repositories.CourseRepository {
	return &CourseRepository{
		db:       db,
		enforcer: enforcer,
		logger:   logger,
	}
}

// Create stamps the owning faculty and inserts the course
func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	owner, err := r.enforcer.OwnerFor(ctx, course.FacultyID)
	if err != nil {
		return err
	}
	course.FacultyID = owner

	query := `
		INSERT INTO courses (faculty_id, id, code, title, credits, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	executor := GetExecutor(ctx, r.db)
	_, err = executor.ExecContext(ctx, query,
		owner.String(),
		course.ID,
		course.Code,
		course.Title,
		course.Credits,
		course.CreatedAt,
		course.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to create course: %w", repositories.ErrDuplicate)
		}
		return fmt.Errorf("failed to create course: %w", err)
	}

	r.logger.Debug("course created",
		zap.String("id", course.ID.String()),
		zap.String("faculty_id", owner.String()))
	return nil
}

// GetByID retrieves a course of the current faculty
func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return r.getOne(ctx, tenancy.Select(`SELECT `+courseColumns+` FROM courses`).Where("id = ?", id))
}

// GetByCode retrieves a course of the current faculty by code
func (r *CourseRepository) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	return r.getOne(ctx, tenancy.Select(`SELECT `+courseColumns+` FROM courses`).Where("code = ?", code))
}

// List retrieves courses of the current faculty ordered by code
func (r *CourseRepository) List(ctx context.Context, limit, offset int) ([]*models.Course, error) {
	q := tenancy.Select(`SELECT `+courseColumns+` FROM courses`).OrderBy("code ASC").Page(limit, offset)
	scoped, err := r.enforcer.Apply(ctx, q, "faculty_id")
	if err != nil {
		return nil, err
	}
	query, args := scoped.SQL()

	executor := GetExecutor(ctx, r.db)
	rows, err := executor.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list courses: %w", err)
	}
	defer rows.Close()

	var courses []*models.Course
	for rows.Next() {
		c, err := scanCourse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		if !scoped.Allows(c.FacultyID) {
			r.logger.Error("course row outside tenant scope dropped", zap.String("id", c.ID.String()))
			continue
		}
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating course rows: %w", err)
	}

	return courses, nil
}

// Count returns the number of courses of the current faculty
func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	scoped, err := r.enforcer.Apply(ctx, tenancy.Select(`SELECT COUNT(*) FROM courses`), "faculty_id")
	if err != nil {
		return 0, err
	}
	query, args := scoped.SQL()

	var count int
	executor := GetExecutor(ctx, r.db)
	if err := executor.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count courses: %w", err)
	}
	return count, nil
}

func (r *CourseRepository) getOne(ctx context.Context, q *tenancy.Query) (*models.Course, error) {
	scoped, err := r.enforcer.Apply(ctx, q, "faculty_id")
	if err != nil {
		return nil, err
	}
	query, args := scoped.SQL()

	executor := GetExecutor(ctx, r.db)
	c, err := scanCourse(executor.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("course: %w", repositories.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get course: %w", err)
	}
	if !scoped.Allows(c.FacultyID) {
		return nil, fmt.Errorf("course: %w", repositories.ErrNotFound)
	}
	return c, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCourse(row rowScanner) (*models.Course, error) {
	c := &models.Course{}
	err := row.Scan(
		&c.ID,
		&c.FacultyID,
		&c.Code,
		&c.Title,
		&c.Credits,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
