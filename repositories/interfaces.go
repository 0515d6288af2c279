package repositories

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
)

var (
	// ErrNotFound is wrapped by repositories when no row matches
	ErrNotFound = errors.New("record not found")

	// ErrDuplicate is wrapped when a unique constraint rejects a write
	ErrDuplicate = errors.New("duplicate record")
)

// TransactionManager manages database transactions
type TransactionManager interface {
	// Begin starts a new transaction
	Begin(ctx context.Context) (Transaction, error)
}

// Transaction represents a database transaction
type Transaction interface {
	// Commit commits the transaction
	Commit() error

	// Rollback rolls back the transaction
	Rollback() error

	// Context returns a context bound to the transaction. Repositories called
	// with it run their statements inside the transaction.
	Context() context.Context
}

// RefreshTokenRepository persists refresh token records keyed by the hash of
// the token value. token_hash is unique.
type RefreshTokenRepository interface {
	// Create inserts a new record; wraps ErrDuplicate on a hash collision
	Create(ctx context.Context, token *models.RefreshToken) error

	// GetByHash retrieves a record by token hash; wraps ErrNotFound
	GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error)

	// MarkReplaced revokes an active record and links it to its successor.
	// It is a compare-and-set: false means the record was no longer active.
	MarkReplaced(ctx context.Context, tokenHash, replacedBy string, now time.Time) (bool, error)

	// MarkRevoked revokes a record that is not yet revoked. False means it
	// was already revoked or does not exist.
	MarkRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error)

	// DeleteExpired removes records that expired before the cutoff
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// PrincipalRepository reads identities. Principals are looked up across
// faculties by design: authentication happens before a tenant is known.
type PrincipalRepository interface {
	// GetByID retrieves a principal by ID; wraps ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*models.Principal, error)

	// GetByEmail retrieves a principal by normalized email; wraps ErrNotFound
	GetByEmail(ctx context.Context, email string) (*models.Principal, error)

	// Create inserts a principal
	Create(ctx context.Context, principal *models.Principal) error
}

// FacultyRepository reads the tenants themselves
type FacultyRepository interface {
	// GetByID retrieves a faculty by ID; wraps ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*models.Faculty, error)

	// List retrieves all faculties
	List(ctx context.Context) ([]*models.Faculty, error)
}

// CourseRepository is tenant scoped: every method filters on the faculty
// resolved in ctx and fails closed when none was resolved.
type CourseRepository interface {
	// Create stamps the current faculty on the course and inserts it
	Create(ctx context.Context, course *models.Course) error

	// GetByID retrieves a course of the current faculty; wraps ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error)

	// GetByCode retrieves a course of the current faculty by code
	GetByCode(ctx context.Context, code string) (*models.Course, error)

	// List retrieves courses of the current faculty with pagination
	List(ctx context.Context, limit, offset int) ([]*models.Course, error)

	// Count returns the number of courses of the current faculty
	Count(ctx context.Context) (int, error)
}

// StudentRepository is tenant scoped like CourseRepository
type StudentRepository interface {
	// GetByID retrieves a student of the current faculty; wraps ErrNotFound
	GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error)

	// GetByStudentNumber retrieves a student of the current faculty
	GetByStudentNumber(ctx context.Context, number string) (*models.Student, error)

	// List retrieves students of the current faculty with pagination
	List(ctx context.Context, limit, offset int) ([]*models.Student, error)

	// ListByEnrollmentYear retrieves students of the current faculty enrolled in year
	ListByEnrollmentYear(ctx context.Context, year int) ([]*models.Student, error)
}

// AuditRepository handles audit log data operations
type AuditRepository interface {
	// Insert inserts a new audit log entry
	Insert(ctx context.Context, log *models.AuditLog) error

	// ListByPrincipal retrieves audit logs for a principal, newest first
	ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// Repositories aggregates all repository interfaces
type Repositories struct {
	RefreshTokens RefreshTokenRepository
	Principals    PrincipalRepository
	Faculties     FacultyRepository
	Courses       CourseRepository
	Students      StudentRepository
	AuditLogs     AuditRepository
}
