package memory

import (
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/tenancy"
)

// Store owns one instance of every in-memory repository
type Store struct {
	RefreshTokens *RefreshTokenRepository
	Principals    *PrincipalRepository
	Faculties     *FacultyRepository
	AuditLogs     *AuditRepository
	Transactions  *TransactionManager

	// Set by the first NewRepositories call
	Courses  *CourseRepository
	Students *StudentRepository
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		RefreshTokens: NewRefreshTokenRepository(),
		Principals:    NewPrincipalRepository(),
		Faculties:     NewFacultyRepository(),
		AuditLogs:     NewAuditRepository(),
		Transactions:  NewTransactionManager(),
	}
}

// NewRepositories wires the store with tenant-owned repositories filtered by
// enforcer. Later calls reuse the first enforcer.
func (s *Store) NewRepositories(enforcer *tenancy.Enforcer) *repositories.Repositories {
	if s.Courses == nil {
		s.Courses = NewCourseRepository(enforcer)
		s.Students = NewStudentRepository(enforcer)
	}
	return &repositories.Repositories{
		RefreshTokens: s.RefreshTokens,
		Principals:    s.Principals,
		Faculties:     s.Faculties,
		Courses:       s.Courses,
		Students:      s.Students,
		AuditLogs:     s.AuditLogs,
	}
}
