// Package catalog serves the faculty-owned academic records. Every read and
// write goes through tenant-scoped repositories.
package catalog

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/services"
	"go.uber.org/zap"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 200
)

// ScopeBypasser grants audited cross-faculty contexts
type ScopeBypasser interface {
	WithoutTenantScope(ctx context.Context, reason string) (context.Context, error)
}

// CreateCourseInput holds the fields of a new course. FacultyID is optional
// and only honored inside a bypassed context.
type CreateCourseInput struct {
	Code      string
	Title     string
	Credits   int
	FacultyID uuid.UUID
}

// CoursePage is one page of courses and the total visible to the caller
type CoursePage struct {
	Courses []*models.Course
	Total   int
	Limit   int
	Offset  int
}

// Service reads and writes courses and students
type Service struct {
	courses  repositories.CourseRepository
	students repositories.StudentRepository
	bypasser ScopeBypasser
	logger   *zap.Logger
}

// NewService creates a new catalog service
func NewService(courses repositories.CourseRepository, students repositories.StudentRepository, bypasser ScopeBypasser, logger *zap.Logger) *Service {
	return &Service{
		courses:  courses,
		students: students,
		bypasser: bypasser,
		logger:   logger,
	}
}

// ListCourses returns the caller's faculty courses
func (s *Service) ListCourses(ctx context.Context, limit, offset int) (*CoursePage, error) {
	limit, offset = normalizePage(limit, offset)

	courses, err := s.courses.List(ctx, limit, offset)
	if err != nil {
		return nil, s.mapError("list courses", err)
	}
	total, err := s.courses.Count(ctx)
	if err != nil {
		return nil, s.mapError("count courses", err)
	}

	return &CoursePage{Courses: courses, Total: total, Limit: limit, Offset: offset}, nil
}

// ListAllCourses lists courses across faculties. It requires a superadmin
// and a reason, which is written to the audit log.
func (s *Service) ListAllCourses(ctx context.Context, reason string, limit, offset int) (*CoursePage, error) {
	bypassed, err := s.bypasser.WithoutTenantScope(ctx, reason)
	if err != nil {
		return nil, err
	}
	return s.ListCourses(bypassed, limit, offset)
}

// GetCourse returns a course of the caller's faculty. A course of another
// faculty is reported as not found.
func (s *Service) GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	course, err := s.courses.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapError("get course", err)
	}
	return course, nil
}

// CreateCourse adds a course to the caller's faculty
func (s *Service) CreateCourse(ctx context.Context, in CreateCourseInput) (*models.Course, error) {
	code := strings.ToUpper(strings.TrimSpace(in.Code))
	title := strings.TrimSpace(in.Title)

	details := map[string]interface{}{}
	if code == "" {
		details["code"] = "required"
	}
	if title == "" {
		details["title"] = "required"
	}
	if in.Credits < 1 || in.Credits > 30 {
		details["credits"] = "must be between 1 and 30"
	}
	if len(details) > 0 {
		err := services.NewDomainError(services.ErrorTypeValidation, "invalid course", nil)
		err.Details = details
		return nil, err
	}

	course := models.NewCourse(code, title, in.Credits)
	course.FacultyID = in.FacultyID
	if err := s.courses.Create(ctx, course); err != nil {
		return nil, s.mapError("create course", err)
	}

	s.logger.Info("course created",
		zap.String("course_id", course.ID.String()),
		zap.String("faculty_id", course.FacultyID.String()),
		zap.String("code", course.Code))
	return course, nil
}

// ListStudents returns the caller's faculty students. year filters by
// enrollment year when non-zero and ignores paging.
func (s *Service) ListStudents(ctx context.Context, year, limit, offset int) ([]*models.Student, error) {
	var (
		students []*models.Student
		err      error
	)
	if year != 0 {
		students, err = s.students.ListByEnrollmentYear(ctx, year)
	} else {
		limit, offset = normalizePage(limit, offset)
		students, err = s.students.List(ctx, limit, offset)
	}
	if err != nil {
		return nil, s.mapError("list students", err)
	}
	return students, nil
}

// GetStudent returns a student of the caller's faculty
func (s *Service) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	student, err := s.students.GetByID(ctx, id)
	if err != nil {
		return nil, s.mapError("get student", err)
	}
	return student, nil
}

// GetStudentByNumber returns a student by the faculty-assigned number
func (s *Service) GetStudentByNumber(ctx context.Context, number string) (*models.Student, error) {
	student, err := s.students.GetByStudentNumber(ctx, strings.TrimSpace(number))
	if err != nil {
		return nil, s.mapError("get student", err)
	}
	return student, nil
}

// mapError keeps tenancy failures distinguishable from empty results
func (s *Service) mapError(op string, err error) error {
	var domainErr *services.DomainError
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		return services.ErrNotFound
	case errors.Is(err, repositories.ErrDuplicate):
		return services.ErrConflict
	case errors.As(err, &domainErr):
		return err
	}
	s.logger.Error(op+" failed", zap.Error(err))
	return services.WrapInternal(op+" failed", err)
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
