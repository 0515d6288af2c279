package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/tenancy"
)

// CourseRepository implements repositories.CourseRepository. Rows outside
// the resolved scope are invisible.
type CourseRepository struct {
	mu       sync.RWMutex
	rows     map[uuid.UUID]*models.Course
	enforcer *tenancy.Enforcer
}

// NewCourseRepository creates an empty repository
func NewCourseRepository(enforcer *tenancy.Enforcer) *CourseRepository {
	return &CourseRepository{rows: make(map[uuid.UUID]*models.Course), enforcer: enforcer}
}

func (r *CourseRepository) Create(ctx context.Context, course *models.Course) error {
	owner, err := r.enforcer.OwnerFor(ctx, course.FacultyID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.FacultyID == owner && c.Code == course.Code {
			return fmt.Errorf("failed to create course: %w", repositories.ErrDuplicate)
		}
	}
	course.FacultyID = owner
	stored := *course
	r.rows[course.ID] = &stored

	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.rows, course.ID)
		r.mu.Unlock()
	})
	return nil
}

func (r *CourseRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Course, error) {
	return r.find(ctx, func(c *models.Course) bool { return c.ID == id })
}

func (r *CourseRepository) GetByCode(ctx context.Context, code string) (*models.Course, error) {
	return r.find(ctx, func(c *models.Course) bool { return c.Code == code })
}

func (r *CourseRepository) List(ctx context.Context, limit, offset int) ([]*models.Course, error) {
	courses, err := r.visible(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(courses, func(i, j int) bool { return courses[i].Code < courses[j].Code })
	return page(courses, limit, offset), nil
}

func (r *CourseRepository) Count(ctx context.Context) (int, error) {
	courses, err := r.visible(ctx)
	if err != nil {
		return 0, err
	}
	return len(courses), nil
}

func (r *CourseRepository) find(ctx context.Context, match func(*models.Course) bool) (*models.Course, error) {
	courses, err := r.visible(ctx)
	if err != nil {
		return nil, err
	}
	for _, c := range courses {
		if match(c) {
			return c, nil
		}
	}
	return nil, fmt.Errorf("course: %w", repositories.ErrNotFound)
}

func (r *CourseRepository) visible(ctx context.Context) ([]*models.Course, error) {
	scoped, err := r.enforcer.Filter(ctx, "courses")
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*models.Course
	for _, c := range r.rows {
		if scoped.Allows(c.FacultyID) {
			cp := *c
			out = append(out, &cp)
		}
	}
	return out, nil
}

// StudentRepository implements repositories.StudentRepository
type StudentRepository struct {
	mu       sync.RWMutex
	rows     map[uuid.UUID]*models.Student
	enforcer *tenancy.Enforcer
}

// NewStudentRepository creates an empty repository
func NewStudentRepository(enforcer *tenancy.Enforcer) *StudentRepository {
	return &StudentRepository{rows: make(map[uuid.UUID]*models.Student), enforcer: enforcer}
}

// Add stores a student as is. Enrollment is not part of the scoped API.
func (r *StudentRepository) Add(s *models.Student) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *s
	r.rows[s.ID] = &c
}

func (r *StudentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	return r.find(ctx, func(s *models.Student) bool { return s.ID == id })
}

func (r *StudentRepository) GetByStudentNumber(ctx context.Context, number string) (*models.Student, error) {
	return r.find(ctx, func(s *models.Student) bool { return s.StudentNumber == number })
}

func (r *StudentRepository) List(ctx context.Context, limit, offset int) ([]*models.Student, error) {
	students, err := r.visible(ctx)
	if err != nil {
		return nil, err
	}
	return page(students, limit, offset), nil
}

func (r *StudentRepository) ListByEnrollmentYear(ctx context.Context, year int) ([]*models.Student, error) {
	students, err := r.visible(ctx)
	if err != nil {
		return nil, err
	}
	var out []*models.Student
	for _, s := range students {
		if s.EnrollmentYear == year {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *StudentRepository) find(ctx context.Context, match func(*models.Student) bool) (*models.Student, error) {
	students, err := r.visible(ctx)
	if err != nil {
		return nil, err
	}
	for _, s := range students {
		if match(s) {
			return s, nil
		}
	}
	return nil, fmt.Errorf("student: %w", repositories.ErrNotFound)
}

// visible returns the students in scope ordered by student number
func (r *StudentRepository) visible(ctx context.Context) ([]*models.Student, error) {
	scoped, err := r.enforcer.Filter(ctx, "students")
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	var out []*models.Student
	for _, s := range r.rows {
		if scoped.Allows(s.FacultyID) {
			cp := *s
			out = append(out, &cp)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StudentNumber < out[j].StudentNumber })
	return out, nil
}

func page[T any](rows []T, limit, offset int) []T {
	if offset >= len(rows) {
		return nil
	}
	rows = rows[offset:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}
