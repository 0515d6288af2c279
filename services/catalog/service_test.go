package catalog

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/repositories/memory"
	"github.com/upb/faculty-auth/services"
	"github.com/upb/faculty-auth/tenancy"
	"go.uber.org/zap/zaptest"
)

type catalogFixture struct {
	service     *Service
	store       *memory.Store
	engineering uuid.UUID
	law         uuid.UUID
}

func newCatalogFixture(t *testing.T) *catalogFixture {
	t.Helper()
	enforcer := tenancy.NewEnforcer(zaptest.NewLogger(t), nil, nil)
	store := memory.NewStore()
	repos := store.NewRepositories(enforcer)

	f := &catalogFixture{
		service:     NewService(repos.Courses, repos.Students, enforcer, zaptest.NewLogger(t)),
		store:       store,
		engineering: uuid.New(),
		law:         uuid.New(),
	}

	_, err := f.service.CreateCourse(f.scope(f.engineering, models.RoleAdmin), CreateCourseInput{Code: "ing-101", Title: "Calculus", Credits: 4})
	require.NoError(t, err)
	_, err = f.service.CreateCourse(f.scope(f.engineering, models.RoleAdmin), CreateCourseInput{Code: "ING-102", Title: "Physics", Credits: 3})
	require.NoError(t, err)
	_, err = f.service.CreateCourse(f.scope(f.law, models.RoleAdmin), CreateCourseInput{Code: "DER-101", Title: "Roman law", Credits: 3})
	require.NoError(t, err)

	store.Students.Add(&models.Student{ID: uuid.New(), FacultyID: f.engineering, StudentNumber: "2024-001", EnrollmentYear: 2024})
	store.Students.Add(&models.Student{ID: uuid.New(), FacultyID: f.law, StudentNumber: "2024-002", EnrollmentYear: 2024})
	return f
}

func (f *catalogFixture) scope(faculty uuid.UUID, role models.Role) context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{PrincipalID: uuid.New(), TenantID: faculty, Role: role})
}

func (f *catalogFixture) superadmin() context.Context {
	return tenancy.WithScope(context.Background(), tenancy.Scope{PrincipalID: uuid.New(), Role: models.RoleSuperadmin, NoTenant: true})
}

func TestService_ListCoursesOnlySeesOwnFaculty(t *testing.T) {
	f := newCatalogFixture(t)

	page, err := f.service.ListCourses(f.scope(f.engineering, models.RoleProfessor), 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)
	assert.Equal(t, DefaultPageSize, page.Limit)
	for _, c := range page.Courses {
		assert.Equal(t, f.engineering, c.FacultyID)
	}

	page, err = f.service.ListCourses(f.scope(f.law, models.RoleProfessor), 1000, -5)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Total)
	assert.Equal(t, MaxPageSize, page.Limit)
	assert.Zero(t, page.Offset)
}

func TestService_UnresolvedContextIsAnErrorNotAnEmptyList(t *testing.T) {
	f := newCatalogFixture(t)

	page, err := f.service.ListCourses(context.Background(), 10, 0)
	assert.Nil(t, page)
	assert.ErrorIs(t, err, services.ErrContextNotResolved)
	assert.True(t, services.IsForbiddenError(err))

	_, err = f.service.ListStudents(context.Background(), 0, 10, 0)
	assert.ErrorIs(t, err, services.ErrContextNotResolved)
}

func TestService_GetCourseAcrossFacultiesIsNotFound(t *testing.T) {
	f := newCatalogFixture(t)
	law, err := f.service.ListCourses(f.scope(f.law, models.RoleProfessor), 10, 0)
	require.NoError(t, err)
	require.Len(t, law.Courses, 1)

	_, err = f.service.GetCourse(f.scope(f.engineering, models.RoleProfessor), law.Courses[0].ID)
	assert.ErrorIs(t, err, services.ErrNotFound)

	got, err := f.service.GetCourse(f.scope(f.law, models.RoleStudent), law.Courses[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "DER-101", got.Code)
}

func TestService_CreateCourse(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := f.scope(f.engineering, models.RoleAdmin)

	course, err := f.service.CreateCourse(ctx, CreateCourseInput{Code: " ing-300 ", Title: " Statics ", Credits: 3})
	require.NoError(t, err)
	assert.Equal(t, "ING-300", course.Code)
	assert.Equal(t, "Statics", course.Title)
	assert.Equal(t, f.engineering, course.FacultyID)

	_, err = f.service.CreateCourse(ctx, CreateCourseInput{Code: "ING-300", Title: "Dup", Credits: 3})
	assert.ErrorIs(t, err, services.ErrConflict)

	_, err = f.service.CreateCourse(ctx, CreateCourseInput{Code: "", Title: "", Credits: 0})
	require.Error(t, err)
	assert.True(t, services.IsValidationError(err))
	details := services.GetErrorDetails(err)
	assert.Contains(t, details, "code")
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "credits")

	_, err = f.service.CreateCourse(ctx, CreateCourseInput{Code: "X", Title: "Foreign", Credits: 1, FacultyID: f.law})
	assert.ErrorIs(t, err, services.ErrCrossTenantDenied)
}

func TestService_ListAllCourses(t *testing.T) {
	f := newCatalogFixture(t)

	page, err := f.service.ListAllCourses(f.superadmin(), "accreditation audit", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)

	_, err = f.service.ListAllCourses(f.superadmin(), "  ", 10, 0)
	assert.True(t, services.IsValidationError(err))

	_, err = f.service.ListAllCourses(f.scope(f.engineering, models.RoleAdmin), "curious", 10, 0)
	assert.ErrorIs(t, err, services.ErrCrossTenantDenied)
}

func TestService_Students(t *testing.T) {
	f := newCatalogFixture(t)
	ctx := f.scope(f.law, models.RoleAssistant)

	students, err := f.service.ListStudents(ctx, 2024, 0, 0)
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "2024-002", students[0].StudentNumber)

	got, err := f.service.GetStudent(ctx, students[0].ID)
	require.NoError(t, err)
	assert.Equal(t, f.law, got.FacultyID)

	_, err = f.service.GetStudentByNumber(ctx, "2024-001")
	assert.ErrorIs(t, err, services.ErrNotFound)

	got, err = f.service.GetStudentByNumber(ctx, " 2024-002 ")
	require.NoError(t, err)
	assert.Equal(t, students[0].ID, got.ID)
}

type MockCourseRepository struct {
	mock.Mock
	repositories.CourseRepository
}

func (m *MockCourseRepository) List(ctx context.Context, limit, offset int) ([]*models.Course, error) {
	args := m.Called(ctx, limit, offset)
	return nil, args.Error(1)
}

func TestService_DriverErrorsAreInternal(t *testing.T) {
	repo := new(MockCourseRepository)
	repo.On("List", mock.Anything, DefaultPageSize, 0).Return(nil, errors.New("connection refused"))

	s := NewService(repo, nil, nil, zaptest.NewLogger(t))
	_, err := s.ListCourses(context.Background(), 0, 0)
	assert.True(t, services.IsInternalError(err))
	repo.AssertExpectations(t)
}
