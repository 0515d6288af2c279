package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/upb/faculty-auth/middleware"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/services/catalog"
	"github.com/upb/faculty-auth/utils"
	"go.uber.org/zap"
)

// CreateCourseRequest represents a request to create a course
type CreateCourseRequest struct {
	Code      string     `json:"code" validate:"required,max=32"`
	Title     string     `json:"title" validate:"required,max=200"`
	Credits   int        `json:"credits" validate:"gte=1,lte=30"`
	FacultyID *uuid.UUID `json:"faculty_id,omitempty"`
}

// CourseListResponse is one page of courses
type CourseListResponse struct {
	Courses []*models.Course `json:"courses"`
	Total   int              `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// CatalogService defines the course and student operations
type CatalogService interface {
	ListCourses(ctx context.Context, limit, offset int) (*catalog.CoursePage, error)
	ListAllCourses(ctx context.Context, reason string, limit, offset int) (*catalog.CoursePage, error)
	GetCourse(ctx context.Context, id uuid.UUID) (*models.Course, error)
	CreateCourse(ctx context.Context, in catalog.CreateCourseInput) (*models.Course, error)
	ListStudents(ctx context.Context, year, limit, offset int) ([]*models.Student, error)
	GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error)
}

// CatalogHandler handles course and student requests
type CatalogHandler struct {
	service CatalogService
	logger  *zap.Logger
}

// NewCatalogHandler creates a new CatalogHandler
func NewCatalogHandler(service CatalogService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{
		service: service,
		logger:  logger,
	}
}

// HandleListCourses handles GET /api/courses
func (h *CatalogHandler) HandleListCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListCourses(r.Context(), limit, offset)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, coursePage(page))
}

// HandleListAllCourses handles GET /api/admin/courses?reason=...
func (h *CatalogHandler) HandleListAllCourses(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}

	page, err := h.service.ListAllCourses(r.Context(), r.URL.Query().Get("reason"), limit, offset)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, coursePage(page))
}

// HandleGetCourse handles GET /api/courses/{id}
func (h *CatalogHandler) HandleGetCourse(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	course, err := h.service.GetCourse(r.Context(), id)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, course)
}

// HandleCreateCourse handles POST /api/courses
func (h *CatalogHandler) HandleCreateCourse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestIDFromContext(ctx)

	var req CreateCourseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		h.logger.Debug("invalid course body", zap.String("request_id", requestID), zap.Error(err))
		_ = utils.WriteBadRequest(w, "Invalid request body", nil)
		return
	}
	if err := utils.ValidateStruct(&req); err != nil {
		utils.WriteValidationError(w, err, h.logger)
		return
	}

	in := catalog.CreateCourseInput{Code: req.Code, Title: req.Title, Credits: req.Credits}
	if req.FacultyID != nil {
		in.FacultyID = *req.FacultyID
	}

	course, err := h.service.CreateCourse(ctx, in)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteCreated(w, course)
}

// HandleListStudents handles GET /api/students
func (h *CatalogHandler) HandleListStudents(w http.ResponseWriter, r *http.Request) {
	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	year, ok := queryInt(w, r, "year")
	if !ok {
		return
	}

	students, err := h.service.ListStudents(r.Context(), year, limit, offset)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	if students == nil {
		students = []*models.Student{}
	}
	_ = utils.WriteOK(w, students)
}

// HandleGetStudent handles GET /api/students/{id}
func (h *CatalogHandler) HandleGetStudent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	student, err := h.service.GetStudent(r.Context(), id)
	if err != nil {
		utils.WriteServiceError(w, err, h.logger)
		return
	}
	_ = utils.WriteOK(w, student)
}

func coursePage(page *catalog.CoursePage) CourseListResponse {
	courses := page.Courses
	if courses == nil {
		courses = []*models.Course{}
	}
	return CourseListResponse{Courses: courses, Total: page.Total, Limit: page.Limit, Offset: page.Offset}
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		_ = utils.WriteBadRequest(w, "Invalid id format", nil)
		return uuid.Nil, false
	}
	return id, true
}

func paging(w http.ResponseWriter, r *http.Request) (int, int, bool) {
	limit, ok := queryInt(w, r, "limit")
	if !ok {
		return 0, 0, false
	}
	offset, ok := queryInt(w, r, "offset")
	if !ok {
		return 0, 0, false
	}
	return limit, offset, true
}

func queryInt(w http.ResponseWriter, r *http.Request, name string) (int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		_ = utils.WriteBadRequest(w, "Invalid "+name, nil)
		return 0, false
	}
	return v, true
}
