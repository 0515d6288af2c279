package models

import (
	"time"

	"github.com/google/uuid"
)

// Course is owned by a faculty
type Course struct {
	ID        uuid.UUID `json:"id" db:"id"`
	FacultyID uuid.UUID `json:"faculty_id" db:"faculty_id"`
	Code      string    `json:"code" db:"code"`
	Title     string    `json:"title" db:"title"`
	Credits   int       `json:"credits" db:"credits"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Course model
func (Course) TableName() string {
	return "courses"
}

// NewCourse creates a Course. The faculty is stamped by the repository.
func NewCourse(code, title string, credits int) *Course {
	now := time.Now().UTC()
	return &Course{
		ID:        uuid.New(),
		Code:      code,
		Title:     title,
		Credits:   credits,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Student is an enrolled person owned by a faculty
type Student struct {
	ID             uuid.UUID `json:"id" db:"id"`
	FacultyID      uuid.UUID `json:"faculty_id" db:"faculty_id"`
	StudentNumber  string    `json:"student_number" db:"student_number"`
	FullName       string    `json:"full_name" db:"full_name"`
	Email          string    `json:"email" db:"email"`
	EnrollmentYear int       `json:"enrollment_year" db:"enrollment_year"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// TableName returns the table name for the Student model
func (Student) TableName() string {
	return "students"
}
