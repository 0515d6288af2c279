package models

import (
	"time"

	"github.com/google/uuid"
)

// Faculty is the tenant boundary. Every tenant-owned row references one.
type Faculty struct {
	ID        uuid.UUID `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Code      string    `json:"code" db:"code"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Faculty model
func (Faculty) TableName() string {
	return "faculties"
}

// NewFaculty creates a new Faculty instance
func NewFaculty(name, code string) *Faculty {
	now := time.Now().UTC()
	return &Faculty{
		ID:        uuid.New(),
		Name:      name,
		Code:      code,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
