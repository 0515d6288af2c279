package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the academic role of a principal
type Role string

const (
	RoleStudent    Role = "student"
	RoleProfessor  Role = "professor"
	RoleAssistant  Role = "assistant"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

// Valid reports whether r is one of the known roles
func (r Role) Valid() bool {
	switch r {
	case RoleStudent, RoleProfessor, RoleAssistant, RoleAdmin, RoleSuperadmin:
		return true
	}
	return false
}

// PrincipalStatus tells whether a principal may authenticate
type PrincipalStatus string

const (
	StatusActive   PrincipalStatus = "active"
	StatusInactive PrincipalStatus = "inactive"
)

// Principal is an authenticated identity. FacultyID is uuid.Nil for a
// superadmin that is not attached to a faculty.
type Principal struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	Email        string          `json:"email" db:"email"`
	FullName     string          `json:"full_name" db:"full_name"`
	Role         Role            `json:"role" db:"role"`
	FacultyID    uuid.UUID       `json:"faculty_id" db:"faculty_id"`
	Status       PrincipalStatus `json:"status" db:"status"`
	PasswordHash string          `json:"-" db:"password_hash"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
}

// TableName returns the table name for the Principal model
func (Principal) TableName() string {
	return "principals"
}

// NewPrincipal creates an active Principal
func NewPrincipal(email, fullName string, facultyID uuid.UUID, role Role) *Principal {
	now := time.Now().UTC()
	return &Principal{
		ID:        uuid.New(),
		Email:     NormalizeEmail(email),
		FullName:  fullName,
		Role:      role,
		FacultyID: facultyID,
		Status:    StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// IsActive returns true if the principal may sign in
func (p *Principal) IsActive() bool {
	return p.Status == StatusActive
}

// IsSuperadmin returns true for the cross-faculty role
func (p *Principal) IsSuperadmin() bool {
	return p.Role == RoleSuperadmin
}

// TenantClaim is the faculty id as carried in access tokens; empty when the
// principal has no faculty.
func (p *Principal) TenantClaim() string {
	if p.FacultyID == uuid.Nil {
		return ""
	}
	return p.FacultyID.String()
}

// NormalizeEmail lower-cases and trims an email for lookups
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
