package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction represents the type of action being audited
type AuditAction string

const (
	AuditActionLoginSucceeded      AuditAction = "login_succeeded"
	AuditActionLoginFailed         AuditAction = "login_failed"
	AuditActionTokenRefreshed      AuditAction = "token_refreshed"
	AuditActionRefreshTokenReuse   AuditAction = "refresh_token_reuse"
	AuditActionLogout              AuditAction = "logout"
	AuditActionTenantScopeBypassed AuditAction = "tenant_scope_bypassed"
)

// AuditLog represents a security audit trail entry. FacultyID and
// PrincipalID are nil when the event cannot be attributed (failed login).
type AuditLog struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	FacultyID    *uuid.UUID      `json:"faculty_id,omitempty" db:"faculty_id"`
	PrincipalID  *uuid.UUID      `json:"principal_id,omitempty" db:"principal_id"`
	Action       AuditAction     `json:"action" db:"action"`
	ResourceType string          `json:"resource_type" db:"resource_type"`
	ResourceID   string          `json:"resource_id,omitempty" db:"resource_id"`
	Details      json.RawMessage `json:"details" db:"details"`
	IPAddress    string          `json:"ip_address" db:"ip_address"`
	UserAgent    string          `json:"user_agent" db:"user_agent"`
	RequestID    string          `json:"request_id" db:"request_id"`
	Timestamp    time.Time       `json:"timestamp" db:"timestamp"`
}

// TableName returns the table name for the AuditLog model
func (AuditLog) TableName() string {
	return "audit_logs"
}

// NewAuditLog creates a new AuditLog instance
func NewAuditLog(action AuditAction, resourceType string) *AuditLog {
	return &AuditLog{
		ID:           uuid.New(),
		Action:       action,
		ResourceType: resourceType,
		Details:      json.RawMessage("{}"),
		Timestamp:    time.Now().UTC(),
	}
}

// WithPrincipal attributes the entry to a principal and its faculty
func (a *AuditLog) WithPrincipal(principalID, facultyID uuid.UUID) *AuditLog {
	a.PrincipalID = &principalID
	if facultyID != uuid.Nil {
		a.FacultyID = &facultyID
	}
	return a
}

// WithResource sets the resource ID
func (a *AuditLog) WithResource(resourceID string) *AuditLog {
	a.ResourceID = resourceID
	return a
}

// WithDetails sets the details
func (a *AuditLog) WithDetails(details interface{}) *AuditLog {
	if data, err := json.Marshal(details); err == nil {
		a.Details = data
	}
	return a
}

// WithRequest sets request metadata
func (a *AuditLog) WithRequest(requestID, ipAddress, userAgent string) *AuditLog {
	a.RequestID = requestID
	a.IPAddress = ipAddress
	a.UserAgent = userAgent
	return a
}
