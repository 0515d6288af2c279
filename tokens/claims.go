package tokens

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/upb/faculty-auth/models"
)

// Claims is the payload of an access token. TenantID is the faculty id and is
// omitted for principals without a faculty.
type Claims struct {
	Email    string      `json:"email"`
	FullName string      `json:"name,omitempty"`
	Role     models.Role `json:"role"`
	TenantID string      `json:"tenant_id,omitempty"`
	jwt.RegisteredClaims
}

// GetTenantID returns the tenant claim as carried in the token
func (c *Claims) GetTenantID() string {
	return c.TenantID
}

// GetRole returns the role claim
func (c *Claims) GetRole() models.Role {
	return c.Role
}
