// Package tenancy resolves the faculty a request acts for and enforces that
// every tenant-owned query is filtered by it.
package tenancy

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/services"
)

// Claims is the subset of a verified token needed to resolve a tenant
type Claims interface {
	GetSubject() (string, error)
	GetTenantID() string
	GetRole() models.Role
}

// Scope is the resolved identity of a request. NoTenant marks a superadmin
// without a faculty: its scope matches no tenant-owned row.
type Scope struct {
	PrincipalID uuid.UUID
	TenantID    uuid.UUID
	Role        models.Role
	NoTenant    bool
}

// IsSuperadmin reports whether the scope may bypass tenant filtering
func (s Scope) IsSuperadmin() bool {
	return s.Role == models.RoleSuperadmin
}

type state int

const (
	stateUnset state = iota
	stateResolved
	stateCleared
)

// Context holds the tenant of one request. It is resolved once, after
// authentication, and cleared when the request ends.
type Context struct {
	mu    sync.RWMutex
	state state
	scope Scope
}

// NewContext returns an unresolved Context
func NewContext() *Context {
	return &Context{}
}

// Resolve sets the scope from verified claims. A missing or malformed tenant
// claim fails with services.ErrMissingTenantClaim, except for a superadmin,
// which resolves to a NoTenant scope.
func (c *Context) Resolve(claims Claims) (Scope, error) {
	if claims == nil {
		return Scope{}, services.Wrap(services.ErrMissingTenantClaim, errors.New("no claims"))
	}
	sub, err := claims.GetSubject()
	if err != nil {
		return Scope{}, services.Wrap(services.ErrMissingTenantClaim, err)
	}
	principalID, err := uuid.Parse(sub)
	if err != nil {
		return Scope{}, services.Wrap(services.ErrMissingTenantClaim, err)
	}
	role := claims.GetRole()
	if !role.Valid() {
		return Scope{}, services.Wrap(services.ErrMissingTenantClaim, errors.New("unknown role"))
	}

	scope := Scope{PrincipalID: principalID, Role: role}
	switch raw := claims.GetTenantID(); {
	case raw == "" && role == models.RoleSuperadmin:
		scope.NoTenant = true
	case raw == "":
		return Scope{}, services.Wrap(services.ErrMissingTenantClaim, errors.New("empty tenant claim"))
	default:
		tenantID, err := uuid.Parse(raw)
		if err != nil || tenantID == uuid.Nil {
			return Scope{}, services.Wrap(services.ErrMissingTenantClaim, errors.New("malformed tenant claim"))
		}
		scope.TenantID = tenantID
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != stateUnset {
		return Scope{}, errors.New("tenant context already resolved")
	}
	c.scope = scope
	c.state = stateResolved
	return scope, nil
}

// Current returns the resolved scope, or services.ErrContextNotResolved
// before Resolve and after Clear.
func (c *Context) Current() (Scope, error) {
	if c == nil {
		return Scope{}, services.ErrContextNotResolved
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateResolved {
		return Scope{}, services.ErrContextNotResolved
	}
	return c.scope, nil
}

// Clear ends the request scope. Later reads fail closed.
func (c *Context) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scope = Scope{}
	c.state = stateCleared
}

type contextKey struct{}

// WithContext attaches tc to ctx
func WithContext(ctx context.Context, tc *Context) context.Context {
	return context.WithValue(ctx, contextKey{}, tc)
}

// FromContext returns the Context attached to ctx, or nil
func FromContext(ctx context.Context) *Context {
	tc, _ := ctx.Value(contextKey{}).(*Context)
	return tc
}

// Current returns the scope resolved for ctx
func Current(ctx context.Context) (Scope, error) {
	return FromContext(ctx).Current()
}

// WithScope returns a ctx carrying an already resolved scope. It is meant
// for background jobs and tests that act for a known faculty.
func WithScope(ctx context.Context, scope Scope) context.Context {
	return WithContext(ctx, &Context{state: stateResolved, scope: scope})
}
