package tenancy

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/internal/observability"
	"github.com/upb/faculty-auth/services"
	"go.uber.org/zap"
)

// BypassAuditor records unscoped access in the audit trail
type BypassAuditor interface {
	TenantScopeBypassed(ctx context.Context, scope Scope, reason string)
}

type bypassKey struct{}

type bypass struct {
	principalID uuid.UUID
	reason      string
}

// Enforcer adds the tenant predicate to repository queries. Queries issued
// without a resolved tenant are refused.
type Enforcer struct {
	logger  *zap.Logger
	metrics *observability.Metrics
	auditor BypassAuditor
}

// NewEnforcer creates an Enforcer. metrics and auditor may be nil.
func NewEnforcer(logger *zap.Logger, metrics *observability.Metrics, auditor BypassAuditor) *Enforcer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Enforcer{logger: logger, metrics: metrics, auditor: auditor}
}

// Scoped is a query bound to the scope it was applied under
type Scoped struct {
	query  *Query
	scope  Scope
	bypass bool
}

// SQL renders the scoped statement. The tenant argument is always $1.
// A Scoped returned by Filter has no statement.
func (s *Scoped) SQL() (string, []interface{}) {
	if s.query == nil {
		return "", nil
	}
	return s.query.SQL()
}

// Scope returns the scope the query was applied under
func (s *Scoped) Scope() Scope {
	return s.scope
}

// Allows applies the tenant predicate to a row already in memory
func (s *Scoped) Allows(rowTenant uuid.UUID) bool {
	if s.bypass {
		return true
	}
	if s.scope.NoTenant {
		return false
	}
	return rowTenant != uuid.Nil && rowTenant == s.scope.TenantID
}

// Apply scopes q to the tenant resolved in ctx by filtering on column.
// A NoTenant scope matches nothing. A ctx returned by WithoutTenantScope
// leaves q unfiltered.
func (e *Enforcer) Apply(ctx context.Context, q *Query, column string) (*Scoped, error) {
	s, err := e.Filter(ctx, column)
	if err != nil {
		return nil, err
	}

	switch {
	case s.bypass:
		s.query = q.scoped("TRUE")
	case s.scope.NoTenant:
		s.query = q.scoped("FALSE")
	default:
		s.query = q.scoped(column+" = ?", s.scope.TenantID.String())
	}
	return s, nil
}

// Filter returns the scope for in-process filtering with Allows, for stores
// that do not speak SQL. target names the filtered collection in logs.
func (e *Enforcer) Filter(ctx context.Context, target string) (*Scoped, error) {
	scope, err := Current(ctx)
	if err != nil {
		e.deny(target, err)
		return nil, err
	}

	if b, ok := ctx.Value(bypassKey{}).(bypass); ok {
		if !scope.IsSuperadmin() || b.principalID != scope.PrincipalID {
			e.deny(target, services.ErrCrossTenantDenied)
			return nil, services.ErrCrossTenantDenied
		}
		e.logger.Info("tenant scope skipped",
			zap.String("target", target),
			zap.String("principal_id", scope.PrincipalID.String()),
			zap.String("reason", b.reason))
		return &Scoped{scope: scope, bypass: true}, nil
	}
	return &Scoped{scope: scope}, nil
}

// OwnerFor returns the tenant a new row must be stamped with. requested is
// uuid.Nil for "the current faculty"; any other faculty needs a bypass.
func (e *Enforcer) OwnerFor(ctx context.Context, requested uuid.UUID) (uuid.UUID, error) {
	scope, err := Current(ctx)
	if err != nil {
		e.deny("insert", err)
		return uuid.Nil, err
	}
	if _, ok := ctx.Value(bypassKey{}).(bypass); ok && scope.IsSuperadmin() && requested != uuid.Nil {
		return requested, nil
	}
	if scope.NoTenant {
		return uuid.Nil, services.ErrCrossTenantDenied
	}
	if requested != uuid.Nil && requested != scope.TenantID {
		e.deny("insert", services.ErrCrossTenantDenied)
		return uuid.Nil, services.ErrCrossTenantDenied
	}
	return scope.TenantID, nil
}

// WithoutTenantScope returns a ctx whose queries skip tenant filtering. Only
// a superadmin may call it and every call is logged, counted and audited.
func (e *Enforcer) WithoutTenantScope(ctx context.Context, reason string) (context.Context, error) {
	scope, err := Current(ctx)
	if err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, services.Wrap(services.ErrInvalidInput, errors.New("a reason is required to bypass tenant scope"))
	}
	if !scope.IsSuperadmin() {
		e.logger.Warn("tenant scope bypass refused",
			zap.String("principal_id", scope.PrincipalID.String()),
			zap.String("role", string(scope.Role)),
		)
		return nil, services.ErrCrossTenantDenied
	}

	e.logger.Warn("tenant scope bypassed",
		zap.String("principal_id", scope.PrincipalID.String()),
		zap.String("reason", reason),
	)
	e.metrics.TenantScopeBypassed()
	if e.auditor != nil {
		e.auditor.TenantScopeBypassed(ctx, scope, reason)
	}
	return context.WithValue(ctx, bypassKey{}, bypass{principalID: scope.PrincipalID, reason: reason}), nil
}

func (e *Enforcer) deny(target string, err error) {
	e.logger.Warn("tenant scoped query refused", zap.String("target", target), zap.Error(err))
	e.metrics.TenantScopeDenied(target)
}
