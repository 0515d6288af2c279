package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/middleware"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/utils"
	"go.uber.org/zap"
)

const (
	defaultActivityLimit = 20
	maxActivityLimit     = 100
)

// AuditLister reads a principal's audit trail
type AuditLister interface {
	ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit, offset int) ([]*models.AuditLog, error)
}

// ActivityResponse is the caller's recent security events
type ActivityResponse struct {
	Events []*models.AuditLog `json:"events"`
	Limit  int                `json:"limit"`
	Offset int                `json:"offset"`
}

// ActivityHandler exposes a principal's own audit events
type ActivityHandler struct {
	logs   AuditLister
	logger *zap.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(logs AuditLister, logger *zap.Logger) *ActivityHandler {
	return &ActivityHandler{logs: logs, logger: logger}
}

// HandleMyActivity handles GET /api/auth/me/activity
func (h *ActivityHandler) HandleMyActivity(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaimsFromContext(r.Context())
	if claims == nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}
	principalID, err := uuid.Parse(claims.Subject)
	if err != nil {
		_ = utils.WriteUnauthorized(w, "Authentication required")
		return
	}

	limit, offset, ok := paging(w, r)
	if !ok {
		return
	}
	if limit == 0 {
		limit = defaultActivityLimit
	}
	if limit > maxActivityLimit {
		limit = maxActivityLimit
	}

	events, err := h.logs.ListByPrincipal(r.Context(), principalID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list audit events",
			zap.String("principal_id", principalID.String()),
			zap.Error(err))
		_ = utils.WriteInternalServerError(w, "An internal error occurred")
		return
	}
	if events == nil {
		events = []*models.AuditLog{}
	}
	_ = utils.WriteOK(w, ActivityResponse{Events: events, Limit: limit, Offset: offset})
}
