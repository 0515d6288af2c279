package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/models"
)

// AuditRepository implements repositories.AuditRepository
type AuditRepository struct {
	mu   sync.RWMutex
	logs []*models.AuditLog
}

// NewAuditRepository creates an empty repository
func NewAuditRepository() *AuditRepository {
	return &AuditRepository{}
}

func (r *AuditRepository) Insert(ctx context.Context, log *models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *log
	r.logs = append(r.logs, &c)
	return nil
}

func (r *AuditRepository) ListByPrincipal(ctx context.Context, principalID uuid.UUID, limit, offset int) ([]*models.AuditLog, error) {
	r.mu.RLock()
	var out []*models.AuditLog
	for _, l := range r.logs {
		if l.PrincipalID != nil && *l.PrincipalID == principalID {
			c := *l
			out = append(out, &c)
		}
	}
	r.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return page(out, limit, offset), nil
}

// All returns every entry in insertion order
func (r *AuditRepository) All() []*models.AuditLog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*models.AuditLog, len(r.logs))
	copy(out, r.logs)
	return out
}
