package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
)

// RefreshTokenRepository implements repositories.RefreshTokenRepository.
// MarkReplaced and MarkRevoked check and write under one lock.
type RefreshTokenRepository struct {
	mu     sync.Mutex
	byHash map[string]*models.RefreshToken
}

// NewRefreshTokenRepository creates an empty repository
func NewRefreshTokenRepository() *RefreshTokenRepository {
	return &RefreshTokenRepository{byHash: make(map[string]*models.RefreshToken)}
}

func (r *RefreshTokenRepository) Create(ctx context.Context, token *models.RefreshToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[token.TokenHash]; exists {
		return fmt.Errorf("failed to create refresh token: %w", repositories.ErrDuplicate)
	}
	stored := *token
	r.byHash[token.TokenHash] = &stored

	onRollback(ctx, func() {
		r.mu.Lock()
		delete(r.byHash, token.TokenHash)
		r.mu.Unlock()
	})
	return nil
}

func (r *RefreshTokenRepository) GetByHash(ctx context.Context, tokenHash string) (*models.RefreshToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byHash[tokenHash]
	if !ok {
		return nil, fmt.Errorf("refresh token: %w", repositories.ErrNotFound)
	}
	return cloneRefreshToken(stored), nil
}

func (r *RefreshTokenRepository) MarkReplaced(ctx context.Context, tokenHash, replacedBy string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byHash[tokenHash]
	if !ok || !stored.IsActive(now) {
		return false, nil
	}
	revokedAt := now
	successor := replacedBy
	stored.RevokedAt = &revokedAt
	stored.ReplacedBy = &successor

	onRollback(ctx, func() {
		r.mu.Lock()
		stored.RevokedAt = nil
		stored.ReplacedBy = nil
		r.mu.Unlock()
	})
	return true, nil
}

func (r *RefreshTokenRepository) MarkRevoked(ctx context.Context, tokenHash string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byHash[tokenHash]
	if !ok || stored.RevokedAt != nil {
		return false, nil
	}
	revokedAt := now
	stored.RevokedAt = &revokedAt

	onRollback(ctx, func() {
		r.mu.Lock()
		stored.RevokedAt = nil
		r.mu.Unlock()
	})
	return true, nil
}

func (r *RefreshTokenRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for hash, stored := range r.byHash {
		if stored.ExpiresAt.Before(before) {
			delete(r.byHash, hash)
			n++
		}
	}
	return n, nil
}

func cloneRefreshToken(t *models.RefreshToken) *models.RefreshToken {
	c := *t
	if t.RevokedAt != nil {
		at := *t.RevokedAt
		c.RevokedAt = &at
	}
	if t.ReplacedBy != nil {
		next := *t.ReplacedBy
		c.ReplacedBy = &next
	}
	return &c
}
