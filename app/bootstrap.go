package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/upb/faculty-auth/config"
	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/services/credentials"
	"go.uber.org/zap"
)

// EnsureSuperadmin creates the configured superadmin if no principal with
// that email exists. An existing principal is left untouched, whatever its
// role.
func EnsureSuperadmin(ctx context.Context, cfg config.BootstrapConfig, cost int, principals repositories.PrincipalRepository, logger *zap.Logger) error {
	if !cfg.Enabled() {
		return nil
	}
	email := models.NormalizeEmail(cfg.AdminEmail)

	if existing, err := principals.GetByEmail(ctx, email); err == nil {
		if !existing.IsSuperadmin() {
			logger.Warn("bootstrap email belongs to a principal without the superadmin role",
				zap.String("principal_id", existing.ID.String()))
		}
		return nil
	} else if !errors.Is(err, repositories.ErrNotFound) {
		return fmt.Errorf("bootstrap lookup principal: %w", err)
	}

	hash, err := credentials.HashPassword(cfg.AdminPassword, cost)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	principal := models.NewPrincipal(email, cfg.AdminName, uuid.Nil, models.RoleSuperadmin)
	principal.PasswordHash = hash
	if err := principals.Create(ctx, principal); err != nil {
		if errors.Is(err, repositories.ErrDuplicate) {
			// Another instance won the race
			return nil
		}
		return fmt.Errorf("bootstrap create principal: %w", err)
	}

	logger.Info("bootstrap superadmin created",
		zap.String("principal_id", principal.ID.String()))
	return nil
}
