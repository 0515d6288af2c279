// Package credentials checks email and password pairs against stored bcrypt
// hashes.
package credentials

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/faculty-auth/models"
	"github.com/upb/faculty-auth/repositories"
	"github.com/upb/faculty-auth/services"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// BcryptVerifier implements auth.CredentialVerifier over a principal store
type BcryptVerifier struct {
	principals repositories.PrincipalRepository
	dummyHash  []byte
	logger     *zap.Logger
}

// NewBcryptVerifier creates a verifier. cost sizes the dummy hash compared
// for unknown emails so both failure paths take the same time.
func NewBcryptVerifier(principals repositories.PrincipalRepository, cost int, logger *zap.Logger) (*BcryptVerifier, error) {
	dummy, err := bcrypt.GenerateFromPassword([]byte("faculty-auth-unknown-principal"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare dummy hash: %w", err)
	}
	return &BcryptVerifier{principals: principals, dummyHash: dummy, logger: logger}, nil
}

// Verify returns the principal whose password matches. Unknown email and
// wrong password both yield services.ErrInvalidCredentials.
func (v *BcryptVerifier) Verify(ctx context.Context, email, password string) (*models.Principal, error) {
	principal, err := v.principals.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(v.dummyHash, []byte(password))
			return nil, services.ErrInvalidCredentials
		}
		return nil, services.WrapInternal("failed to load principal", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(principal.PasswordHash), []byte(password)); err != nil {
		if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			v.logger.Error("stored password hash is unusable",
				zap.String("principal_id", principal.ID.String()),
				zap.Error(err))
		}
		return nil, services.ErrInvalidCredentials
	}
	return principal, nil
}

// HashPassword hashes a password for storage
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}
