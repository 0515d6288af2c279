package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeNotFound, "resource not found", baseErr)

	assert.Equal(t, ErrorTypeNotFound, domainErr.Type)
	assert.Empty(t, domainErr.Code)
	assert.Equal(t, "resource not found", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name:    "error with wrapped error",
			err:     &DomainError{Type: ErrorTypeNotFound, Message: "course not found", Err: errors.New("db error")},
			wantMsg: "not_found: course not found (db error)",
		},
		{
			name:    "error without wrapped error",
			err:     &DomainError{Type: ErrorTypeValidation, Message: "invalid input"},
			wantMsg: "validation: invalid input",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{"same type without code", NewDomainError(ErrorTypeNotFound, "x", nil), ErrNotFound, true},
		{"different type", NewDomainError(ErrorTypeValidation, "x", nil), ErrNotFound, false},
		{"same code", ErrInvalidToken, ErrInvalidToken, true},
		{"same type different code", ErrInvalidToken, ErrInvalidCredentials, false},
		{"coded error matches type sentinel", ErrInvalidRefreshToken, NewDomainError(ErrorTypeUnauthorized, "", nil), true},
		{"wrapped copy matches sentinel", Wrap(ErrRefreshTokenRevoked, errors.New("reuse")), ErrRefreshTokenRevoked, true},
		{"fmt wrapped", fmt.Errorf("ctx: %w", ErrContextNotResolved), ErrContextNotResolved, true},
		{"not a domain error", ErrNotFound, errors.New("regular error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestWrap_LeavesSentinelUntouched(t *testing.T) {
	cause := errors.New("kid mismatch")

	wrapped := Wrap(ErrInvalidToken, cause).WithDetail("kid", "other")

	require.ErrorIs(t, wrapped, cause)
	assert.Equal(t, CodeInvalidToken, wrapped.Code)
	assert.Empty(t, ErrInvalidToken.Details)
	assert.Nil(t, ErrInvalidToken.Err)
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)

	err.WithDetail("field", "email").WithDetail("value", "invalid-email")

	assert.Equal(t, "email", err.Details["field"])
	assert.Equal(t, "invalid-email", err.Details["value"])
}

func TestErrorTypeHelpers(t *testing.T) {
	assert.True(t, IsUnauthorizedError(ErrInvalidCredentials))
	assert.True(t, IsUnauthorizedError(fmt.Errorf("wrapped: %w", ErrInvalidRefreshToken)))
	assert.True(t, IsForbiddenError(ErrMissingTenantClaim))
	assert.True(t, IsForbiddenError(ErrContextNotResolved))
	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsConflictError(ErrConflict))
	assert.True(t, IsRateLimitError(ErrRateLimited))
	assert.True(t, IsInternalError(WrapInternal("db", errors.New("down"))))
	assert.False(t, IsValidationError(errors.New("plain")))
	assert.False(t, IsNotFoundError(nil))
}

func TestGetErrorCode(t *testing.T) {
	assert.Equal(t, CodeMissingTenantClaim, GetErrorCode(fmt.Errorf("resolve: %w", ErrMissingTenantClaim)))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.Equal(t, ErrorTypeForbidden, GetErrorType(ErrCrossTenantDenied))
	assert.Nil(t, GetErrorDetails(errors.New("plain")))
}
