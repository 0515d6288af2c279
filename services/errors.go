package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// ErrorCode names a specific failure inside a type. The auth and tenancy
// codes form a closed set; callers branch on them with errors.Is.
type ErrorCode string

const (
	CodeInvalidCredentials   ErrorCode = "invalid_credentials"
	CodeInvalidToken         ErrorCode = "invalid_token"
	CodeInvalidRefreshToken  ErrorCode = "invalid_refresh_token"
	CodeMissingTenantClaim   ErrorCode = "missing_tenant_claim"
	CodeContextNotResolved   ErrorCode = "context_not_resolved"
	CodeCrossTenantDenied    ErrorCode = "cross_tenant_denied"
	CodeRefreshTokenNotFound ErrorCode = "refresh_token_not_found"
	CodeRefreshTokenRevoked  ErrorCode = "refresh_token_revoked"
	CodeRefreshTokenExpired  ErrorCode = "refresh_token_expired"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Code    ErrorCode
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches on Code when the target carries one, otherwise on Type.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if t.Code != "" {
		return e.Code == t.Code
	}
	return e.Type == t.Type
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

func newCodedError(errType ErrorType, code ErrorCode, message string) *DomainError {
	e := NewDomainError(errType, message, nil)
	e.Code = code
	return e
}

// Domain error variables. The sentinels are shared; never call WithDetail on
// them, wrap them with Wrap instead.
var (
	ErrNotFound     = NewDomainError(ErrorTypeNotFound, "resource not found", nil)
	ErrInvalidInput = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrForbidden    = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrConflict     = NewDomainError(ErrorTypeConflict, "resource already exists", nil)
	ErrRateLimited  = NewDomainError(ErrorTypeRateLimit, "too many requests", nil)
	ErrInternal     = NewDomainError(ErrorTypeInternal, "internal server error", nil)

	// Caller-visible authentication failures
	ErrInvalidCredentials  = newCodedError(ErrorTypeUnauthorized, CodeInvalidCredentials, "invalid email or password")
	ErrInvalidToken        = newCodedError(ErrorTypeUnauthorized, CodeInvalidToken, "invalid or expired token")
	ErrInvalidRefreshToken = newCodedError(ErrorTypeUnauthorized, CodeInvalidRefreshToken, "invalid refresh token")

	// Tenant isolation failures are authorization errors
	ErrMissingTenantClaim = newCodedError(ErrorTypeForbidden, CodeMissingTenantClaim, "token carries no tenant")
	ErrContextNotResolved = newCodedError(ErrorTypeForbidden, CodeContextNotResolved, "tenant context not resolved")
	ErrCrossTenantDenied  = newCodedError(ErrorTypeForbidden, CodeCrossTenantDenied, "cross-tenant access denied")

	// Refresh token store outcomes, logged server-side and never returned to clients
	ErrRefreshTokenNotFound = newCodedError(ErrorTypeUnauthorized, CodeRefreshTokenNotFound, "refresh token not found")
	ErrRefreshTokenRevoked  = newCodedError(ErrorTypeUnauthorized, CodeRefreshTokenRevoked, "refresh token revoked")
	ErrRefreshTokenExpired  = newCodedError(ErrorTypeUnauthorized, CodeRefreshTokenExpired, "refresh token expired")
)

// Error type checking helper functions

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorCode returns the ErrorCode of a domain error, or empty string
func GetErrorCode(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// Wrap returns a copy of sentinel carrying cause. errors.Is(result, sentinel)
// still holds and the sentinel itself is left untouched.
func Wrap(sentinel *DomainError, cause error) *DomainError {
	return &DomainError{
		Type:    sentinel.Type,
		Code:    sentinel.Code,
		Message: sentinel.Message,
		Err:     cause,
		Details: make(map[string]interface{}),
	}
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
