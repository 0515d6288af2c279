package utils

import (
	"errors"
	"net/http"

	"github.com/upb/faculty-auth/services"
	"go.uber.org/zap"
)

// WriteServiceError maps a domain error to its HTTP answer. Unauthorized
// and forbidden answers carry only the message of their sentinel so that
// wrapped causes never reach the client.
func WriteServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	var domainErr *services.DomainError
	errors.As(err, &domainErr)
	code := string(services.GetErrorCode(err))
	details := services.GetErrorDetails(err)

	var status int
	var msg string
	switch {
	case services.IsNotFoundError(err):
		status, msg = http.StatusNotFound, message(domainErr, "Resource not found")
	case services.IsValidationError(err):
		status, msg = http.StatusBadRequest, err.Error()
	case services.IsUnauthorizedError(err):
		status, msg = http.StatusUnauthorized, message(domainErr, "Authentication required")
		details = nil
	case services.IsForbiddenError(err):
		// Tenant scope failures are an authorization outcome, never an empty result
		logger.Warn("request forbidden", zap.String("code", code), zap.Error(err))
		status, msg = http.StatusForbidden, message(domainErr, "Access forbidden")
		details = nil
	case services.IsRateLimitError(err):
		status, msg = http.StatusTooManyRequests, message(domainErr, "Too many requests")
	case services.IsConflictError(err):
		status, msg = http.StatusConflict, message(domainErr, "Resource already exists")
	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))
		status, msg, code, details = http.StatusInternalServerError, "An internal error occurred", "", nil
	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
		status, msg, code, details = http.StatusInternalServerError, "An unexpected error occurred", "", nil
	}

	if err := WriteError(w, status, code, msg, details); err != nil {
		logger.Error("failed to write error response", zap.Int("status", status), zap.Error(err))
	}
}

// WriteValidationError answers a request body that failed ValidateStruct
func WriteValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var details map[string]interface{}
	msg := err.Error()
	if fields := GetValidationFields(err); fields != nil {
		details = make(map[string]interface{}, len(fields))
		for k, v := range fields {
			details[k] = v
		}
	}
	if err := WriteBadRequest(w, msg, details); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// message returns the sentinel message without the wrapped cause
func message(domainErr *services.DomainError, fallback string) string {
	if domainErr == nil || domainErr.Message == "" {
		return fallback
	}
	return domainErr.Message
}
