package domain

import (
	"errors"
	"fmt"
)

// AppError is the base domain error type.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"-"`
	Cause   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Cause }

// Error codes used by the dispatch engine.
const (
	CodeConfigError    = "CONFIG_ERROR"
	CodeInvalidTarget  = "INVALID_TARGET"
	CodeTransient      = "TRANSIENT_FAILURE"
	CodePermanent      = "PERMANENT_FAILURE"
	CodeRetryExhausted = "RETRY_EXHAUSTED"
)

// Standard domain error constructors.

func ErrNotFound(entity, id string) *AppError {
	return &AppError{Code: "NOT_FOUND", Message: fmt.Sprintf("%s %s not found", entity, id), Status: 404}
}

func ErrValidation(msg string) *AppError {
	return &AppError{Code: "VALIDATION_ERROR", Message: msg, Status: 400}
}

func ErrUnauthorized(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Message: msg, Status: 401}
}

func ErrForbidden(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Message: msg, Status: 403}
}

func ErrInternal(msg string, cause error) *AppError {
	return &AppError{Code: "INTERNAL_ERROR", Message: msg, Status: 500, Cause: cause}
}

// ErrConfig reports a bad action configuration. It fails resolution fast,
// before anything is enqueued.
func ErrConfig(msg string) *AppError {
	return &AppError{Code: CodeConfigError, Message: msg, Status: 422}
}

// ErrInvalidTarget reports a malformed action target (e.g. a bad redirect
// URL). Not retryable.
func ErrInvalidTarget(msg string) *AppError {
	return &AppError{Code: CodeInvalidTarget, Message: msg, Status: 422}
}

// ErrTransient marks an action failure as retryable (network, timeout).
func ErrTransient(msg string, cause error) *AppError {
	return &AppError{Code: CodeTransient, Message: msg, Status: 502, Cause: cause}
}

// ErrPermanent marks an action failure as non-retryable.
func ErrPermanent(msg string, cause error) *AppError {
	return &AppError{Code: CodePermanent, Message: msg, Status: 422, Cause: cause}
}

// IsTransient reports whether err should be retried by the queue.
func IsTransient(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == CodeTransient
	}
	return false
}

// ErrorCode extracts the domain code from err, defaulting to PERMANENT_FAILURE.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodePermanent
}
