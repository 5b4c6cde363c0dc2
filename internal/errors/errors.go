package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden    ErrorCode = "FORBIDDEN"
	ErrCodeInvalidToken ErrorCode = "INVALID_TOKEN"

	// Validation
	ErrCodeValidation      ErrorCode = "VALIDATION_ERROR"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"
	ErrCodeInvalidRole     ErrorCode = "INVALID_ROLE"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// Seat claim conflicts
	ErrCodeSessionFull        ErrorCode = "SESSION_FULL"
	ErrCodeHostConflict       ErrorCode = "HOST_CONFLICT"
	ErrCodeActiveConflict     ErrorCode = "ACTIVE_CONFLICT"
	ErrCodeOverlapConflict    ErrorCode = "OVERLAP_CONFLICT"
	ErrCodeSessionUnavailable ErrorCode = "SESSION_UNAVAILABLE"

	// Time windows
	ErrCodeJoinNotOpen        ErrorCode = "JOIN_NOT_OPEN"
	ErrCodeSessionEnded       ErrorCode = "SESSION_ENDED"
	ErrCodeReservationClosed  ErrorCode = "RESERVATION_CLOSED"
	ErrCodeSessionStarted     ErrorCode = "SESSION_STARTED"
	ErrCodeReservationMissing ErrorCode = "RESERVATION_REQUIRED"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase ErrorCode = "DATABASE_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_SERVICE_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// Expected reports whether the error is a deterministic outcome that is safe
// to show to the end user. Infrastructure errors are not.
func (e *AppError) Expected() bool {
	switch e.Code {
	case ErrCodeInternal, ErrCodeDatabase, ErrCodeExternal:
		return false
	}
	return true
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func InvalidToken(message string) *AppError {
	return New(ErrCodeInvalidToken, message)
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func ValidationError(message string) *AppError {
	return New(ErrCodeValidation, message)
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func InvalidRole(role string) *AppError {
	return New(ErrCodeInvalidRole, fmt.Sprintf("Invalid role %q: must be host or participant", role))
}

func SessionFull() *AppError {
	return New(ErrCodeSessionFull, "Session is full")
}

func HostConflict() *AppError {
	return New(ErrCodeHostConflict, "Requested role does not match the session host")
}

func ActiveConflict() *AppError {
	return New(ErrCodeActiveConflict, "You are already in a session that is running now")
}

func OverlapConflict() *AppError {
	return New(ErrCodeOverlapConflict, "You already have a session that overlaps this time")
}

func SessionUnavailable() *AppError {
	return New(ErrCodeSessionUnavailable, "Session is no longer available")
}

func JoinNotOpen() *AppError {
	return New(ErrCodeJoinNotOpen, "join window has not opened yet")
}

func SessionEnded() *AppError {
	return New(ErrCodeSessionEnded, "session has ended")
}

func ReservationClosed() *AppError {
	return New(ErrCodeReservationClosed, "Reservations close 5 minutes before the session starts")
}

func SessionStarted() *AppError {
	return New(ErrCodeSessionStarted, "Session has already started")
}

func ReservationRequired() *AppError {
	return New(ErrCodeReservationMissing, "reserve a spot first")
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func External(service string, cause error) *AppError {
	return Wrap(ErrCodeExternal, fmt.Sprintf("External service error: %s", service), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
