package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
	ErrUpstream           = New("UPSTREAM_ERROR", http.StatusInternalServerError, "store unavailable")
)

// Consistency violations. Rejected mutations surface these as-is; the engine
// never clamps or silently corrects the offending value.
var (
	ErrOverpayment         = New("OVERPAYMENT", http.StatusConflict, "paid amount cannot exceed total fees")
	ErrInvalidAmount       = New("INVALID_AMOUNT", http.StatusBadRequest, "payment amount must be positive")
	ErrDuplicateEnrollment = New("DUPLICATE_ENROLLMENT", http.StatusConflict, "student already has an active enrollment for this academic year")
	ErrDuplicateLedger     = New("DUPLICATE_LEDGER", http.StatusConflict, "payment ledger already exists for this student and academic year")
)

// Authorization denials. Every deny carries a stable machine-readable code so
// the gateway maps it to a 403 uniformly instead of a free-text message that
// hides the cause.
var (
	ErrRoleNotPermitted  = New("ROLE_NOT_PERMITTED", http.StatusForbidden, "not authorized for this role/target combination")
	ErrNotClassTeacher   = New("NOT_CLASS_TEACHER", http.StatusForbidden, "teacher is not assigned to this class")
	ErrNotStudentParent  = New("NOT_STUDENT_PARENT", http.StatusForbidden, "actor is not the student's parent")
	ErrAuthzTargetAbsent = New("STUDENT_NOT_FOUND", http.StatusForbidden, "student referenced by the operation does not exist")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
