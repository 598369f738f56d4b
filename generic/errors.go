/*
errors.go - Centralized error types for the calculation engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Sentinel errors name what went wrong; Error carries a code that the API
  layer maps to an HTTP status and a user-safe message.

ERROR CATEGORIES:
  1. VALIDATION_FAILED - malformed period, date, override or span.
     Rejected before any store access, carries a field-level detail map.
  2. NOT_FOUND - the employee (or record) reference does not resolve.
  3. INTERNAL - store or collaborator failure. The detail is logged
     server-side; the caller sees a generic message.

USAGE:
  return generic.Invalid("calculation.validate", "invalid period",
      map[string]string{"period": "must be YYYY-MM"})

  if generic.IsNotFound(err) { ... }

SEE ALSO:
  - payroll/calculator.go: produces these errors
  - api/handlers.go: maps codes to HTTP statuses
*/
package generic

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDate is returned when text is not DD/MM/YYYY or YYYY-MM-DD,
	// or names a day the calendar does not have.
	ErrInvalidDate = errors.New("invalid date")

	// ErrInvalidPeriod is returned when a period is malformed (end before
	// start, or a competence that is not YYYY-MM).
	ErrInvalidPeriod = errors.New("invalid period")

	// ErrInvalidSpan is returned when termination precedes admission.
	ErrInvalidSpan = errors.New("invalid employment span: termination before admission")

	// ErrEmployeeNotFound is returned when an employee reference does not resolve.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrRecordNotFound is returned when a calculation record does not exist.
	ErrRecordNotFound = errors.New("calculation not found")

	// ErrDuplicateFingerprint is returned by a conditional create when a
	// record with the same fingerprint already exists. Nothing was written.
	ErrDuplicateFingerprint = errors.New("calculation with this fingerprint already exists")

	// ErrStoreUnavailable is returned when the backing store cannot be reached.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// =============================================================================
// STRUCTURED ERROR - Code + operation + user-safe message
// =============================================================================

// Error codes. The API maps each one to an HTTP status.
const (
	CodeValidation      = "VALIDATION_FAILED"
	CodeNotFound        = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
	CodeConflict        = "CONFLICT"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeForbidden       = "FORBIDDEN"
	CodePaymentRequired = "PAYMENT_REQUIRED"
)

// Error is an application error with a machine-readable code.
type Error struct {
	Code    string
	Op      string            // where it happened, e.g. "calculation.create"; logged, not shown
	Message string            // safe to show to callers
	Fields  map[string]string // field-level validation details
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Invalid builds a VALIDATION_FAILED error.
func Invalid(op, message string, fields map[string]string) error {
	return &Error{Code: CodeValidation, Op: op, Message: message, Fields: fields}
}

// InvalidErr builds a VALIDATION_FAILED error that keeps the cause.
func InvalidErr(err error, op, field string) error {
	return &Error{
		Code:    CodeValidation,
		Op:      op,
		Message: "validation failed",
		Fields:  map[string]string{field: err.Error()},
		Err:     err,
	}
}

// NotFound builds a NOT_FOUND error.
func NotFound(err error, op, message string) error {
	return &Error{Code: CodeNotFound, Op: op, Message: message, Err: err}
}

// Internal wraps a collaborator failure. Returns nil if err is nil.
func Internal(err error, op string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: CodeInternal, Op: op, Message: "internal error", Err: err}
}

// Errorf creates a coded error with a formatted message.
func Errorf(code, op, format string, args ...any) error {
	return &Error{Code: code, Op: op, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// ErrorCode extracts the code. Errors that are not *Error are INTERNAL.
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// ErrorMessage returns a caller-safe message. Internal details are hidden.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) && e.Code != CodeInternal {
		return e.Message
	}
	return "An internal error occurred. Please try again later."
}

// ErrorFields returns the field-level validation details, if any.
func ErrorFields(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return ErrorCode(err) == CodeNotFound ||
		errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrRecordNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return ErrorCode(err) == CodeValidation ||
		errors.Is(err, ErrInvalidDate) ||
		errors.Is(err, ErrInvalidPeriod) ||
		errors.Is(err, ErrInvalidSpan)
}
