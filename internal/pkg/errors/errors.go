// Package errors provides custom error types and error handling utilities.
package errors

import (
	"errors"
	"fmt"
)

// Error codes.
const (
	// Trial-setup errors.
	CodeConfiguration = "CONFIGURATION_ERROR"
	CodeValidation    = "VALIDATION_ERROR"
	CodePrecondition  = "PRECONDITION_ERROR"

	// Metric-recording errors.
	CodeSink = "SINK_ERROR"

	// Infrastructure errors.
	CodeInternal    = "INTERNAL_ERROR"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
	CodeTimeout     = "TIMEOUT"
)

// AppError represents an application error with code and details.
type AppError struct {
	Code    string            `json:"code"`
	Message string            `json:"message"`
	Details map[string]string `json:"details,omitempty"`
	Err     error             `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ExitCode returns the process exit code for this error. Every failure is
// fatal for a single-shot trial worker; the codes only aid the search
// controller's log triage.
func (e *AppError) ExitCode() int {
	switch e.Code {
	case CodeConfiguration:
		return 2
	case CodeValidation:
		return 3
	case CodePrecondition:
		return 4
	case CodeSink:
		return 5
	default:
		return 1
	}
}

// New creates a new AppError.
func New(code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...))
}

// Wrap wraps an error with an AppError.
func Wrap(code, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// WithDetail adds a single detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Convenience constructors.

// ConfigurationError creates a configuration error.
func ConfigurationError(message string) *AppError {
	return New(CodeConfiguration, message)
}

// ValidationError creates a validation error.
func ValidationError(message string) *AppError {
	return New(CodeValidation, message)
}

// PreconditionError creates a precondition error.
func PreconditionError(message string) *AppError {
	return New(CodePrecondition, message)
}

// SinkError wraps a metric-recording failure, naming the offending sink.
func SinkError(sink string, err error) *AppError {
	return Wrap(CodeSink, fmt.Sprintf("sink %q failed to record", sink), err).
		WithDetail("sink", sink)
}

// TimeoutError creates a timeout error for a specific operation.
func TimeoutError(operation string) *AppError {
	message := "operation timed out"
	if operation != "" {
		message = fmt.Sprintf("%s timed out", operation)
	}
	return New(CodeTimeout, message)
}

// ServiceUnavailableError creates a service unavailable error.
func ServiceUnavailableError(service string) *AppError {
	message := "service unavailable"
	if service != "" {
		message = fmt.Sprintf("%s is unavailable", service)
	}
	return New(CodeUnavailable, message)
}

// CodeOf returns the error code of err, or CodeInternal for errors that are
// not AppErrors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode checks whether err carries the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// IsValidation checks if error is a validation error.
func IsValidation(err error) bool {
	return IsCode(err, CodeValidation)
}

// IsConfiguration checks if error is a configuration error.
func IsConfiguration(err error) bool {
	return IsCode(err, CodeConfiguration)
}

// IsPrecondition checks if error is a precondition error.
func IsPrecondition(err error) bool {
	return IsCode(err, CodePrecondition)
}

// ExitCodeOf returns the exit code for any error. Non-AppErrors exit 1.
func ExitCodeOf(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.ExitCode()
	}
	return 1
}
