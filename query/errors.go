package query

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors - use with errors.Is() for matching
var (
	// ErrValidation is returned when a request is outside of the accepted contract
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned when a strict lookup does not match any record
	ErrNotFound = errors.New("record not found")

	// ErrInvalidFieldName is returned when a field name cannot address a document field
	ErrInvalidFieldName = errors.New("invalid field name")

	// ErrFieldNotAllowed is returned when a field is not in the AllowedFields whitelist
	ErrFieldNotAllowed = errors.New("field not allowed")

	// ErrInvalidQuery is returned when the query structure is invalid
	ErrInvalidQuery = errors.New("invalid query")

	// ErrInvalidCursor is returned when a cursor string cannot be decoded
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrExecutionFailed is returned when query execution fails at database level
	ErrExecutionFailed = errors.New("query execution failed")
)

// FieldError wraps an error with field name information
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("field '%s': %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// NewFieldError creates a new FieldError
func NewFieldError(field string, err error) error {
	return &FieldError{
		Field: field,
		Err:   err,
	}
}

// InvalidFieldNameError creates an error for invalid field names
func InvalidFieldNameError(field string) error {
	return NewFieldError(field, ErrInvalidFieldName)
}

// FieldNotAllowedError creates an error for fields not in AllowedFields
func FieldNotAllowedError(field string) error {
	return NewFieldError(field, ErrFieldNotAllowed)
}

// ValidationError reports a request parameter outside of the accepted contract.
// It is always raised before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%v: %s", ErrValidation, e.Reason)
	}
	return fmt.Sprintf("%v: '%s' %s", ErrValidation, e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// DecodeError reports a malformed cursor.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%v: %v", ErrInvalidCursor, e.Err)
}

func (e *DecodeError) Unwrap() []error {
	return []error{ErrInvalidCursor, e.Err}
}

// NewDecodeError creates a new DecodeError
func NewDecodeError(err error) error {
	return &DecodeError{Err: err}
}

// NotFoundError reports a missing record for a strict lookup.
type NotFoundError struct {
	Name string
	Key  string
}

func (e *NotFoundError) Error() string {
	name := e.Name
	if name == "" {
		name = "document"
	}
	return fmt.Sprintf("No %s record was found for %s", name, e.Key)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}

// NewNotFoundError creates a new NotFoundError
func NewNotFoundError(name, key string) error {
	return &NotFoundError{Name: name, Key: key}
}

// ExecutionError wraps a database execution error
type ExecutionError struct {
	Operation string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: %v", e.Operation, e.Err)
}

func (e *ExecutionError) Unwrap() []error {
	return []error{ErrExecutionFailed, e.Err}
}

// NewExecutionError creates a new ExecutionError
func NewExecutionError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return &ExecutionError{
		Operation: operation,
		Err:       err,
	}
}

// StatusCode classifies err into an HTTP-equivalent status for outer API layers.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrInvalidCursor),
		errors.Is(err, ErrInvalidQuery),
		errors.Is(err, ErrInvalidFieldName),
		errors.Is(err, ErrFieldNotAllowed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
