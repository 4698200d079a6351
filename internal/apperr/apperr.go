// Package apperr holds the error taxonomy shared by the catalog and the
// discovery pipeline. Entity-level errors (validation, not found, conflict)
// surface to callers; pipeline-level errors (malformed record, upstream
// unavailable) are logged where they happen and never fail a whole request.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrMalformedRecord     = errors.New("malformed record")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// FieldViolation names one field that failed a rule.
type FieldViolation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

type ValidationError struct {
	Entity string
	Fields []FieldViolation
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "invalid " + e.Entity + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError for a single field.
func Invalid(entity, field, rule, message string) *ValidationError {
	return &ValidationError{
		Entity: entity,
		Fields: []FieldViolation{{Field: field, Rule: rule, Message: message}},
	}
}

type NotFoundError struct {
	Entity string
	Key    any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.Key)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

func NotFound(entity string, key any) *NotFoundError {
	return &NotFoundError{Entity: entity, Key: key}
}

type ConflictError struct {
	Entity string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	return e.Entity + ": " + e.Reason
}

func (e *ConflictError) Unwrap() error        { return e.Err }
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// MalformedRecordError means one upstream record could not be adapted.
// It is isolated to that record.
type MalformedRecordError struct {
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	if e.Field == "" {
		return "malformed record: " + e.Reason
	}
	return "malformed record: " + e.Field + ": " + e.Reason
}

func (e *MalformedRecordError) Is(target error) bool { return target == ErrMalformedRecord }

// UpstreamUnavailableError means one page could not be fetched.
// It is isolated to that page.
type UpstreamUnavailableError struct {
	Source string
	Page   int
	Err    error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s page %d unavailable", e.Source, e.Page)
	}
	return fmt.Sprintf("%s page %d unavailable: %v", e.Source, e.Page, e.Err)
}

func (e *UpstreamUnavailableError) Unwrap() error        { return e.Err }
func (e *UpstreamUnavailableError) Is(target error) bool { return target == ErrUpstreamUnavailable }

// HTTPStatus maps an error onto the response status a handler should use.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrValidation), errors.Is(err, ErrMalformedRecord):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrUpstreamUnavailable):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
