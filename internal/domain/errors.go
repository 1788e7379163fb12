package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode categorizes failures returned across the consistency core.
type ErrorCode string

const (
	// CodeNotFound indicates a record does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeConflict indicates a unique-constraint violation on write, or a
	// merge that still has unresolved field conflicts.
	CodeConflict ErrorCode = "CONFLICT"

	// CodeBusinessRule indicates a domain invariant would be broken.
	CodeBusinessRule ErrorCode = "BUSINESS_RULE_VIOLATION"

	// CodeStructural indicates a dangling reference detected after a merge.
	CodeStructural ErrorCode = "STRUCTURAL_VALIDATION"

	// CodeApplication is a generic service-level failure such as storage I/O.
	CodeApplication ErrorCode = "APPLICATION_FAILURE"
)

// Error is the typed failure returned to services.
//
// Repositories never surface raw driver errors: they are wrapped in an Error
// with CodeApplication and remain reachable through Unwrap.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// EntityType and ID identify the affected record, when there is one.
	EntityType EntityType
	ID         string

	// Details carries field-level context (field name -> message, or
	// reference -> missing ID for structural errors).
	Details map[string]string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)
	if e.EntityType != "" && e.ID != "" {
		fmt.Fprintf(&b, " (%s %s)", e.EntityType, e.ID)
	}
	if len(e.Details) > 0 {
		keys := make([]string, 0, len(e.Details))
		for k := range e.Details {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, k+": "+e.Details[k])
		}
		b.WriteString(" [")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString("]")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NotFound creates an Error for a missing record.
func NotFound(entity EntityType, id string) *Error {
	return &Error{
		Code:       CodeNotFound,
		Message:    "record not found",
		EntityType: entity,
		ID:         id,
	}
}

// Conflict creates an Error for a unique-constraint violation.
func Conflict(entity EntityType, id string, err error) *Error {
	return &Error{
		Code:       CodeConflict,
		Message:    "record conflicts with an existing record",
		EntityType: entity,
		ID:         id,
		Err:        err,
	}
}

// BusinessRule creates an Error for a broken domain invariant.
func BusinessRule(entity EntityType, id, message string, details map[string]string) *Error {
	return &Error{
		Code:       CodeBusinessRule,
		Message:    message,
		EntityType: entity,
		ID:         id,
		Details:    details,
	}
}

// Structural creates an Error for dangling references. details maps a
// reference description to the missing ID.
func Structural(message string, details map[string]string) *Error {
	return &Error{
		Code:    CodeStructural,
		Message: message,
		Details: details,
	}
}

// ApplicationFailure wraps an unexpected failure, typically storage I/O.
func ApplicationFailure(op string, err error) *Error {
	return &Error{
		Code:    CodeApplication,
		Message: op,
		Err:     err,
	}
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) ErrorCode {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsNotFound reports whether err is a NotFound error.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

// IsConflict reports whether err is a Conflict error.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsBusinessRule reports whether err is a BusinessRuleViolation error.
func IsBusinessRule(err error) bool { return CodeOf(err) == CodeBusinessRule }

// IsStructural reports whether err is a StructuralValidation error.
func IsStructural(err error) bool { return CodeOf(err) == CodeStructural }

// IsApplicationFailure reports whether err is an ApplicationFailure error.
func IsApplicationFailure(err error) bool { return CodeOf(err) == CodeApplication }
