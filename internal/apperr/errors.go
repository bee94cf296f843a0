// Package apperr defines the typed failures the workflow core can return.
// Every kind is local and recoverable; none mutates state when raised.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies a domain failure for transport mapping.
type Kind string

const (
	// KindForbidden means the caller's role or relationship to the
	// complaint does not permit the operation.
	KindForbidden Kind = "forbidden"
	// KindInvalidState means the operation is not valid from the
	// complaint's current status.
	KindInvalidState Kind = "invalid_state"
	// KindMissingField means a required parameter is absent or malformed.
	KindMissingField Kind = "missing_field"
	// KindNotFound means a referenced complaint or user does not exist.
	KindNotFound Kind = "not_found"
	// KindConflict means a concurrent transition won the optimistic
	// version check; the caller should re-read and retry manually.
	KindConflict Kind = "conflict"
)

// Error carries a failure kind, the offending field where applicable, and a
// user-facing message.
type Error struct {
	Kind    Kind
	Field   string
	Message string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Forbidden builds a role/relationship check failure.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// InvalidState builds an operation-not-valid-from-status failure.
func InvalidState(msg string) *Error {
	return &Error{Kind: KindInvalidState, Message: msg}
}

// MissingField builds a required-parameter failure for the named field.
func MissingField(field, msg string) *Error {
	return &Error{Kind: KindMissingField, Field: field, Message: msg}
}

// NotFound builds a missing-entity failure.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict builds an optimistic-lock failure.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// KindOf extracts the kind from err, or "" when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// HTTPStatus maps a failure kind to the transport status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindForbidden:
		return http.StatusForbidden
	case KindInvalidState, KindMissingField:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
