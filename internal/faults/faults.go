// Package faults classifies every failure the workflow can encounter into a
// small closed taxonomy. All network-origin errors are converted at the
// client boundary; callers only ever see one of these classes and a message
// fit for display.
package faults

import (
	"errors"
	"fmt"
	"strings"
)

// Class is the failure taxonomy.
type Class int

const (
	// ClassUnknown is an unclassified internal failure.
	ClassUnknown Class = iota
	// ClassNotFound means the target entity no longer exists. Recovered
	// locally; informational, not alarming.
	ClassNotFound
	// ClassInvalid is a client-side precondition failure that never reaches
	// the network (missing comment, wrong state).
	ClassInvalid
	// ClassUnauthorized is a client-side permission failure (wrong actor).
	ClassUnauthorized
	// ClassConflict means the backend refused the mutation over a
	// referential constraint. Surfaced verbatim, never retried.
	ClassConflict
	// ClassTransient is a server failure without a not-found signature.
	// The user may retry manually; nothing retries automatically.
	ClassTransient
	// ClassInconsistency is a dangling or missing reference found during
	// reconciliation. Handled silently, never user-facing.
	ClassInconsistency
)

// String returns the class name for log fields.
func (c Class) String() string {
	switch c {
	case ClassNotFound:
		return "not_found"
	case ClassInvalid:
		return "invalid"
	case ClassUnauthorized:
		return "unauthorized"
	case ClassConflict:
		return "conflict"
	case ClassTransient:
		return "transient"
	case ClassInconsistency:
		return "inconsistency"
	}
	return "unknown"
}

// Error is a classified workflow error.
type Error struct {
	Class   Class
	Message string
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

// Unwrap exposes the cause for errors.Is / errors.As chains.
func (e *Error) Unwrap() error { return e.cause }

// New creates a classified error.
func New(class Class, message string) *Error {
	return &Error{Class: class, Message: message}
}

// Newf creates a classified error with a formatted message.
func Newf(class Class, format string, args ...any) *Error {
	return &Error{Class: class, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a class and message to an underlying error.
func Wrap(err error, class Class, message string) *Error {
	return &Error{Class: class, Message: message, cause: err}
}

// NotFound creates a not-found error for a resource instance.
func NotFound(resource string, id int64) *Error {
	return Newf(ClassNotFound, "%s %d not found", resource, id)
}

// Invalid creates a local precondition failure for a named field.
func Invalid(field, reason string) *Error {
	return Newf(ClassInvalid, "%s: %s", field, reason)
}

// Conflict creates a backend-refusal error carrying the backend's message.
func Conflict(message string) *Error {
	return New(ClassConflict, message)
}

// Unauthorized creates a local permission failure.
func Unauthorized(message string) *Error {
	return New(ClassUnauthorized, message)
}

// ClassOf returns the class of err, or ClassUnknown for foreign errors.
func ClassOf(err error) Class {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Class
	}
	return ClassUnknown
}

// IsNotFound reports whether err is classified as not-found.
func IsNotFound(err error) bool { return ClassOf(err) == ClassNotFound }

// IsLocal reports whether err was produced before any network call.
func IsLocal(err error) bool {
	switch ClassOf(err) {
	case ClassInvalid, ClassUnauthorized:
		return true
	}
	return false
}

// MessageOf returns a user-displayable message for err, falling back to the
// given default when err carries no classified message.
func MessageOf(err error, fallback string) string {
	var fe *Error
	if errors.As(err, &fe) && fe.Message != "" {
		return fe.Message
	}
	return fallback
}

// notFoundHints are backend message fragments that signal an inability to
// locate the target entity even when the HTTP status says otherwise. The
// legacy backend is French-speaking, hence the mixed vocabulary.
var notFoundHints = []string{
	"not found",
	"no entity",
	"does not exist",
	"unable to find",
	"introuvable",
	"n'existe",
	"aucune entite",
	"aucune entité",
}

// LooksMissing reports whether a backend-supplied message signals a missing
// entity.
func LooksMissing(message string) bool {
	m := strings.ToLower(message)
	for _, hint := range notFoundHints {
		if strings.Contains(m, hint) {
			return true
		}
	}
	return false
}

// FromHTTP converts an HTTP error response into a classified error. The
// message should be the backend-supplied detail when present; it is carried
// through so the user never sees a bare status code.
func FromHTTP(status int, message string) *Error {
	if message == "" {
		message = fmt.Sprintf("backend request failed (HTTP %d)", status)
	}
	switch {
	case status == 404 || status == 410:
		return New(ClassNotFound, message)
	case status == 409:
		return New(ClassConflict, message)
	case status == 400 || status == 422:
		return New(ClassInvalid, message)
	case status == 401 || status == 403:
		return New(ClassUnauthorized, message)
	case status >= 500:
		// Some backend errors are 500s with a "cannot locate" message in
		// the body; those are recoverable not-found situations.
		if LooksMissing(message) {
			return New(ClassNotFound, message)
		}
		return New(ClassTransient, message)
	}
	return New(ClassUnknown, message)
}
