package entity

import (
	"errors"
	"fmt"
)

// Kind classifies pipeline failures into the six-way taxonomy of spec §4.C
// operation "error taxonomy", so a transport layer can map each to an HTTP
// status without inspecting error strings.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindPermissionDenied
	KindNotFound
	KindConflict
	KindPreconditionFailed
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation_error"
	case KindPermissionDenied:
		return "permission_denied"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindPreconditionFailed:
		return "precondition_failed"
	default:
		return "internal"
	}
}

// Error is the pipeline's single error type. Field, when set, names the
// struct field a ValidationError applies to.
type Error struct {
	Kind    Kind
	Op      string
	Field   string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s: %s", e.Op, e.Kind, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

func newErr(op string, kind Kind, message string) *Error {
	return &Error{Op: op, Kind: kind, Message: message}
}

// NotFound builds a KindNotFound error (spec §4.B rule b and the six-way taxonomy).
func NotFound(op, message string) *Error { return newErr(op, KindNotFound, message) }

// PermissionDenied builds a KindPermissionDenied error.
func PermissionDenied(op, message string) *Error { return newErr(op, KindPermissionDenied, message) }

// Conflict builds a KindConflict error (unique constraint, duplicate key).
func Conflict(op, message string) *Error { return newErr(op, KindConflict, message) }

// PreconditionFailed builds a KindPreconditionFailed error (optimistic
// concurrency, stale UpdatedAt token).
func PreconditionFailed(op, message string) *Error { return newErr(op, KindPreconditionFailed, message) }

// Internal wraps an unexpected lower-layer error.
func Internal(op string, err error) *Error {
	return &Error{Op: op, Kind: KindInternal, Message: "internal error", Err: err}
}

// ValidationErrors aggregates one or more per-field validation failures.
type ValidationErrors struct {
	Op     string
	Fields map[string]string
}

func (e *ValidationErrors) Error() string {
	return fmt.Sprintf("%s: %s: %d field(s) invalid", e.Op, KindValidation, len(e.Fields))
}

// AsError converts e into an *Error of KindValidation so callers can
// type-switch uniformly against *Error.
func (e *ValidationErrors) AsError() *Error {
	return &Error{Op: e.Op, Kind: KindValidation, Message: e.Error()}
}

// KindOf extracts the Kind of err, defaulting to KindInternal for errors the
// pipeline did not originate.
func KindOf(err error) Kind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	var ve *ValidationErrors
	if errors.As(err, &ve) {
		return KindValidation
	}
	return KindInternal
}
