package errors

import (
	stdErrors "errors"
	"fmt"
)

// Code classifies engine errors so callers can branch without string matching.
type Code string

const (
	// CodeValidation marks precondition violations in caller-supplied input.
	CodeValidation Code = "VALIDATION_ERROR"
	// CodeNotFound marks lookups against records that do not exist.
	CodeNotFound Code = "NOT_FOUND"
	// CodeConflict marks uniqueness collisions that survived retrying,
	// e.g. invoice number allocation races.
	CodeConflict Code = "CONFLICT"
	// CodeStateConflict marks disallowed state transitions, e.g. settling a
	// payment against a void or already-paid invoice.
	CodeStateConflict Code = "STATE_CONFLICT"
	// CodeInternal marks unexpected failures inside the engine.
	CodeInternal Code = "INTERNAL_ERROR"
	// CodeDependency marks failures in backing services (database, redis).
	CodeDependency Code = "DEPENDENCY_ERROR"
)

// Metadata describes retry semantics per code.
type Metadata struct {
	Retryable     bool
	PublicMessage string
}

var metadataByCode = map[Code]Metadata{
	CodeValidation:    {Retryable: false, PublicMessage: "validation failed"},
	CodeNotFound:      {Retryable: false, PublicMessage: "resource not found"},
	CodeConflict:      {Retryable: true, PublicMessage: "conflict detected"},
	CodeStateConflict: {Retryable: false, PublicMessage: "state transition disallowed"},
	CodeInternal:      {Retryable: true, PublicMessage: "internal error"},
	CodeDependency:    {Retryable: true, PublicMessage: "dependency unavailable"},
}

// MetadataFor returns the metadata for a code, defaulting to internal.
func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// Error is the coded error carried across the engine's boundaries.
type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// As unwraps err into a coded *Error, or nil when none is present.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code Code) bool {
	typed := As(err)
	return typed != nil && typed.Code() == code
}
