// Package errors provides the engine's structured error taxonomy.
//
// Only validation-class errors are meant to reach callers; upstream
// generation and side-effect failures are degraded inside the engine and
// carry their own codes so logs stay searchable.
package errors

// Code is a machine-readable error code.
type Code string

const (
	CodeUnknown Code = "UNKNOWN"

	// Validation class: surfaced to the caller, no state mutated.
	CodeValidation         Code = "VALIDATION"
	CodeNotFound           Code = "NOT_FOUND"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
	CodeGenerationInFlight Code = "GENERATION_IN_FLIGHT"

	// Degraded inside the engine.
	CodeUpstreamGeneration Code = "UPSTREAM_GENERATION"
	CodeSideEffect         Code = "SIDE_EFFECT"
)

// IsValidationClass reports whether errors with this code are returned to
// the immediate caller.
func (c Code) IsValidationClass() bool {
	switch c {
	case CodeValidation, CodeNotFound, CodeInvalidTransition, CodeGenerationInFlight:
		return true
	default:
		return false
	}
}

// Error is the domain error type with structured metadata.
type Error struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

func WithMetadata(code Code, message string, metadata map[string]string) *Error {
	return &Error{Code: code, Message: message, Metadata: metadata}
}

func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf walks the error chain and returns the first domain code found.
func CodeOf(err error) Code {
	for err != nil {
		if e, ok := err.(*Error); ok {
			return e.Code
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return CodeUnknown
		}
		err = u.Unwrap()
	}
	return CodeUnknown
}

// IsValidation reports whether err belongs to the validation class.
func IsValidation(err error) bool {
	return CodeOf(err).IsValidationClass()
}

// IsNotFound reports whether err carries CodeNotFound.
func IsNotFound(err error) bool {
	return CodeOf(err) == CodeNotFound
}

// NotFound builds a NOT_FOUND error naming the missing entity.
func NotFound(kind, id string) *Error {
	return WithMetadata(CodeNotFound, kind+" not found: "+id, map[string]string{
		"kind": kind,
		"id":   id,
	})
}

// Validation builds a VALIDATION error.
func Validation(message string) *Error {
	return New(CodeValidation, message)
}
