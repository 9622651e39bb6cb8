package errors

import "fmt"

// ErrorCode represents a varloom error code.
type ErrorCode string

const (
	ErrInvalidRequest ErrorCode = "INVALID_REQUEST" // 400
	ErrNotFound       ErrorCode = "NOT_FOUND"       // 404
	ErrNameExists     ErrorCode = "NAME_EXISTS"     // 409
	ErrBadDocument    ErrorCode = "BAD_DOCUMENT"    // 422 (unreadable or unsupported stored document)
	ErrCancelled      ErrorCode = "CANCELLED"       // 499
	ErrInternal       ErrorCode = "INTERNAL"        // 500
	ErrStorage        ErrorCode = "STORAGE"         // 502 (backend read/write failure)
)

// Error is a structured error with code, status, and details.
type Error struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *Error {
	return &Error{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing variable, suite, or value.
func NewNotFound(kind, identifier string) *Error {
	return &Error{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("%s not found: %s", kind, identifier),
		Details: map[string]any{"kind": kind, "identifier": identifier},
	}
}

// NewNameExists creates a 409 error for variable name collisions.
func NewNameExists(name string) *Error {
	return &Error{
		Code:    ErrNameExists,
		Status:  409,
		Message: fmt.Sprintf("variable named %q already exists", name),
		Details: map[string]any{"name": name},
	}
}

// NewBadDocument creates a 422 error for a stored document that cannot be
// read: malformed JSON or a schema version this build does not understand.
func NewBadDocument(key, reason string) *Error {
	return &Error{
		Code:    ErrBadDocument,
		Status:  422,
		Message: fmt.Sprintf("document %q unreadable: %s", key, reason),
		Details: map[string]any{"key": key, "reason": reason},
	}
}

// NewCancelled creates a 499 error for a cancelled operation.
func NewCancelled(op string) *Error {
	return &Error{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("operation cancelled: %s", op),
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *Error {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &Error{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// NewStorage creates a 502 error for a persistence-backend transport failure.
// These are the only errors orchestration is expected to catch and retry;
// data-shape problems (missing tags, unknown macros) degrade silently instead.
func NewStorage(op string, err error) *Error {
	msg := op
	if err != nil {
		msg = fmt.Sprintf("%s: %v", op, err)
	}
	return &Error{
		Code:    ErrStorage,
		Status:  502,
		Message: msg,
	}
}

// Is checks if an error is a varloom Error with the given code.
func Is(err error, code ErrorCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}
