// Package fault defines the named failure kinds a transaction can end with.
//
// Handlers return *Error values; callers classify them with the IsXxx
// helpers, which see through fmt.Errorf("%w") wrapping.
package fault

import (
	"errors"
	"fmt"
)

// Code categorizes a transaction failure.
type Code string

const (
	// CodeNotFound indicates a required key is absent.
	CodeNotFound Code = "NOT_FOUND"

	// CodeAlreadyExists indicates a key that must be absent is present.
	CodeAlreadyExists Code = "ALREADY_EXISTS"

	// CodeUnauthorized indicates a credential check failed.
	CodeUnauthorized Code = "UNAUTHORIZED"

	// CodeCorrupt indicates a stored value could not be decoded.
	CodeCorrupt Code = "CORRUPT"

	// CodeInvalidArgument indicates malformed or missing arguments.
	CodeInvalidArgument Code = "INVALID_ARGUMENT"

	// CodeUnknownFunction indicates the invoked function is not registered.
	CodeUnknownFunction Code = "UNKNOWN_FUNCTION"

	// CodeConflict indicates the read set went stale before commit.
	CodeConflict Code = "CONFLICT"
)

// Error is a classified transaction failure.
//
// Message is the text returned to the client verbatim; Err optionally
// carries the underlying cause.
type Error struct {
	Code    Code
	Message string
	Key     string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the code of the first *Error in err's chain, or "" if none.
func CodeOf(err error) Code {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ""
}

// KeyOf returns the key of the first *Error in err's chain, or "" if none.
func KeyOf(err error) string {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Key
	}
	return ""
}

func is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// IsNotFound reports whether err is a NOT_FOUND failure.
func IsNotFound(err error) bool { return is(err, CodeNotFound) }

// IsAlreadyExists reports whether err is an ALREADY_EXISTS failure.
func IsAlreadyExists(err error) bool { return is(err, CodeAlreadyExists) }

// IsUnauthorized reports whether err is an UNAUTHORIZED failure.
func IsUnauthorized(err error) bool { return is(err, CodeUnauthorized) }

// IsCorrupt reports whether err is a CORRUPT failure.
func IsCorrupt(err error) bool { return is(err, CodeCorrupt) }

// IsInvalidArgument reports whether err is an INVALID_ARGUMENT failure.
func IsInvalidArgument(err error) bool { return is(err, CodeInvalidArgument) }

// IsUnknownFunction reports whether err is an UNKNOWN_FUNCTION failure.
func IsUnknownFunction(err error) bool { return is(err, CodeUnknownFunction) }

// IsConflict reports whether err is a CONFLICT failure.
func IsConflict(err error) bool { return is(err, CodeConflict) }

// NotFound creates a NOT_FOUND failure for key.
func NotFound(key, message string) *Error {
	return &Error{Code: CodeNotFound, Message: message, Key: key}
}

// AlreadyExists creates an ALREADY_EXISTS failure for key.
func AlreadyExists(key, message string) *Error {
	return &Error{Code: CodeAlreadyExists, Message: message, Key: key}
}

// Unauthorized creates an UNAUTHORIZED failure for key.
func Unauthorized(key, message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message, Key: key}
}

// Corrupt creates a CORRUPT failure for key wrapping the decode error.
func Corrupt(key string, err error) *Error {
	return &Error{
		Code:    CodeCorrupt,
		Message: fmt.Sprintf("the stored value for %s is corrupt", key),
		Key:     key,
		Err:     err,
	}
}

// InvalidArgument creates an INVALID_ARGUMENT failure.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// UnknownFunction creates an UNKNOWN_FUNCTION failure.
func UnknownFunction(name string) *Error {
	return &Error{
		Code:    CodeUnknownFunction,
		Message: fmt.Sprintf("function %q is not defined", name),
	}
}

// Conflict creates a CONFLICT failure for a key whose version moved
// between read and commit.
func Conflict(key string, read, current uint64) *Error {
	return &Error{
		Code:    CodeConflict,
		Message: fmt.Sprintf("read conflict on %s: read version %d, current version %d", key, read, current),
		Key:     key,
	}
}
