package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/shelftrack/internal/tag"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeInvalidEvent indicates malformed input: missing key or reader
	// identity, or an unrecognized reader kind or status.
	CodeInvalidEvent ErrorCode = "INVALID_EVENT"

	// CodeUnknownReader indicates the reader identity is absent from the
	// registry. A foreign or misconfigured device must never corrupt state,
	// so this rejection happens before any mutation.
	CodeUnknownReader ErrorCode = "UNKNOWN_READER"

	// CodeUnregisteredReader indicates the reader is registered, but not
	// with the kind the event claims (a shelf event naming a return
	// station's identity, or vice versa).
	CodeUnregisteredReader ErrorCode = "UNREGISTERED_READER"

	// CodePersistenceFailure indicates the item record store was
	// unavailable or timed out. Never retried internally - retry policy
	// belongs to the caller.
	CodePersistenceFailure ErrorCode = "PERSISTENCE_FAILURE"

	// CodeConflict indicates a duplicate registration (reader identity or
	// item key already present).
	CodeConflict ErrorCode = "CONFLICT"

	// CodeNotFound indicates the named reader does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"
)

// Error is a structured engine error with the fields callers need to map it
// onto a transport response or a log line.
type Error struct {
	Code           ErrorCode
	Message        string
	Key            tag.Key
	ReaderIdentity string
	Err            error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Key != "" && e.ReaderIdentity != "":
		return fmt.Sprintf("%s: %s (key=%s, reader=%s)", e.Code, e.Message, e.Key, e.ReaderIdentity)
	case e.ReaderIdentity != "":
		return fmt.Sprintf("%s: %s (reader=%s)", e.Code, e.Message, e.ReaderIdentity)
	case e.Key != "":
		return fmt.Sprintf("%s: %s (key=%s)", e.Code, e.Message, e.Key)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause (set for persistence failures).
func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf extracts the engine error code from an error chain.
// Returns "" when the error is not an engine.Error.
func CodeOf(err error) ErrorCode {
	var ee *Error
	if errors.As(err, &ee) {
		return ee.Code
	}
	return ""
}

// IsInvalidEvent reports whether err is an INVALID_EVENT rejection.
func IsInvalidEvent(err error) bool { return CodeOf(err) == CodeInvalidEvent }

// IsUnknownReader reports whether err is an UNKNOWN_READER rejection.
func IsUnknownReader(err error) bool { return CodeOf(err) == CodeUnknownReader }

// IsUnregisteredReader reports whether err is an UNREGISTERED_READER rejection.
func IsUnregisteredReader(err error) bool { return CodeOf(err) == CodeUnregisteredReader }

// IsPersistenceFailure reports whether err is a PERSISTENCE_FAILURE.
func IsPersistenceFailure(err error) bool { return CodeOf(err) == CodePersistenceFailure }

// IsConflict reports whether err is a CONFLICT.
func IsConflict(err error) bool { return CodeOf(err) == CodeConflict }

// IsNotFound reports whether err is a NOT_FOUND.
func IsNotFound(err error) bool { return CodeOf(err) == CodeNotFound }

func invalidEvent(message string) *Error {
	return &Error{Code: CodeInvalidEvent, Message: message}
}

func unknownReader(identity string) *Error {
	return &Error{
		Code:           CodeUnknownReader,
		Message:        "reader identity not registered",
		ReaderIdentity: identity,
	}
}

func unregisteredReader(identity string, claimed, registered tag.ReaderKind) *Error {
	return &Error{
		Code:           CodeUnregisteredReader,
		Message:        fmt.Sprintf("reader registered as %s, event claims %s", registered, claimed),
		ReaderIdentity: identity,
	}
}

func persistenceFailure(key tag.Key, op string, err error) *Error {
	return &Error{
		Code:    CodePersistenceFailure,
		Message: op,
		Key:     key,
		Err:     err,
	}
}
