package ember

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error so callers can branch on failure category
// without string matching.
type Kind int

const (
	KindInternal Kind = iota
	KindIo
	KindParse
	KindNotFound
	KindInvalidArgument
	KindInvalidInput
	KindInvalidState
	KindOutOfMemory
	KindUnsupportedQuery
)

func (k Kind) String() string {
	switch k {
	case KindIo:
		return "Io"
	case KindParse:
		return "Parse"
	case KindNotFound:
		return "NotFound"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindInvalidInput:
		return "InvalidInput"
	case KindInvalidState:
		return "InvalidState"
	case KindOutOfMemory:
		return "OutOfMemory"
	case KindUnsupportedQuery:
		return "UnsupportedQuery"
	default:
		return "Internal"
	}
}

// Error is the single error type returned across the engine's public
// surface. Context is free text describing what was being attempted;
// Cause, when present, is wrapped with a stack trace via pkg/errors so
// %+v formatting during development still shows where it originated.
type Error struct {
	Kind    Kind
	Context string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Context, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Context)
}

func (e *Error) Unwrap() error { return e.Cause }

// Wrap builds an *Error of the given kind, wrapping cause (if non-nil)
// with a stack trace.
func Wrap(kind Kind, context string, cause error) *Error {
	if cause != nil {
		cause = errors.WithStack(cause)
	}
	return &Error{Kind: kind, Context: context, Cause: cause}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// ContextOf returns the free-text context carried by err, if any.
func ContextOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Context
	}
	return ""
}
