package stash

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
)

// Kind classifies an Error.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindNotFound
	KindInvalidInput
	KindIsDirectory
	KindNotADirectory
	KindPermission
	KindTransient
	KindIO
	KindClock
	// KindBackend wraps vendor errors that have no dedicated kind.
	KindBackend
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindInvalidInput:
		return "invalid input"
	case KindIsDirectory:
		return "is a directory"
	case KindNotADirectory:
		return "not a directory"
	case KindPermission:
		return "permission denied"
	case KindTransient:
		return "transient"
	case KindIO:
		return "io"
	case KindClock:
		return "clock"
	case KindBackend:
		return "backend"
	default:
		return "unknown"
	}
}

var (
	// ErrInvalidPath is returned when a path cannot be resolved.
	ErrInvalidPath = errors.New("invalid path")
	// ErrIsDirectory is returned when file content is requested for a directory.
	ErrIsDirectory = errors.New("is a directory")
	// ErrNotADirectory is returned when a directory is expected but a file exists.
	ErrNotADirectory = errors.New("not a directory")
	// ErrPermission is returned when the backend denies access.
	ErrPermission = errors.New("permission denied")
	// ErrTransient marks timeouts, dispatch failures and 5xx responses.
	ErrTransient = errors.New("transient backend failure")
	// ErrClockSkew is returned for timestamps before the Unix epoch.
	ErrClockSkew = errors.New("clock went backwards")
	// ErrUnrecognized marks vendor errors without a dedicated kind.
	ErrUnrecognized = errors.New("unrecognized backend error")
)

// Error is the error type returned by every Service implementation.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type Error struct {
	Op      string
	Service string
	Path    string
	Kind    Kind
	Err     error
}

// NewError builds an Error. It returns nil when err is nil.
func NewError(service, op, path string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Service: service, Path: path, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	prefix := e.Service
	if e.Op != "" {
		prefix += " " + e.Op
	}
	if e.Path != "" {
		prefix += " " + e.Path
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", prefix, e.Kind)
	}
	return fmt.Sprintf("%s: %v", prefix, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels so callers can write errors.Is(err, stash.ErrIsDirectory).
func (e *Error) Is(target error) bool {
	switch target {
	case ErrInvalidPath:
		return e.Kind == KindInvalidInput
	case ErrIsDirectory:
		return e.Kind == KindIsDirectory
	case ErrNotADirectory:
		return e.Kind == KindNotADirectory
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrTransient:
		return e.Kind == KindTransient
	case ErrClockSkew:
		return e.Kind == KindClock
	case ErrUnrecognized:
		return e.Kind == KindBackend
	}
	return false
}

// KindOf classifies any error. Errors that are not *Error are inferred from
// well-known causes.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return KindNotFound
	case errors.Is(err, fs.ErrPermission), errors.Is(err, ErrPermission):
		return KindPermission
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, ErrTransient):
		return KindTransient
	case errors.Is(err, ErrInvalidPath), errors.Is(err, fs.ErrInvalid):
		return KindInvalidInput
	case errors.Is(err, ErrIsDirectory):
		return KindIsDirectory
	case errors.Is(err, ErrNotADirectory):
		return KindNotADirectory
	case errors.Is(err, ErrClockSkew):
		return KindClock
	}
	return KindUnknown
}

// IsKind reports whether err is classified as k.
func IsKind(err error, k Kind) bool {
	return err != nil && KindOf(err) == k
}
