// Package fault classifies I/O and process failures into a small closed set
// of kinds so callers can report a tailored message for each one.
package fault

import (
	"errors"
	"io/fs"
	"os"
	"syscall"
)

// Kind is the category of a failure.
type Kind int

const (
	Unknown     Kind = iota // anything not listed below; always fatal
	NotFound                // file or directory missing
	Path                    // path malformed or too long
	IO                      // device, busy, read-only, concurrent access
	Permission              // unauthorized access
	Unsupported             // invalid path format or argument
)

func (k Kind) String() string {
	switch k {
	case NotFound:
		return "not_found"
	case Path:
		return "path"
	case IO:
		return "io"
	case Permission:
		return "permission"
	case Unsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Sentinels usable with errors.Is against an *Error.
var (
	ErrNotFound    = &Error{Kind: NotFound}
	ErrPath        = &Error{Kind: Path}
	ErrIO          = &Error{Kind: IO}
	ErrPermission  = &Error{Kind: Permission}
	ErrUnsupported = &Error{Kind: Unsupported}
	ErrUnknown     = &Error{Kind: Unknown}
)

// Error carries the failed operation, its kind and the underlying cause.
type Error struct {
	Op     string
	Kind   Kind
	Path   string
	Detail string // human-readable message shown to the operator
	Err    error
}

func (e *Error) Error() string {
	s := e.Op
	if e.Path != "" {
		s += " " + e.Path
	}
	if s != "" {
		s += ": "
	}
	s += e.Kind.String()
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches another *Error by kind so the package sentinels work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Path == "" && t.Err == nil && t.Kind == e.Kind
}

// Fatal reports whether the caller has no informed way to recover.
func (e *Error) Fatal() bool { return e.Kind == Unknown }

// New wraps err with op and path, classifying it.
func New(op, path string, err error) *Error {
	return &Error{Op: op, Kind: Classify(err), Path: path, Err: err}
}

// KindOf returns the kind of err. Errors that are not an *Error are classified.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return Classify(err)
}

// IsFatal reports whether err must be propagated after it was reported.
// nil is never fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	return KindOf(err) == Unknown
}

// Classify maps an error to its kind. Order matters: ENAMETOOLONG is also a
// *PathError and must win over the generic IO bucket.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return Unknown
	case errors.Is(err, syscall.ENAMETOOLONG):
		return Path
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		return NotFound
	case errors.Is(err, fs.ErrPermission):
		return Permission
	case errors.Is(err, fs.ErrInvalid), errors.Is(err, syscall.EINVAL):
		return Unsupported
	}
	var (
		pe *fs.PathError
		le *os.LinkError
		se *os.SyscallError
		en syscall.Errno
	)
	switch {
	case errors.As(err, &pe), errors.As(err, &le), errors.As(err, &se), errors.As(err, &en):
		return IO
	}
	return Unknown
}
