// Package mcxerr defines the error taxonomy shared by the preparation stages.
// Every error carries a numeric code and the source location that raised it,
// so a driver can report it the same way regardless of where it came from.
package mcxerr

import (
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
)

// Kind classifies an error by the condition that caused it
type Kind int

const (
	// IOError is a file that cannot be opened, created or fully written
	IOError Kind = iota + 1

	// FormatError is on-disk data that disagrees with its declared shape,
	// or a malformed text input field
	FormatError

	// DomainError is a geometric condition that makes the setup unusable,
	// such as a source outside the grid
	DomainError

	// ConfigError is an inconsistent combination of settings
	ConfigError
)

func (k Kind) String() string {
	switch k {
	case IOError:
		return "IOError"
	case FormatError:
		return "FormatError"
	case DomainError:
		return "DomainError"
	case ConfigError:
		return "ConfigError"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Error codes reported to the user and used as the process exit status.
const (
	CodeIncompleteInput = -1
	CodeSaveData        = -2
	CodeInputFile       = -2
	CodeSourceDomain    = -4
	CodeNoVolume        = -4
	CodeVolumeMissing   = -5
	CodeVolumeSize      = -6
	CodeLayout          = -7
	CodeTimeGate        = -9
	CodeMaskFile        = -10
)

// Error is a classified failure with its origin
type Error struct {
	Kind Kind
	Code int
	Msg  string
	File string
	Line int
	Err  error
}

func (e *Error) Error() string {
	s := fmt.Sprintf("MCX ERROR(%d):%s in unit %s:%d", e.Code, e.Msg, e.File, e.Line)
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New returns an error of the given kind located at the caller
func New(kind Kind, code int, msg string) *Error {
	return newAt(2, kind, code, msg, nil)
}

// Newf is New with a formatted message
func Newf(kind Kind, code int, format string, args ...interface{}) *Error {
	return newAt(2, kind, code, fmt.Sprintf(format, args...), nil)
}

// Wrap returns an error of the given kind that keeps err as its cause
func Wrap(err error, kind Kind, code int, msg string) *Error {
	return newAt(2, kind, code, msg, err)
}

func newAt(skip int, kind Kind, code int, msg string, err error) *Error {
	e := &Error{Kind: kind, Code: code, Msg: msg, Err: err}
	if _, file, line, ok := runtime.Caller(skip); ok {
		e.File = filepath.Base(file)
		e.Line = line
	}
	return e
}

// KindOf returns the kind of the first *Error in err's chain, or 0
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

// CodeOf returns the code of the first *Error in err's chain. Errors outside
// the taxonomy report -1.
func CodeOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return -1
}
