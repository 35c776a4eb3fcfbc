// Package dberr defines the error kinds surfaced by the core and the
// recoverable/fatal policy described in the error handling design.
package dberr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an error so callers can decide whether to continue the
// REPL loop or abort the process.
type Kind int

const (
	// Recoverable: caused by user input, safe to report and continue.
	PrepareSyntaxError Kind = iota
	NegativeId
	StringTooLong
	UnrecognizedStatement
	ExecuteDuplicateKey
	ExecuteKeyNotFound
	ExecuteTableFull
	TransactionAlreadyActive
	NoActiveTransaction

	// Fatal: indicates a broken invariant or failing I/O; aborts the process.
	CorruptFile
	ShortWrite
	PageOOB
	InvalidPageAccess
	AllocFail
)

func (k Kind) String() string {
	switch k {
	case PrepareSyntaxError:
		return "PrepareSyntaxError"
	case NegativeId:
		return "NegativeId"
	case StringTooLong:
		return "StringTooLong"
	case UnrecognizedStatement:
		return "UnrecognizedStatement"
	case ExecuteDuplicateKey:
		return "ExecuteDuplicateKey"
	case ExecuteKeyNotFound:
		return "ExecuteKeyNotFound"
	case ExecuteTableFull:
		return "ExecuteTableFull"
	case TransactionAlreadyActive:
		return "TransactionAlreadyActive"
	case NoActiveTransaction:
		return "NoActiveTransaction"
	case CorruptFile:
		return "CorruptFile"
	case ShortWrite:
		return "ShortWrite"
	case PageOOB:
		return "PageOOB"
	case InvalidPageAccess:
		return "InvalidPageAccess"
	case AllocFail:
		return "AllocFail"
	default:
		return "Unknown"
	}
}

// Fatal reports whether errors of this kind should abort the process
// rather than be surfaced to the REPL and continued past.
func (k Kind) Fatal() bool {
	switch k {
	case CorruptFile, ShortWrite, PageOOB, InvalidPageAccess, AllocFail:
		return true
	default:
		return false
	}
}

// Error wraps a Kind with context, using github.com/pkg/errors so fatal
// paths can print a stack trace at the point of origin.
type Error struct {
	Kind Kind
	Err  error
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %v", e.Kind, e.Err) }
func (e *Error) Unwrap() error { return e.Err }
func (e *Error) Cause() error  { return e.Err }

// New builds a Kind-tagged error with a stack trace attached at the call site.
func New(kind Kind, format string, args ...interface{}) error {
	return &Error{Kind: kind, Err: errors.Errorf(format, args...)}
}

// Wrap attaches a Kind, msg, and a stack trace recorded at the call site
// to an existing error.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: errors.Wrap(err, msg)}
}

// KindOf extracts the Kind from err, if any, returning ok=false for plain errors.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// Is reports whether err was tagged with the given Kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
