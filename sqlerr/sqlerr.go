// Package sqlerr defines the errors which are delivered to clients in place
// of a result. Every error carries a short |Debug| string, suitable for
// matching by clients, and a longer human-readable |Description|.
package sqlerr

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies an Error.
type Kind int

const (
	// Argument errors are raised by malformed client input, before any
	// command reaches an instance.
	Argument Kind = iota
	// Cache errors are raised by the prepared statement cache.
	Cache
	// Engine errors are raised by the embedded SQL engine: prepare, bind,
	// step, or backup failures.
	Engine
	// Timeout errors indicate a deadline passed before a command completed.
	// They're distinct from Engine errors so that callers may retry safely.
	Timeout
	// IO errors are raised while reading or writing persisted state.
	IO
)

func (k Kind) String() string {
	switch k {
	case Argument:
		return "ArgumentError"
	case Cache:
		return "CacheError"
	case Engine:
		return "EngineError"
	case Timeout:
		return "TimeoutError"
	case IO:
		return "IOError"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// CacheReason further classifies errors of Kind Cache.
type CacheReason int

const (
	// NotCacheError is the CacheReason of non-Cache errors.
	NotCacheError CacheReason = iota
	// AlreadyExists is returned when inserting an identifier which is present.
	AlreadyExists
	// NotFound is returned when an identifier is absent.
	NotFound
	// NotReadOnly is returned when a read-only query is attempted with a
	// statement which may modify the database.
	NotReadOnly
)

// Error is the client-visible error type.
type Error struct {
	Kind        Kind
	Reason      CacheReason
	Debug       string
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Debug
	}
	return e.Debug + " - " + e.Description
}

// New returns an Error of the Kind.
func New(kind Kind, debug, description string) *Error {
	return &Error{Kind: kind, Debug: debug, Description: description}
}

// Argumentf returns an Argument Error with a formatted debug string.
func Argumentf(format string, args ...interface{}) *Error {
	return &Error{Kind: Argument, Debug: fmt.Sprintf(format, args...)}
}

// NewTimeout returns a Timeout Error.
func NewTimeout() *Error {
	return &Error{
		Kind:        Timeout,
		Debug:       "Timeout",
		Description: "The command was not completed before its deadline",
	}
}

// NewIO returns an IO Error wrapping |err|.
func NewIO(err error, description string) *Error {
	return &Error{Kind: IO, Debug: err.Error(), Description: description}
}

// ErrStatementExists is returned on insertion of a present identifier.
var ErrStatementExists = &Error{
	Kind:        Cache,
	Reason:      AlreadyExists,
	Debug:       "Statement already present",
	Description: "The statement is already present in the database, try with UPDATE_STATEMENT",
}

// ErrStatementNotFound is returned when executing an absent identifier.
var ErrStatementNotFound = &Error{
	Kind:        Cache,
	Reason:      NotFound,
	Debug:       "No statement found",
	Description: "The statement is not present in the database",
}

// ErrNotReadOnly is returned when a mutating statement is used as a query.
var ErrNotReadOnly = &Error{
	Kind:        Cache,
	Reason:      NotReadOnly,
	Debug:       "Not read only statement",
	Description: "Statement is not read only but it may modify the database, use `EXEC_STATEMENT` instead.",
}

// StatementNotPresent returns the NotFound Error of an update or delete
// of an absent identifier. |action| is "update" or "delete".
func StatementNotPresent(action string) *Error {
	return &Error{
		Kind:        Cache,
		Reason:      NotFound,
		Debug:       "Statement not present.",
		Description: "The statement is not present in the database, impossible to " + action + " it.",
	}
}

// As returns the *Error underlying |err|, if there is one.
func As(err error) (*Error, bool) {
	var e, ok = errors.Cause(err).(*Error)
	return e, ok
}

// KindOf returns the Kind of |err|. Errors which are not of this package
// are classified as Engine errors.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return Engine
}

// IsTimeout returns whether |err| is a Timeout Error.
func IsTimeout(err error) bool { return err != nil && KindOf(err) == Timeout }

// ReasonOf returns the CacheReason of |err|.
func ReasonOf(err error) CacheReason {
	if e, ok := As(err); ok {
		return e.Reason
	}
	return NotCacheError
}
