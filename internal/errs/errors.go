// Package errs provides the unified error types used across pgsession.
//
// Two families exist. *Error covers session-level failures: the link could
// not be opened, the link is gone, the caller mutated configuration at the
// wrong time. *SQLError covers server-level failures: the link is healthy
// but the server rejected a statement. Callers use the Is* predicates to
// branch without inspecting fields.
//
// Usage:
//
//	// In the session — wrap a transport failure:
//	return errs.Wrap(errs.KindConnection, "connect failed", err)
//
//	// In a caller — decide whether a retry makes sense:
//	if errs.IsSQL(err) {
//	    // the connection survived; fix the SQL and try again
//	}
package errs

import (
	"errors"
	"fmt"
)

// Kind categorises a session-level error.
type Kind int

const (
	KindUnknown    Kind = iota
	KindConfig          // malformed locator or setting
	KindState           // operation illegal in the current connection state
	KindConnection      // link could not be opened or maintained
	KindClosed          // connection was closed; no further operations
	KindUnhealthy       // health probe reported a dead link
	KindNoResults       // drain produced nothing; nothing was sent
	KindEncoding        // client encoding get/set rejected
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindState:
		return "state"
	case KindConnection:
		return "connection"
	case KindClosed:
		return "closed"
	case KindUnhealthy:
		return "unhealthy"
	case KindNoResults:
		return "no_results"
	case KindEncoding:
		return "encoding"
	default:
		return "unknown"
	}
}

// Error is the session-level error type. It never represents a server-side
// statement failure; those are *SQLError.
type Error struct {
	Kind    Kind
	Message string
	Stmt    string   // offending statement text, when a send was involved
	Params  []string // serialized parameters; kept out of Error() output
	Cause   error    // original transport-level error, preserved for logging
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap allows errors.Is / errors.As to traverse the cause chain.
func (e *Error) Unwrap() error {
	return e.Cause
}

// SQLError reports that the server rejected or errored on a statement.
// The connection itself remains usable; the caller may correct the SQL and
// retry. Fields mirror the server's error response.
type SQLError struct {
	Severity string
	Code     string // SQLSTATE
	Message  string
	Detail   string
	Hint     string
	Position int32 // 1-based character offset into Stmt, 0 if absent

	Stmt   string   // statement text as dispatched
	Params []string // serialized parameter list, nil for anonymous queries

	Cause error
}

func (e *SQLError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("[sql %s] %s", e.Code, e.Message)
	}
	return fmt.Sprintf("[sql] %s", e.Message)
}

func (e *SQLError) Unwrap() error {
	return e.Cause
}

// --- Constructors ---

// New creates an *Error with the given kind and message and no cause.
func New(kind Kind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Wrap creates an *Error with the given kind, message, and underlying cause.
func Wrap(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// WrapStmt is Wrap with the offending statement text attached.
func WrapStmt(kind Kind, msg, stmt string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Stmt: stmt, Cause: cause}
}

// --- Predicates ---

// IsConfig reports whether err was caused by a malformed locator or setting.
func IsConfig(err error) bool {
	return kindOf(err) == KindConfig
}

// IsState reports whether err was caused by an operation that is illegal in
// the connection's current state (e.g. mutating settings after connect).
func IsState(err error) bool {
	return kindOf(err) == KindState
}

// IsConnection reports whether err is any session-level failure of the link
// itself: open failed, link unhealthy, link closed, drain with nothing
// pending, encoding operation rejected.
func IsConnection(err error) bool {
	switch kindOf(err) {
	case KindConnection, KindClosed, KindUnhealthy, KindNoResults, KindEncoding:
		return true
	}
	return false
}

// IsClosed reports whether err was raised because the connection is closed.
func IsClosed(err error) bool {
	return kindOf(err) == KindClosed
}

// IsNoResults reports whether err signals a drain with nothing pending.
func IsNoResults(err error) bool {
	return kindOf(err) == KindNoResults
}

// IsSQL reports whether err is a server-side statement failure. When it
// returns true the connection is still usable.
func IsSQL(err error) bool {
	var e *SQLError
	return errors.As(err, &e)
}

// AsSQL extracts the *SQLError from err's chain, or nil.
func AsSQL(err error) *SQLError {
	var e *SQLError
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// kindOf extracts the Kind from any error in the chain.
func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
