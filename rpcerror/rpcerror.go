// Package rpcerror defines the closed error taxonomy surfaced by the RPC core.
//
// Every failure a caller can observe — a broken send, a malformed envelope, a
// refusal reported by the remote side, a cancelled wait — is classified into
// exactly one Kind, so callers can branch on the category without parsing
// message text.
package rpcerror

import (
	"errors"
	"fmt"
)

// Kind classifies an RPC failure.
type Kind int

const (
	// Transport: the send (or the connection behind it) failed.
	Transport Kind = iota
	// ServerNotRunning: the peer refused because no server is listening —
	// distinguished from generic transport failure so callers can decide
	// whether spawning/attaching is worth attempting.
	ServerNotRunning
	// NotSupported: a capability or application-level refusal. Remote
	// application errors (an "error"-status reply) are reported under this
	// kind, carrying the remote message text.
	NotSupported
	// Protocol: malformed envelope, type mismatch during decode, or
	// unbalanced builder/reader nesting.
	Protocol
	// InvalidArgument: malformed input handed to the core by the caller.
	InvalidArgument
	// InvalidOperation: a programming-error fault, e.g. settling a promise
	// twice or abandoning one before resolution.
	InvalidOperation
	// Cancelled: the caller's cancellation fired before the outcome arrived.
	Cancelled
)

// String returns the kind's name for diagnostics.
func (k Kind) String() string {
	switch k {
	case Transport:
		return "transport"
	case ServerNotRunning:
		return "server-not-running"
	case NotSupported:
		return "not-supported"
	case Protocol:
		return "protocol"
	case InvalidArgument:
		return "invalid-argument"
	case InvalidOperation:
		return "invalid-operation"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is a classified RPC failure. The cause, when present, is reachable
// through errors.Unwrap / errors.Is.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap classifies an underlying error. The message describes the operation
// that failed; err becomes the wrapped cause.
func Wrap(kind Kind, err error, message string) *Error {
	return &Error{Kind: kind, Message: message, cause: err}
}

func (e *Error) Error() string {
	if e.cause != nil {
		return e.Message + ": " + e.cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// KindOf extracts the Kind from any error produced by this module.
// Errors from outside the taxonomy report as Transport, the conservative
// category for "something beyond the core broke".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Transport
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}
