// Package berrors implements an error type that defines standard
// interpretable error codes for the conditions this module's components can
// raise. Errors also carry an interpretable severity, so that
// error-producing operations can be retried in consistent ways. Errors
// returned by this package can be chained: thus attributing one error to
// another.
package berrors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"syscall"
)

// Separator defines the separation string inserted between
// chained errors in error messages.
var Separator = ":\n\t"

// Kind defines the type of error. Kinds are semantically meaningful, and
// may be interpreted by the receiver of an error (e.g. to decide whether an
// operation should be retried).
type Kind int

const (
	// Other indicates an unknown error.
	Other Kind = iota
	// ArgumentOutOfRange indicates a caller-supplied parameter (block size,
	// offset, length, index) fell outside its valid range.
	ArgumentOutOfRange
	// UnsupportedOperation indicates an operation the component does not
	// implement for its current configuration or mode.
	UnsupportedOperation
	// IllegalWrite indicates a write that violates the container's write
	// rules, such as overwriting already-committed bytes through a
	// size-changing transformer.
	IllegalWrite
	// Corruption indicates the on-disk data failed a consistency check:
	// a bad checksum, an unexpected magic value, or a footer that does not
	// parse.
	Corruption
	// TruncatedRead indicates fewer bytes were available than the format
	// requires, distinct from Corruption in that no invalid data was seen,
	// just less of it than expected.
	TruncatedRead
	// SubstrateIO indicates the underlying seekable byte stream (file,
	// in-memory buffer, ...) returned an error unrelated to the container
	// format itself.
	SubstrateIO

	maxKind
)

var kinds = map[Kind]string{
	Other:                "unknown error",
	ArgumentOutOfRange:   "argument out of range",
	UnsupportedOperation: "unsupported operation",
	IllegalWrite:         "illegal write",
	Corruption:           "corruption",
	TruncatedRead:        "truncated read",
	SubstrateIO:          "substrate I/O error",
}

// kindStdErrs maps some Kinds to the standard library's equivalent, so that
// errors.Is interoperates with common stdlib sentinels.
var kindStdErrs = map[Kind]error{
	TruncatedRead: io.ErrUnexpectedEOF,
}

// String returns a human-readable explanation of the error kind k.
func (k Kind) String() string {
	return kinds[k]
}

var kindErrnos = map[Kind]syscall.Errno{
	ArgumentOutOfRange:   syscall.EINVAL,
	UnsupportedOperation: syscall.ENOTSUP,
	IllegalWrite:         syscall.EINVAL,
	Corruption:           syscall.EIO,
	TruncatedRead:        syscall.EIO,
	SubstrateIO:          syscall.EIO,
}

// Errno maps k to an equivalent Errno, or returns false if there's no good
// match.
func (k Kind) Errno() (syscall.Errno, bool) {
	errno, ok := kindErrnos[k]
	return errno, ok
}

// Severity defines an Error's severity. An Error's severity determines
// whether an error-producing operation may be retried or not.
type Severity int

const (
	// Retriable indicates that the failing operation can be safely retried,
	// regardless of application context.
	Retriable Severity = -2
	// Temporary indicates that the underlying error condition is likely
	// temporary, and can possibly be retried. However, such errors should be
	// retried in an application specific context.
	Temporary Severity = -1
	// Unknown indicates the error's severity is unknown. This is the default
	// severity level.
	Unknown Severity = 0
	// Fatal indicates that the underlying error condition is unrecoverable;
	// retrying is unlikely to help.
	Fatal Severity = 1
)

var severities = map[Severity]string{
	Retriable: "retriable",
	Temporary: "temporary",
	Unknown:   "unknown",
	Fatal:     "fatal",
}

// String returns a human-readable explanation of the error severity s.
func (s Severity) String() string {
	return severities[s]
}

// Error is the standard error type, carrying a kind (error code), message
// (error message), and potentially an underlying error. Errors should be
// constructed by berrors.E, which interprets its arguments according to a
// set of rules.
type Error struct {
	// Kind is the error's type.
	Kind Kind
	// Severity is an optional severity.
	Severity Severity
	// Message is an optional error message associated with this error.
	Message string
	// Err is the error that caused this error, if any. Errors can form
	// chains through Err: the full chain is printed by Error().
	Err error
}

// E constructs a new error from the provided arguments. It is meant as a
// convenient way to construct, annotate, and wrap errors.
//
// Arguments are interpreted according to their types:
//
//   - Kind: sets the Error's kind
//   - Severity: sets the Error's severity
//   - string: sets the Error's message; multiple strings are separated by
//     a single space
//   - *Error: copies the error and sets the error's cause
//   - error: sets the Error's cause
//
// If an unrecognized argument type is encountered, an error with kind Other
// is returned.
//
// If a kind is not provided but an underlying error is, E attempts to
// interpret the underlying error according to a set of conventions:
//
//   - if the error is context.Canceled or context.DeadlineExceeded, its
//     severity is set to Temporary;
//   - if the error implements interface{ Timeout() bool } and Timeout()
//     returns true, its severity is set to at least Temporary;
//   - if the error implements interface{ Temporary() bool } and Temporary()
//     returns true, its severity is set to at least Temporary.
//
// If the underlying error is another *Error, and a kind is not provided, the
// returned error inherits that error's kind.
func E(args ...interface{}) error {
	if len(args) == 0 {
		panic("no args")
	}
	e := new(Error)
	var msg strings.Builder
	for _, arg := range args {
		switch arg := arg.(type) {
		case Kind:
			e.Kind = arg
		case Severity:
			e.Severity = arg
		case string:
			if msg.Len() > 0 {
				msg.WriteString(" ")
			}
			msg.WriteString(arg)
		case *Error:
			cp := *arg
			if len(args) == 1 {
				return &cp
			}
			e.Err = &cp
		case error:
			e.Err = arg
		default:
			_, file, line, _ := runtime.Caller(1)
			return &Error{
				Kind:    Other,
				Message: fmt.Sprintf("berrors.E: bad call (type %T) from %s:%d: value %v", arg, file, line, arg),
			}
		}
	}
	e.Message = msg.String()
	if e.Err == nil {
		return e
	}
	switch prev := e.Err.(type) {
	case *Error:
		if prev.Kind == e.Kind || e.Kind == Other {
			e.Kind = prev.Kind
			prev.Kind = Other
		}
		if prev.Severity == e.Severity || e.Severity == Unknown {
			e.Severity = prev.Severity
			prev.Severity = Unknown
		}
	default:
		if err, ok := e.Err.(interface{ Temporary() bool }); ok && err.Temporary() && e.Severity == Unknown {
			e.Severity = Temporary
		}
		if err, ok := e.Err.(interface{ Timeout() bool }); ok && err.Timeout() && e.Severity == Unknown {
			e.Severity = Temporary
		}
		if errors.Is(e.Err, context.Canceled) || errors.Is(e.Err, context.DeadlineExceeded) {
			if e.Severity == Unknown {
				e.Severity = Temporary
			}
		}
		if e.Kind != Other {
			break
		}
		for kind := Kind(0); kind < maxKind; kind++ {
			stdErr := kindStdErrs[kind]
			if stdErr != nil && errors.Is(e.Err, stdErr) {
				e.Kind = kind
				break
			}
		}
	}
	return e
}

// Recover recovers any error into an *Error. If the passed-in error is
// already an *Error, it is simply returned; otherwise it is wrapped.
func Recover(err error) *Error {
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok {
		return e
	}
	return E(err).(*Error)
}

// Error returns a human readable string describing this error. It uses the
// separator defined by berrors.Separator.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	var b bytes.Buffer
	e.writeError(&b)
	return b.String()
}

func (e *Error) writeError(b *bytes.Buffer) {
	if e.Message != "" {
		pad(b, ": ")
		b.WriteString(e.Message)
	}
	if e.Kind != Other {
		pad(b, ": ")
		b.WriteString(e.Kind.String())
	}
	if e.Severity != Unknown {
		pad(b, " ")
		b.WriteByte('(')
		b.WriteString(e.Severity.String())
		b.WriteByte(')')
	}
	if e.Err == nil {
		return
	}
	if err, ok := e.Err.(*Error); ok {
		pad(b, Separator)
		b.WriteString(err.Error())
	} else {
		pad(b, ": ")
		b.WriteString(e.Err.Error())
	}
}

// Timeout tells whether this error represents a timeout.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, context.DeadlineExceeded)
}

// Temporary tells whether this error is temporary.
func (e *Error) Temporary() bool {
	return e.Severity <= Temporary
}

// Unwrap returns e's cause, if any, or nil. It lets the standard library's
// errors.Unwrap work with *Error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is tells whether e.Kind corresponds to err, for interoperability with the
// standard library's errors.Is. Note that this match does not recurse into
// err's cause.
func (e *Error) Is(err error) bool {
	if err == nil {
		return false
	}
	return err == kindStdErrs[e.Kind]
}

// Is tells whether err has the given kind, except for the indeterminate
// kind Other. In the case an error has kind Other, the chain is traversed
// until a non-Other error is encountered.
func Is(kind Kind, err error) bool {
	if err == nil {
		return false
	}
	return is(kind, Recover(err))
}

func is(kind Kind, e *Error) bool {
	if e.Kind != Other {
		return e.Kind == kind
	}
	if e.Err != nil {
		if e2, ok := e.Err.(*Error); ok {
			return is(kind, e2)
		}
	}
	return false
}

// IsTemporary tells whether the provided error is likely temporary.
func IsTemporary(err error) bool {
	return Recover(err).Temporary()
}

// Match tells whether every nonempty field in err1 matches the
// corresponding fields in err2. The comparison recurses on chained errors.
// Match is designed to aid in testing errors.
func Match(err1, err2 error) bool {
	e1 := Recover(err1)
	e2 := Recover(err2)
	if e1.Kind != Other && e1.Kind != e2.Kind {
		return false
	}
	if e1.Severity != Unknown && e1.Severity != e2.Severity {
		return false
	}
	if e1.Message != "" && e1.Message != e2.Message {
		return false
	}
	if e1.Err != nil {
		if e2.Err == nil {
			return false
		}
		switch e1.Err.(type) {
		case *Error:
			return Match(e1.Err, e2.Err)
		default:
			return e1.Err.Error() == e2.Err.Error()
		}
	}
	return true
}

// Visit calls the given function for every error object in the chain,
// including itself. Recursion stops after the function finds an error
// object of type other than *Error.
func Visit(err error, callback func(err error)) {
	callback(err)
	for {
		next, ok := err.(*Error)
		if !ok {
			break
		}
		err = next.Err
		callback(err)
	}
}

// New is synonymous with errors.New, provided here so that callers only
// need import one errors package.
func New(msg string) error {
	return errors.New(msg)
}

func pad(b *bytes.Buffer, s string) {
	if b.Len() == 0 {
		return
	}
	b.WriteString(s)
}
