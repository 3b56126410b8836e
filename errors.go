package scancore

import (
	"errors"
	"strings"
)

// Error is the scancore error domain type.
//
// Errors coming from scancore components should be able to be inspected as
// ([errors.As]) an *Error at some point in the error chain. The Code member is
// the public outcome code reported to callers; see [CodeOf].
//
// Implementers of scancore components should create an Error at the system
// boundary (e.g. when reading a file or calling into an unpacker) and
// intermediate layers should not wrap in another Error except to add additional
// [ErrorKind] information. That is to say, use [fmt.Errorf] with a "%w" verb in
// preference to creating a containing Error.
type Error struct {
	Inner   error
	Kind    ErrorKind
	Message string
	Op      string
	Code    Code
}

// Assert this implements all the cool features.
var (
	_ error                       = (*Error)(nil)
	_ interface{ Is(error) bool } = (*Error)(nil)
	_ interface{ Unwrap() error } = (*Error)(nil)
)

// Error implements error.
func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(" ")
	}
	b.WriteString("[")
	switch e.kind() {
	case ErrConflict,
		ErrInternal,
		ErrInvalid,
		ErrPrecondition,
		ErrTransient,
		ErrPermanent,
		ErrLimit,
		ErrIntegrity,
		ErrFormat,
		ErrEnvironment:
		b.WriteString(string(e.kind()))
	default:
		b.WriteString("???")
	}
	b.WriteString("]: ")
	msg := e.Message
	if msg == "" && e.Code != Clean {
		msg = e.Code.String()
	}
	b.WriteString(msg)
	if msg != "" && e.Inner != nil {
		b.WriteString(": ")
	}
	if e.Op == "" && msg == "" {
		b.Reset()
	}
	if e.Inner != nil {
		b.WriteString(e.Inner.Error())
	}
	return b.String()
}

// Kind reports the Kind, falling back to the Code's kind if unset.
func (e *Error) kind() ErrorKind {
	if e.Kind != "" {
		return e.Kind
	}
	return e.Code.Kind()
}

// Is enables [errors.Is].
//
// It compares the error kind or the outcome code. Callers should compare
// against a declared [ErrorKind] or [Code] over a specific error.
func (e *Error) Is(target error) bool {
	switch target := target.(type) {
	case Code:
		return e.Code == target
	case ErrorKind:
		if target == ErrVersionDependent {
			return !errors.Is(e, ErrTransient) && !errors.Is(e, ErrPermanent)
		}
		return e.kind() == target
	}
	return false
}

// Unwrap enables [errors.Unwrap].
func (e *Error) Unwrap() error {
	return e.Inner
}

// ErrorKind represents classes of errors to be checked against.
//
// If an error is unsure which kind to use, ErrInternal should be used.
type ErrorKind string

// Defined error kinds.
var (
	ErrConflict     = ErrorKind("conflict")     // conflicting action
	ErrInternal     = ErrorKind("internal")     // non-specific internal error
	ErrInvalid      = ErrorKind("invalid")      // invalid request
	ErrPrecondition = ErrorKind("precondition") // some precondition unfulfilled
	ErrTransient    = ErrorKind("transient")    // may succeed on retry
	ErrPermanent    = ErrorKind("permanent")    // will never succeed

	ErrLimit       = ErrorKind("limit")       // a resource bound was hit; not a verdict
	ErrIntegrity   = ErrorKind("integrity")   // database integrity could not be established
	ErrFormat      = ErrorKind("format")      // a format handler failed
	ErrEnvironment = ErrorKind("environment") // I/O, allocation, temporary storage

	// ErrVersionDependent should only be used for an [Is] comparison.
	// It's true for any error that's not marked as transient or permanent.
	ErrVersionDependent = ErrorKind("version dependent") // neither transient nor permanent, may not error in a future version
)

// Error implements error.
func (e ErrorKind) Error() string {
	return string(e)
}

// NewError is a shorthand for constructing an *Error with a Code.
func NewError(op string, code Code, inner error) *Error {
	return &Error{
		Op:    op,
		Code:  code,
		Inner: inner,
	}
}

// CodeOf reports the outcome code carried by "err".
//
// A nil error is [Clean]. An error with no *Error in its chain is reported as
// [EIO], so raw system errors never surface as anything but a defined code.
func CodeOf(err error) Code {
	if err == nil {
		return Clean
	}
	var e *Error
	for errors.As(err, &e) {
		if e.Code != Clean {
			return e.Code
		}
		if e.Inner == nil {
			break
		}
		err = e.Inner
	}
	return EIO
}
