// Package fserrors defines the error taxonomy surfaced by the filesystem
// service layer.
//
// Every failure leaving a filesystem operation is an *Error carrying one of
// the ErrorCode categories below. The original cause is kept and reachable
// through errors.Unwrap, so callers can still match store-specific errors
// (for example rest.IsPathNotFound) after classification.
//
// Usage Pattern:
//
//	status, err := svc.GetFileStatus(ctx, handle, "/data/report.csv")
//	if err != nil {
//	    if fserrors.Is(err, fserrors.ErrTimeout) {
//	        // retry later, partial effects may be visible
//	    }
//	    return err
//	}
package fserrors

import (
	"errors"
	"strings"
)

// ErrorCode represents the category of a filesystem service error.
type ErrorCode int

const (
	// ErrTransport indicates a network or REST failure reported by the client
	// collaborator (connection refused, malformed response, ...).
	ErrTransport ErrorCode = iota

	// ErrService indicates a structured failure reported by the store itself
	// (path not found, already exists, condition not met, ...).
	ErrService

	// ErrInvalidPropertyValue indicates a metadata value cannot be represented
	// in the property wire encoding.
	ErrInvalidPropertyValue

	// ErrInvalidFormat indicates a malformed value received from the store,
	// such as a broken metadata header or an unparseable timestamp.
	ErrInvalidFormat

	// ErrTimeout indicates a paginated operation exceeded its deadline.
	// Effects applied by the pages already processed are not rolled back.
	ErrTimeout

	// ErrInvalidParameter indicates a malformed request, for example a
	// content length below -1 presented to the request signer.
	ErrInvalidParameter
)

func (c ErrorCode) String() string {
	switch c {
	case ErrTransport:
		return "TransportError"
	case ErrService:
		return "ServiceError"
	case ErrInvalidPropertyValue:
		return "InvalidPropertyValue"
	case ErrInvalidFormat:
		return "InvalidFormat"
	case ErrTimeout:
		return "Timeout"
	case ErrInvalidParameter:
		return "InvalidParameter"
	default:
		return "Unknown"
	}
}

// Error is a classified filesystem service error.
type Error struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the filesystem path related to the error (if applicable)
	Path string

	// Err is the underlying cause (may be nil)
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Code.String())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Path != "" {
		b.WriteString(": ")
		b.WriteString(e.Path)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error without an underlying cause.
func New(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap classifies err under code. A nil err yields nil.
func Wrap(code ErrorCode, message string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, Err: err}
}

// WithPath returns a copy of e annotated with path.
func (e *Error) WithPath(path string) *Error {
	c := *e
	c.Path = path
	return &c
}

// CodeOf returns the code of the outermost *Error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Code, true
	}
	return 0, false
}

// Is reports whether err is classified as code.
func Is(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
