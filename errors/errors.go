package errors

import (
	stderrors "errors"
	"fmt"
)

// DecodeError represents failures while turning a header block into a request
type DecodeError int

const (
	MalformedRequestLine DecodeError = iota + 1
	MalformedDate
	HeaderTooLarge
)

func (e DecodeError) Error() string {
	switch e {
	case MalformedRequestLine:
		return "Malformed request line"
	case MalformedDate:
		return "Malformed date"
	case HeaderTooLarge:
		return "Header block too large"
	default:
		return fmt.Sprintf("Unknown decode error: %d", int(e))
	}
}

// TransportError represents failures of the listener and connection plumbing
type TransportError int

const (
	ListenFailure TransportError = iota + 1
	AlreadyListening
	NotListening
	ReadFailure
	WriteFailure
	ResolveFailure
)

func (e TransportError) Error() string {
	switch e {
	case ListenFailure:
		return "Listen failed"
	case AlreadyListening:
		return "Server already listening"
	case NotListening:
		return "Server not listening"
	case ReadFailure:
		return "Connection read failed"
	case WriteFailure:
		return "Connection write failed"
	case ResolveFailure:
		return "Path resolution failed"
	default:
		return fmt.Sprintf("Unknown transport error: %d", int(e))
	}
}

// Error is the top-level error type that wraps decode and transport errors
type Error struct {
	DecodeErr    *DecodeError
	TransportErr *TransportError
	Message      string
	underlying   error
}

func (e *Error) Error() string {
	var kind string
	switch {
	case e.DecodeErr != nil:
		kind = "Decode Error: " + e.DecodeErr.Error()
	case e.TransportErr != nil:
		kind = "Transport Error: " + e.TransportErr.Error()
	default:
		kind = "Unknown error"
	}
	if e.Message != "" {
		kind = fmt.Sprintf("%s: %s", kind, e.Message)
	}
	if e.underlying != nil {
		return fmt.Sprintf("%s (underlying: %v)", kind, e.underlying)
	}
	return kind
}

func (e *Error) Unwrap() error {
	return e.underlying
}

// Is lets errors.Is match an *Error against its bare kind,
// e.g. errors.Is(err, httperrors.MalformedDate).
func (e *Error) Is(target error) bool {
	switch t := target.(type) {
	case DecodeError:
		return e.DecodeErr != nil && *e.DecodeErr == t
	case TransportError:
		return e.TransportErr != nil && *e.TransportErr == t
	}
	return false
}

// NewDecodeError creates a new Error with a DecodeError
func NewDecodeError(de DecodeError, message string, underlying error) *Error {
	return &Error{
		DecodeErr:  &de,
		Message:    message,
		underlying: underlying,
	}
}

// NewTransportError creates a new Error with a TransportError
func NewTransportError(te TransportError, message string, underlying error) *Error {
	return &Error{
		TransportErr: &te,
		Message:      message,
		underlying:   underlying,
	}
}

// IsDecode reports whether err carries a DecodeError of any kind.
func IsDecode(err error) bool {
	var e *Error
	return stderrors.As(err, &e) && e.DecodeErr != nil
}
