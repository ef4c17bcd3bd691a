package errors

import (
	"fmt"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Kind is one of the three error kinds spec.md §7 surfaces to clients.
type Kind int

const (
	// KindManagement covers bad schema, duplicate names, missing
	// table/column/filter/trigger/index.
	KindManagement Kind = iota
	// KindInvalidOperation covers expression parse failures, unknown
	// cursors, handler id mismatches, duplicate cursor ids.
	KindInvalidOperation
	// KindInternal covers invariant violations. Fatal, session-terminating.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindManagement:
		return "Management"
	case KindInvalidOperation:
		return "InvalidOperation"
	case KindInternal:
		return "Internal"
	default:
		return "Unknown"
	}
}

// DialogError is the structured error type carried across every component
// boundary in this repo, generalized from the teacher's StorageError.
type DialogError struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *DialogError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *DialogError) Unwrap() error {
	return e.Cause
}

// ToGRPCStatus maps a DialogError onto the closest gRPC status code.
func (e *DialogError) ToGRPCStatus() *status.Status {
	return status.New(e.grpcCode(), e.Error())
}

func (e *DialogError) grpcCode() codes.Code {
	switch e.Kind {
	case KindManagement:
		return codes.FailedPrecondition
	case KindInvalidOperation:
		return codes.InvalidArgument
	case KindInternal:
		return codes.Internal
	default:
		return codes.Unknown
	}
}

// Management constructs a KindManagement error.
func Management(format string, args ...interface{}) *DialogError {
	return &DialogError{Kind: KindManagement, Message: fmt.Sprintf(format, args...)}
}

// InvalidOperation constructs a KindInvalidOperation error.
func InvalidOperation(format string, args ...interface{}) *DialogError {
	return &DialogError{Kind: KindInvalidOperation, Message: fmt.Sprintf(format, args...)}
}

// Internal constructs a KindInternal error, wrapping cause if non-nil.
func Internal(cause error, format string, args ...interface{}) *DialogError {
	return &DialogError{Kind: KindInternal, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether err is a *DialogError of the given kind.
func Is(err error, kind Kind) bool {
	de, ok := err.(*DialogError)
	return ok && de.Kind == kind
}

// KindOf extracts the Kind of a DialogError, defaulting to KindInternal for
// errors that aren't ours — an unclassified error is treated as fatal, never
// silently swallowed as a client-facing Management error.
func KindOf(err error) Kind {
	if de, ok := err.(*DialogError); ok {
		return de.Kind
	}
	return KindInternal
}
