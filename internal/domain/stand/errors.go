package stand

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	// ErrNotSupported is returned when no method alias of the controller fits an operation.
	ErrNotSupported = errors.New("operation not supported")
	// ErrNullResult is returned when the controller answered with nothing.
	ErrNullResult = errors.New("null result")
	// ErrUnexpectedShape is returned when a result is neither a state, a wrapped state nor a transaction code.
	ErrUnexpectedShape = errors.New("unexpected result shape")
	// ErrUnresolvable is returned when a transaction code did not resolve before the timeout.
	ErrUnresolvable = errors.New("transaction unresolvable")
	// ErrRemoteFailure is returned when the remote call itself failed.
	ErrRemoteFailure = errors.New("remote failure")
	// ErrWatcherUnavailable marks a confirmation watcher that could not start.
	// It only removes the confirmation step and is never reported to the user as a failure.
	ErrWatcherUnavailable = errors.New("confirmation watcher unavailable")
)

// NotSupportedError reports that no (alias, template) pair matched.
type NotSupportedError struct {
	Op Operation
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrNotSupported)
}

func (e *NotSupportedError) Unwrap() error {
	return ErrNotSupported
}

// NullResultError reports a nil raw result.
type NullResultError struct {
	Op Operation
}

func (e *NullResultError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrNullResult)
}

func (e *NullResultError) Unwrap() error {
	return ErrNullResult
}

// UnexpectedShapeError reports a result the normalizer does not recognize.
type UnexpectedShapeError struct {
	Op Operation
	// Descriptor is a short description of the received value's shape.
	Descriptor string
}

func (e *UnexpectedShapeError) Error() string {
	return fmt.Sprintf("%s: %v: %s", e.Op, ErrUnexpectedShape, e.Descriptor)
}

func (e *UnexpectedShapeError) Unwrap() error {
	return ErrUnexpectedShape
}

// UnresolvableError reports a transaction code that never resolved.
type UnresolvableError struct {
	Op   Operation
	Code string
}

func (e *UnresolvableError) Error() string {
	return fmt.Sprintf("%s: %v: transaction %q", e.Op, ErrUnresolvable, e.Code)
}

func (e *UnresolvableError) Unwrap() error {
	return ErrUnresolvable
}

// RemoteFailure reports that the underlying remote call raised.
// Vendor fields are set when the controller sent structured error detail,
// transport fields when only a status and body are known.
type RemoteFailure struct {
	Op      Operation
	StandID int

	// VendorCode is the controller's error code, e.g. STAND_BUSY.
	VendorCode  string
	Title       string
	Description string
	// Timestamp is the controller's error time, verbatim.
	Timestamp string

	// StatusCode is the transport status, e.g. "Unavailable" or "503".
	StatusCode string
	// Body is the raw transport message.
	Body string

	Err error
}

func (e *RemoteFailure) Error() string {
	var b strings.Builder

	b.WriteString(string(e.Op))

	if e.StandID > 0 {
		b.WriteString(" stand ")
		b.WriteString(strconv.Itoa(e.StandID))
	}

	if b.Len() > 0 {
		b.WriteString(": ")
	}

	b.WriteString(ErrRemoteFailure.Error())

	if e.VendorCode != "" {
		b.WriteString(": vendor error ")
		b.WriteString(e.VendorCode)

		if e.Title != "" {
			b.WriteString(" " + strconv.Quote(e.Title))
		}

		if e.Description != "" {
			b.WriteString(" (" + e.Description + ")")
		}

		if e.Timestamp != "" {
			b.WriteString(" at " + e.Timestamp)
		}
	}

	if e.StatusCode != "" {
		b.WriteString(": status " + e.StatusCode)

		if e.Body != "" {
			b.WriteString(": " + e.Body)
		}
	}

	if e.Err != nil && e.StatusCode == "" {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

// Unwrap exposes both the sentinel and the transport error.
func (e *RemoteFailure) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteFailure}
	}

	return []error{ErrRemoteFailure, e.Err}
}

// AsRemoteFailure wraps err into a RemoteFailure for op unless it already is one
// or is a local logic error. Existing failures get op and stand id filled in.
func AsRemoteFailure(err error, op Operation, standID int) error {
	if err == nil || IsLocal(err) {
		return err
	}

	var failure *RemoteFailure
	if errors.As(err, &failure) {
		annotated := *failure
		if annotated.Op == "" {
			annotated.Op = op
		}

		if annotated.StandID == 0 {
			annotated.StandID = standID
		}

		return &annotated
	}

	return &RemoteFailure{
		Op:      op,
		StandID: standID,
		Err:     err,
	}
}

// IsLocal reports whether err is a local logic error that must surface
// immediately without consulting the watcher.
func IsLocal(err error) bool {
	return errors.Is(err, ErrNotSupported) ||
		errors.Is(err, ErrNullResult) ||
		errors.Is(err, ErrUnexpectedShape) ||
		errors.Is(err, ErrUnresolvable)
}
