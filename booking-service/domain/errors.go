package domain

import (
	"context"

	"github.com/pkg/errors"
)

// ErrorKind classifies activity failures for the saga's retry and routing decisions
type ErrorKind string

const (
	// ErrorKindNone marks the absence of a classified failure
	ErrorKindNone ErrorKind = ""

	// ErrorKindPreconditionFailed is a business-rule rejection (e.g. no seats left).
	// Never retried; routes straight to the failure path.
	ErrorKindPreconditionFailed ErrorKind = "precondition_failed"

	// ErrorKindTransient covers throttling and infrastructure unavailability
	ErrorKindTransient ErrorKind = "transient_infrastructure"

	// ErrorKindTimeout is an activity-level timeout, counted as a failed attempt
	ErrorKindTimeout ErrorKind = "timeout"

	// ErrorKindDeadlineExceeded is the global execution deadline firing
	ErrorKindDeadlineExceeded ErrorKind = "deadline_exceeded"

	ErrorKindBookingReservation  ErrorKind = "booking_reservation"
	ErrorKindBookingCancellation ErrorKind = "booking_cancellation"
	ErrorKindBookingConfirmation ErrorKind = "booking_confirmation"
	ErrorKindBookingNotification ErrorKind = "booking_notification"
	ErrorKindPayment             ErrorKind = "payment"
)

// ActivityError is a classified failure returned by a saga activity
type ActivityError struct {
	Kind  ErrorKind
	cause error
}

// NewActivityError creates a classified error with a message
func NewActivityError(kind ErrorKind, message string) *ActivityError {
	return &ActivityError{
		Kind:  kind,
		cause: errors.New(message),
	}
}

// WrapActivityError classifies an underlying error
func WrapActivityError(kind ErrorKind, cause error, message string) *ActivityError {
	return &ActivityError{
		Kind:  kind,
		cause: errors.Wrap(cause, message),
	}
}

func (e *ActivityError) Error() string {
	return string(e.Kind) + ": " + e.cause.Error()
}

func (e *ActivityError) Unwrap() error {
	return e.cause
}

// KindOf extracts the error kind from an error chain.
// Context deadline expiry classifies as an activity timeout; unclassified
// errors default to transient so infrastructure hiccups stay retryable.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var actErr *ActivityError
	if errors.As(err, &actErr) {
		return actErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}

	return ErrorKindTransient
}

// Sentinel errors for lookups
var (
	ErrFlightNotFound    = errors.New("flight not found")
	ErrBookingNotFound   = errors.New("booking not found")
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrNoSeatsAvailable is the conditional-update precondition rejection
	ErrNoSeatsAvailable = NewActivityError(ErrorKindPreconditionFailed, "no seats available")
)
