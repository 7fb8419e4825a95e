package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var ErrAppointmentNotFound = errors.New("appointment not found")

type ConflictReason string

const (
	ReasonInvalidInterval     ConflictReason = "invalid_interval"
	ReasonResourceNotInClinic ConflictReason = "resource_not_in_clinic"
	ReasonServiceNotOffered   ConflictReason = "service_not_offered"
	ReasonDoctorUnavailable   ConflictReason = "doctor_unavailable"
	ReasonRoomUnavailable     ConflictReason = "room_unavailable"
)

// ConflictError means the request cannot be granted as-is. Only the
// availability reasons are worth retrying with a different slot; the rule
// reasons need a different request entirely.
type ConflictError struct {
	Reason ConflictReason
	Detail string
	// BusyWith lists the appointment ids occupying the requested interval,
	// set for the availability reasons.
	BusyWith []uuid.UUID
}

func (e *ConflictError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("booking conflict (%s): %s", e.Reason, e.Detail)
	}
	return fmt.Sprintf("booking conflict (%s)", e.Reason)
}

// Retryable reports whether a different slot could succeed.
func (e *ConflictError) Retryable() bool {
	return e.Reason == ReasonDoctorUnavailable || e.Reason == ReasonRoomUnavailable
}

// ValidationError means the request was malformed before any rule ran.
type ValidationError struct {
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid booking request: %s %s", e.Field, e.Detail)
}

// InvalidTransitionError reports a lifecycle rule violation.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s", e.From, e.To)
}

// InfrastructureError wraps storage or lock failures. These are retryable
// with backoff; the booking itself was not committed.
type InfrastructureError struct {
	Op  string
	Err error
}

func (e *InfrastructureError) Error() string {
	return fmt.Sprintf("infrastructure failure during %s: %v", e.Op, e.Err)
}

func (e *InfrastructureError) Unwrap() error {
	return e.Err
}
