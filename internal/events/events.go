package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Type string

const (
	TypeCreated       Type = "appointment.created"
	TypeRescheduled   Type = "appointment.rescheduled"
	TypeCancelled     Type = "appointment.cancelled"
	TypeStatusChanged Type = "appointment.status_changed"
)

// Event is the change notification handed to external collaborators such as
// invoicing and the audit log. Delivery is at-least-once; consumers dedupe on
// EventID.
type Event struct {
	EventID       uuid.UUID `json:"event_id"`
	Type          Type      `json:"event_type"`
	AppointmentID uuid.UUID `json:"appointment_id"`
	ClinicID      uuid.UUID `json:"clinic_id"`
	OccurredAt    time.Time `json:"timestamp"`
}

// New builds an event with a fresh id, stamped now.
func New(t Type, appointmentID, clinicID uuid.UUID) Event {
	return Event{
		EventID:       uuid.New(),
		Type:          t,
		AppointmentID: appointmentID,
		ClinicID:      clinicID,
		OccurredAt:    time.Now().UTC(),
	}
}

// Sink receives events. Implementations must tolerate duplicate delivery.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
}

// MultiSink fans an event out to every sink. Failures are logged and
// swallowed: event delivery is fire-and-forget and must never fail a booking
// that already committed.
type MultiSink struct {
	sinks []Sink
	log   *zap.Logger
}

func NewMultiSink(log *zap.Logger, sinks ...Sink) *MultiSink {
	return &MultiSink{sinks: sinks, log: log}
}

func (m *MultiSink) Publish(ctx context.Context, ev Event) error {
	for _, s := range m.sinks {
		if err := s.Publish(ctx, ev); err != nil {
			m.log.Warn("event sink publish failed",
				zap.String("event_type", string(ev.Type)),
				zap.String("event_id", ev.EventID.String()),
				zap.Error(err),
			)
		}
	}
	return nil
}

// NopSink discards events, for wiring paths that do not need notifications.
type NopSink struct{}

func (NopSink) Publish(context.Context, Event) error { return nil }
