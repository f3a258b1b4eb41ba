// Package audit provides the append-only audit trail. Every state-changing
// use case records who did what to which record; entries double as outbox
// rows for the Kafka publisher.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

const (
	ModelAppointment         = "Appointment"
	ModelConsultationRequest = "ConsultationRequest"
	ModelTheaterBooking      = "TheaterBooking"
)

type Event struct {
	ID          int64
	ActorID     uuid.UUID
	RecordID    uuid.UUID
	Action      string
	Model       string
	Details     string
	CreatedAt   time.Time
	PublishedAt *time.Time
}

// Recorder appends an audit event. Callers treat failures as best-effort:
// they log and continue, never rolling back the state change that was
// already persisted.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}
