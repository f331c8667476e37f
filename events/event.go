// Package events publishes reservation lifecycle events to the message broker.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	ReservationCreated       Type = "reservation.created"
	ReservationUpdated       Type = "reservation.updated"
	ReservationCheckedIn     Type = "reservation.checked_in"
	ReservationCheckInUndone Type = "reservation.check_in_undone"
	ReservationCompleted     Type = "reservation.completed"
	ReservationReopened      Type = "reservation.reopened"
	ReservationCancelled     Type = "reservation.cancelled"
	ReservationRestored      Type = "reservation.restored"
	ReservationRated         Type = "reservation.rated"
	ReservationDeleted       Type = "reservation.deleted"
	PaymentReceived          Type = "payment.received"
	RoomMaintenance          Type = "room.maintenance"
	RoomAvailable            Type = "room.available"
)

// Event is the JSON payload put on the queue. Consumers should not need to
// query the database to log or notify.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	ReservationID uint      `json:"reservation_id,omitempty"`
	ReferenceCode string    `json:"reference_code,omitempty"`
	RoomID        *uint     `json:"room_id,omitempty"`
	Status        string    `json:"status,omitempty"`
	Actor         string    `json:"actor,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// New stamps an event with an id and the current time.
func New(t Type) Event {
	return Event{ID: uuid.NewString(), Type: t, OccurredAt: time.Now().UTC()}
}

// Publisher delivers events after the owning transaction committed.
// Failures must never undo a committed change, callers only log them.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                         { return nil }
