package reservation

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventCreated      EventType = "reservation.created"
	EventReleased     EventType = "reservation.released"
	EventExpired      EventType = "reservation.expired"
	EventMethodLocked EventType = "reservation.method_locked"
	EventCompleted    EventType = "reservation.completed"
)

// Event is the envelope published for every reservation lifecycle transition.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	Scope      string    `json:"scope"`
	OccurredAt time.Time `json:"occurred_at"`
	Order      Order     `json:"order"`
}

func NewEvent(typ EventType, o Order) Event {
	return Event{
		EventID:    uuid.New().String(),
		Type:       typ,
		Scope:      o.Scope,
		OccurredAt: time.Now().UTC(),
		Order:      o,
	}
}
