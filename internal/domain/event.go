package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event is one race event. Every live channel, registration and control
// record is scoped to exactly one event.
type Event struct {
	ID        uuid.UUID
	Name      string
	Venue     string
	StartsAt  time.Time
	CreatedAt time.Time
}

// Class is a vehicle class within an event. Weight limits are optional;
// a class without limits never fails weight control.
type Class struct {
	ID        uuid.UUID
	EventID   uuid.UUID
	Name      string
	MinWeight *float64
	MaxWeight *float64
}

// HasWeightLimit reports whether any weight bound is configured.
func (c *Class) HasWeightLimit() bool {
	return c != nil && (c.MinWeight != nil || c.MaxWeight != nil)
}
