package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ParticipantState is one registration joined with its live control records.
type ParticipantState struct {
	Registration Registration    `json:"registration"`
	CheckIn      *CheckIn        `json:"checkIn,omitempty"`
	Inspection   *Inspection     `json:"inspection,omitempty"`
	Weights      []WeightControl `json:"weights,omitempty"`
}

// EventState is the authoritative snapshot of an event's roster. It is the
// full-refetch target every dashboard falls back to when the push stream
// cannot be trusted (first connect, reconnect after a gap, degraded mode).
type EventState struct {
	EventID      uuid.UUID          `json:"eventId"`
	Participants []ParticipantState `json:"participants"`
	FetchedAt    time.Time          `json:"fetchedAt"`
}

// StateSource yields the current authoritative state of one event. The push
// layer augments a StateSource, it never replaces it: both the pull-driven
// and the push-driven views sit behind this contract, so dashboards depend
// on the abstraction rather than on which transport happens to be live.
type StateSource interface {
	Snapshot(ctx context.Context, eventID uuid.UUID) (*EventState, error)
}
