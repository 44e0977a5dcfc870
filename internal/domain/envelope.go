package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Topic is the kind of state change an envelope describes. The set is closed
// but deliberately extensible: receivers must skip topics they do not know
// instead of failing.
type Topic string

const (
	TopicCheckInUpdated      Topic = "CHECKIN_UPDATED"
	TopicTechnicalUpdated    Topic = "TECHNICAL_UPDATED"
	TopicWeightUpdated       Topic = "WEIGHT_UPDATED"
	TopicRegistrationUpdated Topic = "REGISTRATION_UPDATED"
)

// Payload is the topic-specific body of an envelope. Exactly one concrete
// payload type exists per topic.
type Payload interface {
	PayloadTopic() Topic
}

// CheckInPayload accompanies CHECKIN_UPDATED.
type CheckInPayload struct {
	RegistrationID uuid.UUID     `json:"registrationId"`
	StartNumber    int           `json:"startNumber"`
	Status         CheckInStatus `json:"status"`
	ActorName      string        `json:"actorName"`
}

func (CheckInPayload) PayloadTopic() Topic { return TopicCheckInUpdated }

// TechnicalPayload accompanies TECHNICAL_UPDATED.
type TechnicalPayload struct {
	RegistrationID uuid.UUID        `json:"registrationId"`
	StartNumber    int              `json:"startNumber"`
	Status         InspectionStatus `json:"status"`
	Remark         string           `json:"remark,omitempty"`
	ActorName      string           `json:"actorName"`
}

func (TechnicalPayload) PayloadTopic() Topic { return TopicTechnicalUpdated }

// WeightPayload accompanies WEIGHT_UPDATED.
type WeightPayload struct {
	RegistrationID uuid.UUID    `json:"registrationId"`
	StartNumber    int          `json:"startNumber"`
	Heat           string       `json:"heat"`
	MeasuredWeight float64      `json:"measuredWeight"`
	Result         WeightResult `json:"result"`
	ActorName      string       `json:"actorName"`
}

func (WeightPayload) PayloadTopic() Topic { return TopicWeightUpdated }

// RegistrationPayload accompanies REGISTRATION_UPDATED.
type RegistrationPayload struct {
	RegistrationID uuid.UUID `json:"registrationId"`
	StartNumber    int       `json:"startNumber"`
	DriverName     string    `json:"driverName"`
	VehicleName    string    `json:"vehicleName"`
	ActorName      string    `json:"actorName"`
}

func (RegistrationPayload) PayloadTopic() Topic { return TopicRegistrationUpdated }

// Envelope is one immutable announced state change. Every announce builds a
// fresh envelope; nothing mutates one after creation.
//
// Wire shape: {topic, eventId, subjectId, payload{...}, occurredAt}.
type Envelope struct {
	Topic      Topic
	EventID    uuid.UUID
	SubjectID  uuid.UUID
	Payload    Payload
	OccurredAt time.Time

	// RawPayload holds the undecoded body for topics this build does not
	// know. Payload is nil in that case.
	RawPayload json.RawMessage
}

// NewEnvelope builds an envelope for the given event and subject. The topic
// is derived from the payload type.
func NewEnvelope(eventID, subjectID uuid.UUID, payload Payload, occurredAt time.Time) Envelope {
	return Envelope{
		Topic:      payload.PayloadTopic(),
		EventID:    eventID,
		SubjectID:  subjectID,
		Payload:    payload,
		OccurredAt: occurredAt.UTC(),
	}
}

type envelopeWire struct {
	Topic      Topic           `json:"topic"`
	EventID    uuid.UUID       `json:"eventId"`
	SubjectID  uuid.UUID       `json:"subjectId"`
	Payload    json.RawMessage `json:"payload"`
	OccurredAt time.Time       `json:"occurredAt"`
}

// MarshalJSON renders the stable wire shape.
func (e Envelope) MarshalJSON() ([]byte, error) {
	body := e.RawPayload
	if e.Payload != nil {
		var err error
		body, err = json.Marshal(e.Payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s payload: %w", e.Topic, err)
		}
	}
	return json.Marshal(envelopeWire{
		Topic:      e.Topic,
		EventID:    e.EventID,
		SubjectID:  e.SubjectID,
		Payload:    body,
		OccurredAt: e.OccurredAt,
	})
}

// UnmarshalJSON decodes the wire shape. Unknown topics are not an error: the
// payload stays raw and Payload is nil, so handlers can skip the envelope.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var wire envelopeWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return fmt.Errorf("failed to decode envelope: %w", err)
	}

	*e = Envelope{
		Topic:      wire.Topic,
		EventID:    wire.EventID,
		SubjectID:  wire.SubjectID,
		OccurredAt: wire.OccurredAt,
		RawPayload: wire.Payload,
	}

	if len(wire.Payload) == 0 {
		return nil
	}

	switch wire.Topic {
	case TopicCheckInUpdated:
		return e.decodePayload(&CheckInPayload{})
	case TopicTechnicalUpdated:
		return e.decodePayload(&TechnicalPayload{})
	case TopicWeightUpdated:
		return e.decodePayload(&WeightPayload{})
	case TopicRegistrationUpdated:
		return e.decodePayload(&RegistrationPayload{})
	default:
		// Unknown topic from a newer server. Keep the raw body.
		return nil
	}
}

func (e *Envelope) decodePayload(target Payload) error {
	if err := json.Unmarshal(e.RawPayload, target); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Topic, err)
	}
	switch p := target.(type) {
	case *CheckInPayload:
		e.Payload = *p
	case *TechnicalPayload:
		e.Payload = *p
	case *WeightPayload:
		e.Payload = *p
	case *RegistrationPayload:
		e.Payload = *p
	}
	e.RawPayload = nil
	return nil
}

// ActorName returns the acting operator's name from any known payload, or ""
// for unknown topics. Owners use it for self-update suppression.
func (e Envelope) ActorName() string {
	switch p := e.Payload.(type) {
	case CheckInPayload:
		return p.ActorName
	case TechnicalPayload:
		return p.ActorName
	case WeightPayload:
		return p.ActorName
	case RegistrationPayload:
		return p.ActorName
	}
	return ""
}
