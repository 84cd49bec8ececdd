package events

import (
	"encoding/json"
	"time"
)

// Envelope is the wire format for every realtime event.
type Envelope struct {
	EventType     string          `json:"event_type"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
}

// New builds an envelope, marshalling payload in place. A payload that cannot
// be marshalled yields an envelope with a null payload; event emission is
// best-effort and must not fail the caller.
func New(eventType, aggregateType, aggregateID string, payload any) Envelope {
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = json.RawMessage("null")
	}
	return Envelope{
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    time.Now().UTC(),
		Payload:       raw,
	}
}
