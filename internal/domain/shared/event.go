package shared

import (
	"time"

	"github.com/google/uuid"
)

// DomainEvent is something an aggregate recorded while changing state
type DomainEvent interface {
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
}

// BaseDomainEvent holds the envelope every event carries
type BaseDomainEvent struct {
	Type      string    `json:"type"`
	Aggregate string    `json:"aggregate"`
	SourceID  uuid.UUID `json:"source_id"`
	Recorded  time.Time `json:"recorded_at"`
}

// NewBaseDomainEvent stamps an event for the given aggregate
func NewBaseDomainEvent(eventType, aggregate string, sourceID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{
		Type:      eventType,
		Aggregate: aggregate,
		SourceID:  sourceID,
		Recorded:  time.Now(),
	}
}

func (e *BaseDomainEvent) EventType() string      { return e.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Recorded }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.SourceID }
