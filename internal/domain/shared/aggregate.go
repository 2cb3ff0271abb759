package shared

import (
	"time"

	"github.com/google/uuid"
)

// BaseAggregateRoot carries identity, a change counter and the events
// recorded since they were last pulled
type BaseAggregateRoot struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int

	pending []DomainEvent
}

// NewBaseAggregateRoot creates a root with a generated ID
func NewBaseAggregateRoot() BaseAggregateRoot {
	return NewBaseAggregateRootWithID(uuid.New())
}

// NewBaseAggregateRootWithID creates a root with a caller-chosen ID
func NewBaseAggregateRootWithID(id uuid.UUID) BaseAggregateRoot {
	now := time.Now()
	return BaseAggregateRoot{ID: id, CreatedAt: now, UpdatedAt: now, Version: 1}
}

// IncrementVersion records one change
func (a *BaseAggregateRoot) IncrementVersion() {
	a.Version++
	a.UpdatedAt = time.Now()
}

// AddDomainEvent queues an event
func (a *BaseAggregateRoot) AddDomainEvent(event DomainEvent) {
	a.pending = append(a.pending, event)
}

// GetDomainEvents returns the queued events without clearing them
func (a *BaseAggregateRoot) GetDomainEvents() []DomainEvent {
	return a.pending
}

// PullDomainEvents returns the queued events and clears the queue
func (a *BaseAggregateRoot) PullDomainEvents() []DomainEvent {
	events := a.pending
	a.pending = nil
	return events
}
