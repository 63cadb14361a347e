package domain

// EventRecorder collects uncommitted domain events for an aggregate.
// Embed it by value; the zero value is ready to use.
type EventRecorder struct {
	domainEvents []DomainEvent
}

// DomainEvents returns all uncommitted domain events.
func (r *EventRecorder) DomainEvents() []DomainEvent {
	return r.domainEvents
}

// ClearDomainEvents drops uncommitted events, typically after they were written to the outbox.
func (r *EventRecorder) ClearDomainEvents() {
	r.domainEvents = nil
}

// AddDomainEvent records a domain event.
func (r *EventRecorder) AddDomainEvent(event DomainEvent) {
	r.domainEvents = append(r.domainEvents, event)
}
