package services

import (
	"sync"
	"time"

	"product-wizard-service/models"
)

// EventType names a domain event emitted by a wizard session.
type EventType string

const (
	EventDraftChanged        EventType = "draft_changed"
	EventStepChanged         EventType = "step_changed"
	EventValidationFailed    EventType = "validation_failed"
	EventLookupResolved      EventType = "lookup_resolved"
	EventLookupNotFound      EventType = "lookup_not_found"
	EventLookupFailed        EventType = "lookup_failed"
	EventCandidateAccepted   EventType = "candidate_accepted"
	EventCandidateRejected   EventType = "candidate_rejected"
	EventSubmissionStarted   EventType = "submission_started"
	EventSubmissionSucceeded EventType = "submission_succeeded"
	EventSubmissionFailed    EventType = "submission_failed"
	EventCodeContributed     EventType = "code_contributed"
	EventSessionCancelled    EventType = "session_cancelled"
)

// Event is published on the EventBus. Payload depends on Type.
type Event struct {
	Type      EventType
	SessionID string
	Step      models.Step
	Message   string
	Errors    []models.FieldError
	Payload   interface{}
	At        time.Time
}

// EventHandler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not call back into the emitting session.
type EventHandler func(Event)

// EventBus is an in-process publish/subscribe fan-out.
type EventBus struct {
	mu       sync.RWMutex
	nextID   int
	handlers map[int]EventHandler
	order    []int
}

func NewEventBus() *EventBus {
	return &EventBus{handlers: make(map[int]EventHandler)}
}

// Subscribe registers h and returns a function that removes it.
func (b *EventBus) Subscribe(h EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.handlers[id] = h
	b.order = append(b.order, id)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
		for i, v := range b.order {
			if v == id {
				b.order = append(b.order[:i], b.order[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers e to every subscriber in subscription order.
func (b *EventBus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now().UTC()
	}

	b.mu.RLock()
	handlers := make([]EventHandler, 0, len(b.order))
	for _, id := range b.order {
		handlers = append(handlers, b.handlers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		h(e)
	}
}
