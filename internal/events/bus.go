package events

import (
	"sync"
	"time"
)

// EventType represents the license lifecycle events published in-process
type EventType string

const (
	EventLicenseActivated EventType = "LICENSE_ACTIVATED"
	EventLicenseValidated EventType = "LICENSE_VALIDATED"
	EventLicenseExpired   EventType = "LICENSE_EXPIRED"
	EventLicenseCreated   EventType = "LICENSE_CREATED"
	EventLicenseUpdated   EventType = "LICENSE_UPDATED"
	EventLicenseRevoked   EventType = "LICENSE_REVOKED"
	EventLicenseDeleted   EventType = "LICENSE_DELETED"
)

// Event is a system event delivered to subscribers
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus fans events out to subscribers. Publishing never blocks the
// caller beyond the subscriber callbacks themselves.
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for every event
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish delivers an event to all matching subscribers
func (eb *EventBus) Publish(eventType EventType, data map[string]interface{}) {
	event := Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}

	eb.mu.RLock()
	subs := append([]Subscriber(nil), eb.subscribers[eventType]...)
	subs = append(subs, eb.allSubs...)
	eb.mu.RUnlock()

	for _, sub := range subs {
		sub(event)
	}
}
