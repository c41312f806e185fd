package runtime

import (
	"sync"
	"time"
)

// EventType represents the type of loop event.
type EventType string

const (
	EventStateChange        EventType = "state_change"
	EventCompletionRequest  EventType = "completion_request"
	EventCompletionResponse EventType = "completion_response"
	EventDirective          EventType = "directive"
	EventNoDirective        EventType = "no_directive"
	EventApproved           EventType = "approved"
	EventRejected           EventType = "rejected"
	EventCommandResult      EventType = "command_result"
	EventSpawnFailure       EventType = "spawn_failure"
	EventRunComplete        EventType = "run_complete"
	EventRunHalted          EventType = "run_halted"
	EventRunError           EventType = "run_error"
)

// Event represents a loop event with associated data.
type Event struct {
	Type       EventType
	Timestamp  time.Time
	SessionKey string
	Data       map[string]any
}

// EventHandler is a function that handles events.
type EventHandler func(Event)

// EventBus fans loop events out to subscribers. Handlers run synchronously
// on the publishing goroutine.
type EventBus struct {
	mu          sync.RWMutex
	handlers    map[EventType][]EventHandler
	allHandlers []EventHandler
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]EventHandler),
	}
}

// Subscribe registers a handler for a specific event type.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeAll registers a handler for all event types.
func (eb *EventBus) SubscribeAll(handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.allHandlers = append(eb.allHandlers, handler)
}

// Publish sends an event to all registered handlers.
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	for _, handler := range eb.handlers[event.Type] {
		handler(event)
	}
	for _, handler := range eb.allHandlers {
		handler(event)
	}
}

// PublishSimple publishes an event without additional data.
func (eb *EventBus) PublishSimple(eventType EventType, sessionKey string) {
	eb.Publish(Event{
		Type:       eventType,
		SessionKey: sessionKey,
	})
}

// PublishWithData publishes an event with associated data.
func (eb *EventBus) PublishWithData(eventType EventType, sessionKey string, data map[string]any) {
	eb.Publish(Event{
		Type:       eventType,
		SessionKey: sessionKey,
		Data:       data,
	})
}
