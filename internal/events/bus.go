// Package events provides the in-process event bus for the scoring engine.
// Emitters publish typed events; subscribers (websocket stream, Kafka bridge,
// cache invalidation) fan out from here.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType represents different event types
type EventType string

const (
	// Scoring lifecycle
	ScoreUpdated       EventType = "SCORE_UPDATED"
	RecomputeStarted   EventType = "RECOMPUTE_STARTED"
	RecomputeCompleted EventType = "RECOMPUTE_COMPLETED"

	// Configuration lifecycle
	ConfigUpdated EventType = "CONFIG_UPDATED"
	ConfigReset   EventType = "CONFIG_RESET"

	// Collaborator activity
	SignalIngested EventType = "SIGNAL_INGESTED"
	AccountAdded   EventType = "ACCOUNT_ADDED"

	// Operations
	BackupCompleted EventType = "BACKUP_COMPLETED"
	ErrorOccurred   EventType = "ERROR_OCCURRED"
)

// Event represents a system event
type Event struct {
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Module    string         `json:"module"`
	Data      map[string]any `json:"data"`
}

// Handler receives an event. Handlers run synchronously on the emitter's
// goroutine and must not block; anything slow hands off to a channel.
type Handler func(event *Event)

// Bus fans events out to subscribed handlers
type Bus struct {
	mu          sync.RWMutex
	handlers    map[EventType]map[int]Handler
	allHandlers map[int]Handler
	nextID      int
	log         zerolog.Logger
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers:    make(map[EventType]map[int]Handler),
		allHandlers: make(map[int]Handler),
		log:         log.With().Str("component", "events").Logger(),
	}
}

// Subscribe registers a handler for one event type.
// The returned function removes the subscription.
func (b *Bus) Subscribe(eventType EventType, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID

	if b.handlers[eventType] == nil {
		b.handlers[eventType] = make(map[int]Handler)
	}
	b.handlers[eventType][id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers[eventType], id)
	}
}

// SubscribeAll registers a handler for every event type.
// Used by the websocket stream and the Kafka bridge.
func (b *Bus) SubscribeAll(handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.allHandlers[id] = handler

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.allHandlers, id)
	}
}

// SubscriberCount returns the number of registered handlers across typed
// and catch-all subscriptions.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := len(b.allHandlers)
	for _, handlers := range b.handlers {
		count += len(handlers)
	}
	return count
}

// Emit publishes an event to all matching subscribers
func (b *Bus) Emit(eventType EventType, module string, data map[string]any) {
	event := &Event{
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Module:    module,
		Data:      data,
	}

	b.mu.RLock()
	typed := make([]Handler, 0, len(b.handlers[eventType]))
	for _, h := range b.handlers[eventType] {
		typed = append(typed, h)
	}
	all := make([]Handler, 0, len(b.allHandlers))
	for _, h := range b.allHandlers {
		all = append(all, h)
	}
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Int("subscribers", len(typed)+len(all)).
		Msg("Event emitted")

	for _, h := range typed {
		h(event)
	}
	for _, h := range all {
		h(event)
	}
}

// EmitError emits an error event
func (b *Bus) EmitError(module string, err error, context map[string]any) {
	data := map[string]any{
		"error": err.Error(),
	}
	if context != nil {
		data["context"] = context
	}
	b.Emit(ErrorOccurred, module, data)
}
