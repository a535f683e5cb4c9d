package event

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/walrusagents/blobflow/sdk/log"
)

// Handler is a function that processes events
type Handler func(Event)

// Bus manages event subscriptions and dispatching. Handlers run on their own
// goroutines; a slow UI handler never blocks a flow transition.
type Bus struct {
	subscribers      map[EventType][]Handler // Type-specific handlers
	wildcardHandlers []Handler               // Handlers for all events
	mu               sync.RWMutex
	logger           log.Logger
	workerPool       chan struct{} // Limits concurrent handler goroutines
	maxWorkers       int
}

// NewBus creates a new event bus
func NewBus(logger log.Logger, maxWorkers int) *Bus {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	if maxWorkers <= 0 {
		maxWorkers = 50
	}

	return &Bus{
		subscribers: make(map[EventType][]Handler),
		logger:      logger,
		workerPool:  make(chan struct{}, maxWorkers),
		maxWorkers:  maxWorkers,
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug(context.Background(), "Subscribing handler to event type", "eventType", eventType)
	b.subscribers[eventType] = append(b.subscribers[eventType], handler)
}

// SubscribeAll registers a handler for all event types
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logger.Debug(context.Background(), "Subscribing handler to all event types")
	b.wildcardHandlers = append(b.wildcardHandlers, handler)
}

// safelyCallHandler executes a handler with panic recovery on a worker slot.
func (b *Bus) safelyCallHandler(handler Handler, event Event) {
	b.workerPool <- struct{}{}

	go func() {
		defer func() {
			<-b.workerPool

			if r := recover(); r != nil {
				b.logger.Error(context.Background(),
					"Event handler panicked",
					"error", r,
					"eventType", event.Type,
					"stackTrace", string(debug.Stack()),
				)
			}
		}()

		handler(copyEvent(event))
	}()
}

// copyEvent gives every handler its own Data map.
func copyEvent(e Event) Event {
	copied := Event{
		Type:      e.Type,
		SessionID: e.SessionID,
		Timestamp: e.Timestamp,
		Data:      make(EventData, len(e.Data)),
	}
	for k, v := range e.Data {
		copied.Data[k] = v
	}
	return copied
}

// Publish sends an event to all relevant subscribers
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug(context.Background(), "Publishing event",
		"type", event.Type,
		"sessionID", event.SessionID)

	for _, handler := range b.subscribers[event.Type] {
		b.safelyCallHandler(handler, event)
	}
	for _, handler := range b.wildcardHandlers {
		b.safelyCallHandler(handler, event)
	}
}

// WaitForHandlers blocks until every in-flight handler has returned.
func (b *Bus) WaitForHandlers() {
	for i := 0; i < b.maxWorkers; i++ {
		b.workerPool <- struct{}{}
	}
	for i := 0; i < b.maxWorkers; i++ {
		<-b.workerPool
	}
}

// Close releases resources used by the event bus
func (b *Bus) Close() {
	b.WaitForHandlers()
}
