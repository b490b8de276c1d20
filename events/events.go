// Package events delivers document lifecycle notifications to subscribers.
package events

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
)

var (
	// ErrBusClosed indicates the event bus has been closed.
	ErrBusClosed = errors.New("event bus is closed")
	// ErrChannelFull indicates the event channel is full and cannot accept more events.
	ErrChannelFull = errors.New("event channel is full")
	// ErrNoHandler indicates no handlers are registered for the event type.
	ErrNoHandler = errors.New("no handlers registered for event type")
)

// Event types published by the document registry.
const (
	DocumentRegistered = "document_registered"
	DocumentRejected   = "document_rejected"
	DocumentRemoved    = "document_removed"
)

// Event represents a document lifecycle event.
type Event struct {
	Type       string                 // e.g., "document_registered", "document_rejected"
	DocumentID string                 // Flow document ID
	Data       map[string]interface{} // Additional event data
}

// EventHandler defines the interface for handling events.
type EventHandler interface {
	Handle(ctx context.Context, event Event) error
}

// EventHandlerFunc is a function adapter for EventHandler.
type EventHandlerFunc func(ctx context.Context, event Event) error

// Handle implements the EventHandler interface.
func (f EventHandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// EventBus fans events out to the handlers subscribed to their type.
// Publish queues events for a single background worker; PublishSync runs
// the handlers on the caller's goroutine.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]EventHandler

	// stateMu guards closed and serializes sends against close(queue).
	stateMu sync.RWMutex
	closed  bool
	queue   chan Event

	onError     func(event Event, err error)
	syncTimeout time.Duration
	logger      hclog.Logger
	done        sync.WaitGroup
}

// EventBusOption defines functional options for configuring EventBus.
type EventBusOption func(*EventBus)

// WithBufferSize sets the event channel buffer size.
func WithBufferSize(size int) EventBusOption {
	return func(eb *EventBus) {
		if size > 0 {
			eb.queue = make(chan Event, size)
		}
	}
}

// WithErrorHandler replaces the default handler for async handler errors.
func WithErrorHandler(handler func(event Event, err error)) EventBusOption {
	return func(eb *EventBus) {
		if handler != nil {
			eb.onError = handler
		}
	}
}

// WithSyncTimeout bounds how long PublishSync waits for its handlers.
func WithSyncTimeout(d time.Duration) EventBusOption {
	return func(eb *EventBus) {
		if d > 0 {
			eb.syncTimeout = d
		}
	}
}

// WithLogger sets the logger used by the default error handler.
func WithLogger(logger hclog.Logger) EventBusOption {
	return func(eb *EventBus) {
		if logger != nil {
			eb.logger = logger
		}
	}
}

// NewEventBus creates an EventBus and starts its worker. Defaults: a buffer
// of 100 events, a 5s PublishSync timeout, and handler errors logged at
// error level.
func NewEventBus(options ...EventBusOption) *EventBus {
	eb := &EventBus{
		handlers:    make(map[string][]EventHandler),
		queue:       make(chan Event, 100),
		syncTimeout: 5 * time.Second,
		logger:      hclog.NewNullLogger(),
	}
	eb.onError = eb.logError

	for _, option := range options {
		option(eb)
	}

	eb.done.Add(1)
	go eb.run()

	return eb
}

// Subscribe subscribes a handler to an event type.
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	eb.handlers[eventType] = append(eb.handlers[eventType], handler)
}

// SubscribeFunc subscribes a function as a handler to an event type.
func (eb *EventBus) SubscribeFunc(eventType string, handlerFunc func(ctx context.Context, event Event) error) {
	eb.Subscribe(eventType, EventHandlerFunc(handlerFunc))
}

// Unsubscribe removes handler from eventType and reports whether it was
// subscribed. Handlers are matched by identity: pointer and func handlers
// can be removed, value handlers stay subscribed until Stop.
func (eb *EventBus) Unsubscribe(eventType string, handler EventHandler) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	handlers := eb.handlers[eventType]
	for i, h := range handlers {
		if sameHandler(h, handler) {
			handlers = append(handlers[:i:i], handlers[i+1:]...)
			if len(handlers) == 0 {
				delete(eb.handlers, eventType)
			} else {
				eb.handlers[eventType] = handlers
			}
			return true
		}
	}
	return false
}

// sameHandler compares handlers by the address they carry. Value handlers
// have no identity and never match.
func sameHandler(a, b EventHandler) bool {
	if a == nil || b == nil {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Map, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	default:
		return false
	}
}

// HasSubscribers checks if there are any subscribers for a given event type.
func (eb *EventBus) HasSubscribers(eventType string) bool {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType]) > 0
}

// snapshot copies the handler list so handlers may (un)subscribe while running.
func (eb *EventBus) snapshot(eventType string) []EventHandler {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return append([]EventHandler(nil), eb.handlers[eventType]...)
}

// Publish queues event for asynchronous delivery. It never blocks: a full
// queue returns ErrChannelFull.
func (eb *EventBus) Publish(ctx context.Context, event Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !eb.HasSubscribers(event.Type) {
		eb.stateMu.RLock()
		closed := eb.closed
		eb.stateMu.RUnlock()
		if closed {
			return ErrBusClosed
		}
		return ErrNoHandler
	}

	eb.stateMu.RLock()
	defer eb.stateMu.RUnlock()
	if eb.closed {
		return ErrBusClosed
	}

	select {
	case eb.queue <- event:
		return nil
	default:
		return ErrChannelFull
	}
}

// PublishSync runs every handler for event and returns their errors.
func (eb *EventBus) PublishSync(ctx context.Context, event Event) []error {
	eb.stateMu.RLock()
	closed := eb.closed
	eb.stateMu.RUnlock()
	if closed {
		return []error{ErrBusClosed}
	}

	handlers := eb.snapshot(event.Type)
	if len(handlers) == 0 {
		return []error{ErrNoHandler}
	}

	ctx, cancel := context.WithTimeout(ctx, eb.syncTimeout)
	defer cancel()
	return dispatch(ctx, handlers, event)
}

// Stop closes the bus, discards queued events and waits for the worker.
// It is safe to call more than once.
func (eb *EventBus) Stop() {
	eb.stateMu.Lock()
	if !eb.closed {
		eb.closed = true
		for len(eb.queue) > 0 {
			<-eb.queue
		}
		close(eb.queue)
	}
	eb.stateMu.Unlock()

	eb.done.Wait()
}

func (eb *EventBus) run() {
	defer eb.done.Done()

	for event := range eb.queue {
		handlers := eb.snapshot(event.Type)
		if len(handlers) == 0 {
			continue
		}
		for _, err := range dispatch(context.Background(), handlers, event) {
			eb.onError(event, err)
		}
	}
}

// dispatch runs the handlers concurrently and collects their errors.
func dispatch(ctx context.Context, handlers []EventHandler, event Event) []error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, handler := range handlers {
		wg.Add(1)
		go func(h EventHandler) {
			defer wg.Done()
			if err := h.Handle(ctx, event); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(handler)
	}
	wg.Wait()
	return errs
}

// logError is the default error handler.
func (eb *EventBus) logError(event Event, err error) {
	eb.logger.Error("event handler failed", "type", event.Type, "document", event.DocumentID, "error", err)
}
