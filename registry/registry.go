// Package registry admits flow documents into storage only after they pass
// structural validation.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"github.com/songzhibin97/gkit/generator"
	"github.com/songzhibin97/xflow/events"
	"github.com/songzhibin97/xflow/storage"
	"github.com/songzhibin97/xflow/types"
	"github.com/songzhibin97/xflow/validation"
)

// Standard error definitions
var (
	ErrGeneratorRequired = errors.New("generator is required")
	ErrRejected          = errors.New("document rejected")
	ErrNilDocument       = errors.New("document cannot be nil")
)

// RejectedError is returned by Register when a document fails validation.
// It unwraps to ErrRejected and to every violation in the report.
type RejectedError struct {
	ID     string
	Report *validation.Report
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("%s: %q has %d violation(s)", ErrRejected.Error(), e.ID, len(e.Report.Violations))
}

func (e *RejectedError) Unwrap() []error {
	errs := []error{ErrRejected}
	if err := e.Report.Err(); err != nil {
		errs = append(errs, err)
	}
	return errs
}

// Registry validates, versions and stores flow documents.
type Registry struct {
	store     storage.Storage
	validator *validation.Validator
	eventBus  *events.EventBus
	generate  generator.Generator
	metrics   *Metrics
	logger    hclog.Logger
	now       func() time.Time

	mu    sync.RWMutex
	cache map[string]storage.Record
}

// Option defines functional options for configuring a Registry.
type Option func(*Registry)

// WithValidator replaces the default validator.
func WithValidator(v *validation.Validator) Option {
	return func(r *Registry) {
		if v != nil {
			r.validator = v
		}
	}
}

// WithEventBus replaces the default event bus.
func WithEventBus(bus *events.EventBus) Option {
	return func(r *Registry) {
		if bus != nil {
			r.eventBus = bus
		}
	}
}

// WithMetrics sets the collectors updated on every validation.
func WithMetrics(m *Metrics) Option {
	return func(r *Registry) {
		if m != nil {
			r.metrics = m
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger hclog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRegistry creates a Registry with the given generator and storage.
// A nil store falls back to an in-memory one.
func NewRegistry(generate generator.Generator, store storage.Storage, options ...Option) (*Registry, error) {
	if generate == nil {
		return nil, ErrGeneratorRequired
	}

	if store == nil {
		store = storage.NewMemoryStorage()
	}

	r := &Registry{
		store:    store,
		generate: generate,
		metrics:  NewMetrics(nil),
		logger:   hclog.NewNullLogger(),
		now:      time.Now,
		cache:    make(map[string]storage.Record),
	}
	for _, option := range options {
		option(r)
	}
	if r.validator == nil {
		r.validator = validation.New(validation.WithLogger(r.logger.Named("validation")))
	}
	if r.eventBus == nil {
		r.eventBus = events.NewEventBus(events.WithLogger(r.logger.Named("events")))
	}
	return r, nil
}

// SubscribeEvent subscribes an event handler to a specific event type.
func (r *Registry) SubscribeEvent(eventType string, handler events.EventHandler) {
	r.eventBus.Subscribe(eventType, handler)
}

// Validate checks doc without storing it.
func (r *Registry) Validate(doc *types.FlowDocument) *validation.Report {
	report := r.validator.ValidateDocument(doc)
	r.metrics.observe(report)
	return report
}

// Register validates doc and, if it is clean, stores it under a fresh
// revision. An empty id is replaced by a random UUID. The registry keeps its
// own copy: later changes to doc or to the returned record do not reach it.
func (r *Registry) Register(ctx context.Context, doc *types.FlowDocument) (storage.Record, error) {
	select {
	case <-ctx.Done():
		return storage.Record{}, ctx.Err()
	default:
	}

	if doc != nil {
		snapshot := doc.Clone()
		doc = &snapshot
	}
	report := r.Validate(doc)
	if !report.Valid() {
		id := ""
		if doc != nil {
			id = doc.ID
		}
		r.logger.Warn("document rejected", "id", id, "violations", len(report.Violations))
		r.publishEvent(ctx, events.DocumentRejected, id, map[string]interface{}{
			"violations": len(report.Violations),
			"kinds":      report.Kinds(),
		})
		return storage.Record{}, &RejectedError{ID: id, Report: report}
	}

	stored := *doc
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	revision, err := r.generate.NextID()
	if err != nil {
		return storage.Record{}, fmt.Errorf("failed to generate revision: %w", err)
	}

	rec := storage.Record{
		Document:     stored,
		Revision:     revision,
		RegisteredAt: r.now().UTC(),
	}
	if err := r.store.SaveRecord(ctx, rec); err != nil {
		return storage.Record{}, fmt.Errorf("failed to save document %s: %w", stored.ID, err)
	}

	r.mu.Lock()
	r.cache[stored.ID] = rec
	r.mu.Unlock()

	r.logger.Info("document registered", "id", stored.ID, "revision", revision)
	r.publishEvent(ctx, events.DocumentRegistered, stored.ID, map[string]interface{}{
		"revision": revision,
		"version":  stored.Version,
	})
	return rec.Clone(), nil
}

// Get retrieves a copy of a registered document, checking the cache first
// then storage.
func (r *Registry) Get(ctx context.Context, id string) (storage.Record, error) {
	select {
	case <-ctx.Done():
		return storage.Record{}, ctx.Err()
	default:
	}

	r.mu.RLock()
	rec, ok := r.cache[id]
	r.mu.RUnlock()
	if ok {
		return rec.Clone(), nil
	}

	rec, err := r.store.GetRecord(ctx, id)
	if err != nil {
		return storage.Record{}, fmt.Errorf("failed to get document: %w", err)
	}

	r.mu.Lock()
	r.cache[id] = rec
	r.mu.Unlock()
	return rec.Clone(), nil
}

// List returns the ids of every registered document in ascending order.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	ids, err := r.store.ListIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return ids, nil
}

// Remove deletes a registered document.
func (r *Registry) Remove(ctx context.Context, id string) error {
	if err := r.store.DeleteRecord(ctx, id); err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}

	r.mu.Lock()
	delete(r.cache, id)
	r.mu.Unlock()

	r.logger.Info("document removed", "id", id)
	r.publishEvent(ctx, events.DocumentRemoved, id, nil)
	return nil
}

// publishEvent hands an event to the bus. Events without subscribers are dropped.
func (r *Registry) publishEvent(ctx context.Context, eventType, documentID string, data map[string]interface{}) {
	err := r.eventBus.Publish(ctx, events.Event{
		Type:       eventType,
		DocumentID: documentID,
		Data:       data,
	})
	if err != nil && !errors.Is(err, events.ErrNoHandler) {
		r.logger.Debug("event not published", "type", eventType, "id", documentID, "error", err)
	}
}

// Stop gracefully stops the registry's event processing.
func (r *Registry) Stop(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		r.eventBus.Stop()
		return nil
	}
}
