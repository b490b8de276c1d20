package storage

import (
	"context"
	"errors"
	"time"

	"github.com/songzhibin97/xflow/types"
)

// ErrNotFound is returned when no record exists for a document id.
var ErrNotFound = errors.New("document not found")

// Record is a registered document together with its registration metadata.
type Record struct {
	Document     types.FlowDocument `json:"document"`
	Revision     uint64             `json:"revision"`
	RegisteredAt time.Time          `json:"registered_at"`
}

// Clone returns a copy of r whose document shares no memory with r.
func (r Record) Clone() Record {
	r.Document = r.Document.Clone()
	return r
}

// Storage defines the interface for persisting and retrieving registered documents.
type Storage interface {
	// SaveRecord stores rec under rec.Document.ID, replacing any previous record.
	SaveRecord(ctx context.Context, rec Record) error

	// GetRecord retrieves a record by document ID.
	GetRecord(ctx context.Context, id string) (Record, error)

	// DeleteRecord removes a record. Deleting a missing id returns ErrNotFound.
	DeleteRecord(ctx context.Context, id string) error

	// ListIDs returns the ids of all stored documents in ascending order.
	ListIDs(ctx context.Context) ([]string, error)
}

// withContext is a standalone generic helper function.
func withContext[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var zero T
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	default:
		return fn()
	}
}
