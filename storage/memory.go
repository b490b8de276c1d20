package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStorage is an in-memory implementation of the Storage interface.
type MemoryStorage struct {
	records map[string]Record
	mu      sync.RWMutex
}

// NewMemoryStorage creates a new MemoryStorage instance.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		records: make(map[string]Record),
	}
}

// getItem is a standalone generic helper function.
func getItem[T any](ctx context.Context, m map[string]T, id string, errNotFound error) (T, error) {
	return withContext(ctx, func() (T, error) {
		item, ok := m[id]
		if !ok {
			var zero T
			return zero, fmt.Errorf("%w: id=%s", errNotFound, id)
		}
		return item, nil
	})
}

// SaveRecord saves a record to memory.
func (s *MemoryStorage) SaveRecord(ctx context.Context, rec Record) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.records[rec.Document.ID] = rec.Clone()
		return struct{}{}, nil
	})
	return err
}

// GetRecord retrieves a copy of a record from memory.
func (s *MemoryStorage) GetRecord(ctx context.Context, id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, err := getItem(ctx, s.records, id, ErrNotFound)
	if err != nil {
		return Record{}, err
	}
	return rec.Clone(), nil
}

// DeleteRecord removes a record from memory.
func (s *MemoryStorage) DeleteRecord(ctx context.Context, id string) error {
	_, err := withContext(ctx, func() (struct{}, error) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.records[id]; !ok {
			return struct{}{}, fmt.Errorf("%w: id=%s", ErrNotFound, id)
		}
		delete(s.records, id)
		return struct{}{}, nil
	})
	return err
}

// ListIDs returns the stored document ids in ascending order.
func (s *MemoryStorage) ListIDs(ctx context.Context) ([]string, error) {
	return withContext(ctx, func() ([]string, error) {
		s.mu.RLock()
		defer s.mu.RUnlock()
		ids := make([]string, 0, len(s.records))
		for id := range s.records {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		return ids, nil
	})
}
