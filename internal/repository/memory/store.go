// Package memory is an in-process RecordStore used for local runs and tests.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"parking_network/internal/repository"
)

type collection struct {
	order   []string
	records map[string]repository.Record
}

type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
}

func NewStore() *Store {
	return &Store{collections: make(map[string]*collection)}
}

var _ repository.RecordStore = (*Store)(nil)

func (s *Store) coll(name string) *collection {
	c, ok := s.collections[name]
	if !ok {
		c = &collection{records: make(map[string]repository.Record)}
		s.collections[name] = c
	}
	return c
}

func clone(rec repository.Record) repository.Record {
	rec.Body = append(json.RawMessage(nil), rec.Body...)
	return rec
}

func (s *Store) List(ctx context.Context, name string) ([]repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return []repository.Record{}, nil
	}
	out := make([]repository.Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, clone(c.records[id]))
	}
	return out, nil
}

func (s *Store) Find(ctx context.Context, name, field, value string) ([]repository.Record, error) {
	all, err := s.List(ctx, name)
	if err != nil {
		return nil, err
	}
	out := make([]repository.Record, 0)
	for _, rec := range all {
		if repository.FieldEquals(rec.Body, field, value) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, name, id string) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return repository.Record{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[name]
	if !ok {
		return repository.Record{}, repository.ErrNotFound
	}
	rec, ok := c.records[id]
	if !ok {
		return repository.Record{}, repository.ErrNotFound
	}
	return clone(rec), nil
}

func (s *Store) Create(ctx context.Context, name string, rec repository.Record) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return repository.Record{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.coll(name)
	if _, exists := c.records[rec.ID]; exists {
		return repository.Record{}, fmt.Errorf("%w: %s/%s", repository.ErrDuplicateEntry, name, rec.ID)
	}
	rec = clone(rec)
	rec.Version = 1
	c.records[rec.ID] = rec
	c.order = append(c.order, rec.ID)
	return clone(rec), nil
}

func (s *Store) Replace(ctx context.Context, name, id string, expectedVersion int64, body json.RawMessage) (repository.Record, error) {
	return s.swap(ctx, name, id, expectedVersion, func(json.RawMessage) (json.RawMessage, error) {
		return body, nil
	})
}

func (s *Store) Patch(ctx context.Context, name, id string, expectedVersion int64, fields map[string]any) (repository.Record, error) {
	return s.swap(ctx, name, id, expectedVersion, func(old json.RawMessage) (json.RawMessage, error) {
		return repository.MergeFields(old, fields)
	})
}

func (s *Store) swap(ctx context.Context, name, id string, expectedVersion int64, next func(json.RawMessage) (json.RawMessage, error)) (repository.Record, error) {
	if err := ctx.Err(); err != nil {
		return repository.Record{}, fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return repository.Record{}, repository.ErrNotFound
	}
	cur, ok := c.records[id]
	if !ok {
		return repository.Record{}, repository.ErrNotFound
	}
	if cur.Version != expectedVersion {
		return repository.Record{}, fmt.Errorf("%w: %s/%s at version %d, expected %d", repository.ErrStaleWrite, name, id, cur.Version, expectedVersion)
	}
	body, err := next(cur.Body)
	if err != nil {
		return repository.Record{}, err
	}
	updated := repository.Record{ID: id, Version: cur.Version + 1, Body: append(json.RawMessage(nil), body...)}
	c.records[id] = updated
	return clone(updated), nil
}

func (s *Store) Delete(ctx context.Context, name, id string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.collections[name]
	if !ok {
		return repository.ErrNotFound
	}
	if _, ok := c.records[id]; !ok {
		return repository.ErrNotFound
	}
	delete(c.records, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	return nil
}

func (s *Store) Close(context.Context) error { return nil }
