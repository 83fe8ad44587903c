package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore implements DocumentStore in process memory.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]json.RawMessage // collection -> id -> document
	feeds       map[string]map[int]*feed              // collection -> subscription id -> feed
	nextFeed    int
	closed      bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]json.RawMessage),
		feeds:       make(map[string]map[int]*feed),
	}
}

func (s *MemoryStore) Create(_ context.Context, collection string, data any) (string, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("marshal document failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := newID()
	s.put(collection, id, raw)
	return id, nil
}

func (s *MemoryStore) Read(_ context.Context, path string, out any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.RLock()
	raw, exists := s.collections[collection][id]
	s.mu.RUnlock()

	if !exists {
		return ErrNotFound
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("unmarshal document failed: %w", err)
	}
	return nil
}

func (s *MemoryStore) Set(_ context.Context, path string, data any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal document failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, raw)
	return nil
}

func (s *MemoryStore) Update(_ context.Context, path string, fields map[string]any) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	raw, exists := s.collections[collection][id]
	if !exists {
		return ErrNotFound
	}
	merged, err := mergeFields(raw, fields)
	if err != nil {
		return err
	}
	s.put(collection, id, merged)
	return nil
}

func (s *MemoryStore) Remove(_ context.Context, path string) error {
	collection, id, err := splitPath(path)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.collections[collection][id]; !exists {
		return nil
	}
	delete(s.collections[collection], id)
	s.publish(collection)
	return nil
}

func (s *MemoryStore) List(_ context.Context, collection string) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot(collection), nil
}

func (s *MemoryStore) Find(ctx context.Context, collection, field, value string) ([]Record, error) {
	records, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	return filterRecords(records, field, value), nil
}

func (s *MemoryStore) Subscribe(_ context.Context, collection string, fn func([]Record)) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("memory store is closed")
	}

	f := newFeed(fn)
	id := s.nextFeed
	s.nextFeed++
	if s.feeds[collection] == nil {
		s.feeds[collection] = make(map[int]*feed)
	}
	s.feeds[collection][id] = f
	f.push(s.snapshot(collection))

	return func() {
		s.mu.Lock()
		delete(s.feeds[collection], id)
		s.mu.Unlock()
		f.stop()
	}, nil
}

// Close stops every subscription and waits for their goroutines to finish
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	s.closed = true
	var all []*feed
	for _, feeds := range s.feeds {
		for _, f := range feeds {
			all = append(all, f)
		}
	}
	s.feeds = make(map[string]map[int]*feed)
	s.mu.Unlock()

	for _, f := range all {
		f.stop()
	}
	return nil
}

// put and publish must be called with s.mu held for writing.
func (s *MemoryStore) put(collection, id string, raw json.RawMessage) {
	if s.collections[collection] == nil {
		s.collections[collection] = make(map[string]json.RawMessage)
	}
	s.collections[collection][id] = raw
	s.publish(collection)
}

func (s *MemoryStore) publish(collection string) {
	feeds := s.feeds[collection]
	if len(feeds) == 0 {
		return
	}
	snapshot := s.snapshot(collection)
	for _, f := range feeds {
		f.push(snapshot)
	}
}

func (s *MemoryStore) snapshot(collection string) []Record {
	docs := s.collections[collection]
	records := make([]Record, 0, len(docs))
	for id, raw := range docs {
		records = append(records, Record{Key: id, Data: raw})
	}
	sortRecords(records)
	return records
}
