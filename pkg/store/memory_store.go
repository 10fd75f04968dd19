package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps records in process memory. It is used by tests and by
// the CLI when no workspace is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]map[string]Record
	closed  bool
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: map[string]map[string]Record{}}
}

func (s *MemoryStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), rec.Value...), nil
}

func (s *MemoryStore) Put(ctx context.Context, collection, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errStoreClosed
	}
	coll, ok := s.records[collection]
	if !ok {
		coll = map[string]Record{}
		s.records[collection] = coll
	}
	coll[key] = Record{
		Collection: collection,
		Key:        key,
		Value:      append([]byte(nil), value...),
		UpdatedAt:  time.Now(),
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, collection, keyPrefix string) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []Record{}
	for key, rec := range s.records[collection] {
		if !strings.HasPrefix(key, keyPrefix) {
			continue
		}
		rec.Value = append([]byte(nil), rec.Value...)
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
