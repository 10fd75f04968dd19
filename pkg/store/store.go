// Package store provides the key/value persistence used by the narrative
// trackers and the game repository. Records live in named collections and
// are addressed by slash-separated keys so per-character scans are prefix
// queries.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound is returned by Get when no record exists for the key.
var ErrNotFound = errors.New("store: record not found")

var errStoreClosed = errors.New("store: closed")

// Record is one stored value.
type Record struct {
	Collection string
	Key        string
	Value      []byte
	UpdatedAt  time.Time
}

// Store is the storage contract every backend implements.
type Store interface {
	Get(ctx context.Context, collection, key string) ([]byte, error)
	Put(ctx context.Context, collection, key string, value []byte) error
	// Query returns records whose key starts with keyPrefix, ordered by key.
	Query(ctx context.Context, collection, keyPrefix string) ([]Record, error)
	Close() error
}

// Key joins key segments with "/".
func Key(parts ...string) string {
	return strings.Join(parts, "/")
}

// Prefix returns the scan prefix for every record under the given segments.
func Prefix(parts ...string) string {
	return Key(parts...) + "/"
}

func GetJSON[T any](ctx context.Context, s Store, collection, key string) (T, error) {
	var out T
	raw, err := s.Get(ctx, collection, key)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode %s/%s: %w", collection, key, err)
	}
	return out, nil
}

func PutJSON(ctx context.Context, s Store, collection, key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, key, err)
	}
	return s.Put(ctx, collection, key, raw)
}

func QueryJSON[T any](ctx context.Context, s Store, collection, keyPrefix string) ([]T, error) {
	records, err := s.Query(ctx, collection, keyPrefix)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(records))
	for _, rec := range records {
		var v T
		if err := json.Unmarshal(rec.Value, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", collection, rec.Key, err)
		}
		out = append(out, v)
	}
	return out, nil
}
