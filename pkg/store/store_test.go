package store

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name  string `json:"name"`
	Value int    `json:"value"`
}

func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "state", "test.db"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]Store{
		"memory": NewMemoryStore(),
		"sqlite": sqlite,
	}
}

func TestStore_GetPutQuery(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Get(ctx, "things", "missing")
			require.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, PutJSON(ctx, s, "things", Key("c1", "b"), sample{Name: "b", Value: 2}))
			require.NoError(t, PutJSON(ctx, s, "things", Key("c1", "a"), sample{Name: "a", Value: 1}))
			require.NoError(t, PutJSON(ctx, s, "things", Key("c10", "z"), sample{Name: "z", Value: 9}))
			require.NoError(t, PutJSON(ctx, s, "other", Key("c1", "x"), sample{Name: "x"}))

			got, err := GetJSON[sample](ctx, s, "things", Key("c1", "a"))
			require.NoError(t, err)
			assert.Equal(t, 1, got.Value)

			items, err := QueryJSON[sample](ctx, s, "things", Prefix("c1"))
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "a", items[0].Name)
			assert.Equal(t, "b", items[1].Name)

			require.NoError(t, PutJSON(ctx, s, "things", Key("c1", "a"), sample{Name: "a", Value: 5}))
			got, err = GetJSON[sample](ctx, s, "things", Key("c1", "a"))
			require.NoError(t, err)
			assert.Equal(t, 5, got.Value)
		})
	}
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "state", "persist.db")

	s, err := NewSQLiteStore(path, 0)
	require.NoError(t, err)
	require.NoError(t, PutJSON(ctx, s, "characters", "c1", sample{Name: "hero", Value: 7}))
	require.NoError(t, s.Close())

	s2, err := NewSQLiteStore(path, 4)
	require.NoError(t, err)
	defer s2.Close()

	got, err := GetJSON[sample](ctx, s2, "characters", "c1")
	require.NoError(t, err)
	assert.Equal(t, sample{Name: "hero", Value: 7}, got)
}

func TestSQLiteStore_PrefixDoesNotTreatUnderscoreAsWildcard(t *testing.T) {
	ctx := context.Background()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "p.db"), 0)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Put(ctx, "c", "a_b/1", []byte(`{}`)))
	require.NoError(t, s.Put(ctx, "c", "axb/1", []byte(`{}`)))

	recs, err := s.Query(ctx, "c", "a_b/")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a_b/1", recs[0].Key)
}

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	var km KeyedMutex
	var active, maxActive atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("c1")
			defer unlock()
			n := active.Add(1)
			if n > maxActive.Load() {
				maxActive.Store(n)
			}
			time.Sleep(2 * time.Millisecond)
			active.Add(-1)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), maxActive.Load())
	assert.Equal(t, 0, km.Held())
}

func TestKeyedMutex_TryLock(t *testing.T) {
	var km KeyedMutex

	unlock, ok := km.TryLock("c1")
	require.True(t, ok)

	_, ok = km.TryLock("c1")
	assert.False(t, ok, "second TryLock on held key must fail")

	other, ok := km.TryLock("c2")
	require.True(t, ok, "different keys must not contend")
	other()

	unlock()
	again, ok := km.TryLock("c1")
	require.True(t, ok)
	again()
	assert.Equal(t, 0, km.Held())
}
