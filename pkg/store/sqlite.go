package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	_ "modernc.org/sqlite"
)

// SQLiteStore is the durable backend. Reads go through a bounded LRU cache;
// writes update the database first and the cache second.
type SQLiteStore struct {
	db    *sql.DB
	cache *lru.Cache[string, []byte]
}

// NewSQLiteStore creates/opens the database at path. cacheSize <= 0 disables
// the read cache.
func NewSQLiteStore(path string, cacheSize int) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store db dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// One shared connection avoids writer lock contention under concurrent
	// goroutines.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{db: db}
	if cacheSize > 0 {
		cache, err := lru.New[string, []byte](cacheSize)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("create read cache: %w", err)
		}
		s.cache = cache
	}
	if err := s.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init() error {
	stmts := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA busy_timeout=5000;`,
		`CREATE TABLE IF NOT EXISTS records (
			collection TEXT NOT NULL,
			record_key TEXT NOT NULL,
			value_json TEXT NOT NULL,
			updated_at_ms INTEGER NOT NULL,
			PRIMARY KEY(collection, record_key)
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("init sqlite schema failed on %q: %w", trimSQL(stmt), err)
		}
	}
	return nil
}

func trimSQL(sql string) string {
	line := strings.TrimSpace(sql)
	if len(line) > 96 {
		return line[:96] + "..."
	}
	return line
}

func cacheKey(collection, key string) string {
	return collection + "\x00" + key
}

func (s *SQLiteStore) Get(ctx context.Context, collection, key string) ([]byte, error) {
	if s.cache != nil {
		if v, ok := s.cache.Get(cacheKey(collection, key)); ok {
			return append([]byte(nil), v...), nil
		}
	}

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value_json FROM records WHERE collection = ? AND record_key = ?`, collection, key).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, key, err)
	}
	value := []byte(raw)
	if s.cache != nil {
		s.cache.Add(cacheKey(collection, key), append([]byte(nil), value...))
	}
	return value, nil
}

func (s *SQLiteStore) Put(ctx context.Context, collection, key string, value []byte) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO records(collection, record_key, value_json, updated_at_ms)
VALUES(?, ?, ?, ?)
ON CONFLICT(collection, record_key) DO UPDATE SET
	value_json = excluded.value_json,
	updated_at_ms = excluded.updated_at_ms`,
		collection, key, string(value), time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s/%s: %w", collection, key, err)
	}
	if s.cache != nil {
		s.cache.Add(cacheKey(collection, key), append([]byte(nil), value...))
	}
	return nil
}

func (s *SQLiteStore) Query(ctx context.Context, collection, keyPrefix string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT record_key, value_json, updated_at_ms FROM records
WHERE collection = ? AND substr(record_key, 1, length(?)) = ?
ORDER BY record_key ASC`, collection, keyPrefix, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("query %s/%s*: %w", collection, keyPrefix, err)
	}
	defer rows.Close()

	out := []Record{}
	for rows.Next() {
		var (
			key       string
			raw       string
			updatedMS int64
		)
		if err := rows.Scan(&key, &raw, &updatedMS); err != nil {
			return nil, fmt.Errorf("scan %s record: %w", collection, err)
		}
		out = append(out, Record{
			Collection: collection,
			Key:        key,
			Value:      []byte(raw),
			UpdatedAt:  time.UnixMilli(updatedMS),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s records: %w", collection, err)
	}
	return out, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.db.Close()
}
