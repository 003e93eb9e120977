package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Store is a flat key/value namespace with string values.
type Store interface {
	// GetString returns the value for key, or def when the key is absent.
	GetString(ctx context.Context, key, def string) (string, error)

	// PutString creates or replaces the value for key.
	PutString(ctx context.Context, key, value string) error

	// Has reports whether key is present.
	Has(ctx context.Context, key string) (bool, error)

	// Remove deletes key. Removing an absent key is not an error.
	Remove(ctx context.Context, key string) error
}

// SQLiteStore persists settings in the "settings" table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store backed by a migrated settings database.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// GetString implements Store.
func (s *SQLiteStore) GetString(ctx context.Context, key, def string) (string, error) {
	if key == "" {
		return def, ErrInvalidKey
	}

	var value string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM settings WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("%w: get %s: %w", ErrStoreFailed, key, err)
	}
	return value, nil
}

// PutString implements Store.
func (s *SQLiteStore) PutString(ctx context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("%w: put %s: %w", ErrStoreFailed, key, err)
	}
	return nil
}

// Has implements Store.
func (s *SQLiteStore) Has(ctx context.Context, key string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM settings WHERE key = ?)", key).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%w: has %s: %w", ErrStoreFailed, key, err)
	}
	return exists, nil
}

// Remove implements Store.
func (s *SQLiteStore) Remove(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM settings WHERE key = ?", key); err != nil {
		return fmt.Errorf("%w: remove %s: %w", ErrStoreFailed, key, err)
	}
	return nil
}

// MemoryStore is an in-process Store. Used when no settings database is
// configured and in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

// GetString implements Store.
func (m *MemoryStore) GetString(_ context.Context, key, def string) (string, error) {
	if key == "" {
		return def, ErrInvalidKey
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if v, ok := m.values[key]; ok {
		return v, nil
	}
	return def, nil
}

// PutString implements Store.
func (m *MemoryStore) PutString(_ context.Context, key, value string) error {
	if key == "" {
		return ErrInvalidKey
	}
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
	return nil
}

// Has implements Store.
func (m *MemoryStore) Has(_ context.Context, key string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.values[key]
	return ok, nil
}

// Remove implements Store.
func (m *MemoryStore) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
	return nil
}
