package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// ErrCorrupt is returned when a stored record exists but cannot be decoded.
var ErrCorrupt = errors.New("storage: record corrupt")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
	History() HistoryStore

	// Finalize writes usageMillis into history under day and then persists next.
	// Both writes succeed or neither does.
	Finalize(ctx context.Context, day string, usageMillis int64, next SessionRecord) error
}

// SessionStore persists the single running session record.
type SessionStore interface {
	Get(ctx context.Context) (*SessionRecord, error)
	Put(ctx context.Context, record SessionRecord) error
}

// HistoryStore maps a day key to the finalized usage for that day.
// Put overwrites any existing value. There is no deletion or expiry.
type HistoryStore interface {
	Put(ctx context.Context, day string, usageMillis int64) error
	Get(ctx context.Context, day string) (int64, error)
	GetAll(ctx context.Context) (map[string]int64, error)
}
