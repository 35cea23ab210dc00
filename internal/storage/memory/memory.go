// Package memory implements storage.Store over an in-process string-keyed map.
// Values are kept in their JSON wire form so that decoding behaves exactly as
// it does against a durable backend.
package memory

import (
	"context"
	"sync"

	"github.com/goodtune/timekeeper/internal/storage"
)

// Store is an in-memory storage.Store.
type Store struct {
	mu     sync.Mutex
	values map[string][]byte
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{values: make(map[string][]byte)}
}

// SetRaw stores raw bytes under key, bypassing encoding.
func (s *Store) SetRaw(key string, value []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = append([]byte(nil), value...)
}

// Raw returns the raw bytes stored under key.
func (s *Store) Raw(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Close is a no-op.
func (s *Store) Close() error { return nil }

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return sessionStore{s} }

// History returns the history store.
func (s *Store) History() storage.HistoryStore { return historyStore{s} }

// Finalize writes the history entry and then the session record under one lock.
func (s *Store) Finalize(ctx context.Context, day string, usageMillis int64, next storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.loadHistory()
	if err != nil {
		history = make(map[string]int64)
	}
	history[day] = usageMillis
	historyData, err := storage.EncodeHistory(history)
	if err != nil {
		return err
	}
	sessionData, err := storage.EncodeSession(next)
	if err != nil {
		return err
	}

	s.values[storage.KeyUsageHistory] = historyData
	s.values[storage.KeySessionState] = sessionData
	return nil
}

// loadHistory must be called with the lock held.
func (s *Store) loadHistory() (map[string]int64, error) {
	data, ok := s.values[storage.KeyUsageHistory]
	if !ok {
		return make(map[string]int64), nil
	}
	return storage.DecodeHistory(data)
}

type sessionStore struct{ s *Store }

func (ss sessionStore) Get(ctx context.Context) (*storage.SessionRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()

	data, ok := ss.s.values[storage.KeySessionState]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return storage.DecodeSession(data)
}

func (ss sessionStore) Put(ctx context.Context, record storage.SessionRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := storage.EncodeSession(record)
	if err != nil {
		return err
	}
	ss.s.mu.Lock()
	defer ss.s.mu.Unlock()
	ss.s.values[storage.KeySessionState] = data
	return nil
}

type historyStore struct{ s *Store }

func (hs historyStore) Put(ctx context.Context, day string, usageMillis int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()

	history, err := hs.s.loadHistory()
	if err != nil {
		history = make(map[string]int64)
	}
	history[day] = usageMillis
	data, err := storage.EncodeHistory(history)
	if err != nil {
		return err
	}
	hs.s.values[storage.KeyUsageHistory] = data
	return nil
}

func (hs historyStore) Get(ctx context.Context, day string) (int64, error) {
	all, err := hs.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := all[day]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return v, nil
}

func (hs historyStore) GetAll(ctx context.Context) (map[string]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	hs.s.mu.Lock()
	defer hs.s.mu.Unlock()
	return hs.s.loadHistory()
}
