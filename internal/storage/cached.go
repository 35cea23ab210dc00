package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultHistoryCacheSize is used when a non-positive cache size is requested.
const DefaultHistoryCacheSize = 64

// CachedStore wraps a Store with an LRU cache of per-day history values.
// Reads of a single day are served from the cache once seen; every write
// through Put or Finalize refreshes it.
type CachedStore struct {
	Store
	history *cachedHistory
}

// NewCachedStore wraps store with a history cache holding up to size days.
func NewCachedStore(store Store, size int) (*CachedStore, error) {
	if size <= 0 {
		size = DefaultHistoryCacheSize
	}

	cache, err := lru.New[string, int64](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create history cache: %w", err)
	}

	return &CachedStore{
		Store:   store,
		history: &cachedHistory{next: store.History(), cache: cache},
	}, nil
}

// History returns the caching HistoryStore.
func (s *CachedStore) History() HistoryStore {
	return s.history
}

// Finalize delegates to the wrapped store and caches the written day.
func (s *CachedStore) Finalize(ctx context.Context, day string, usageMillis int64, next SessionRecord) error {
	if err := s.Store.Finalize(ctx, day, usageMillis, next); err != nil {
		return err
	}
	s.history.cache.Add(day, usageMillis)
	return nil
}

type cachedHistory struct {
	next  HistoryStore
	cache *lru.Cache[string, int64]
}

func (h *cachedHistory) Put(ctx context.Context, day string, usageMillis int64) error {
	if err := h.next.Put(ctx, day, usageMillis); err != nil {
		return err
	}
	h.cache.Add(day, usageMillis)
	return nil
}

func (h *cachedHistory) Get(ctx context.Context, day string) (int64, error) {
	if v, ok := h.cache.Get(day); ok {
		return v, nil
	}

	v, err := h.next.Get(ctx, day)
	if err != nil {
		return 0, err
	}
	h.cache.Add(day, v)
	return v, nil
}

func (h *cachedHistory) GetAll(ctx context.Context) (map[string]int64, error) {
	all, err := h.next.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	for day, v := range all {
		h.cache.Add(day, v)
	}
	return all, nil
}
