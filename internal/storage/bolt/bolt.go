package bolt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/timekeeper/internal/storage"
	"go.etcd.io/bbolt"
)

const (
	bucketTimekeeper = "timekeeper"

	// keyHistoryCorrupt holds the last history value that failed to decode
	// before it was replaced by a fresh map.
	keyHistoryCorrupt = storage.KeyUsageHistory + ".corrupt"
)

// Store implements the storage.Store interface using bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens a BoltDB-backed store.
func Open(path string) (*Store, error) {
	if err := storage.EnsureParentDir(path); err != nil {
		return nil, err
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open bolt db: %w", err)
	}

	store := &Store{db: db}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(bucketTimekeeper)); err != nil {
			return fmt.Errorf("create bucket %s: %w", bucketTimekeeper, err)
		}
		return nil
	})
}

// Close closes the underlying store database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Sessions returns the session store.
func (s *Store) Sessions() storage.SessionStore { return &sessionStore{db: s.db} }

// History returns the history store.
func (s *Store) History() storage.HistoryStore { return &historyStore{db: s.db} }

// Finalize writes the history entry and the session record in one transaction.
func (s *Store) Finalize(ctx context.Context, day string, usageMillis int64, next storage.SessionRecord) error {
	sessionData, err := storage.EncodeSession(next)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := bucket(tx)
		if err != nil {
			return err
		}
		if err := putHistory(b, day, usageMillis); err != nil {
			return err
		}
		return b.Put([]byte(storage.KeySessionState), sessionData)
	})
}

func bucket(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	b := tx.Bucket([]byte(bucketTimekeeper))
	if b == nil {
		return nil, fmt.Errorf("bucket missing: %s", bucketTimekeeper)
	}
	return b, nil
}

// putHistory sets one day inside the history document held in b.
func putHistory(b *bbolt.Bucket, day string, usageMillis int64) error {
	history := make(map[string]int64)
	if existing := b.Get([]byte(storage.KeyUsageHistory)); existing != nil {
		decoded, err := storage.DecodeHistory(existing)
		switch {
		case err == nil:
			history = decoded
		case errors.Is(err, storage.ErrCorrupt):
			backup := append([]byte(nil), existing...)
			if err := b.Put([]byte(keyHistoryCorrupt), backup); err != nil {
				return fmt.Errorf("back up corrupt history: %w", err)
			}
		default:
			return err
		}
	}

	history[day] = usageMillis
	data, err := storage.EncodeHistory(history)
	if err != nil {
		return err
	}
	return b.Put([]byte(storage.KeyUsageHistory), data)
}

func getValue(ctx context.Context, db *bbolt.DB, key string) ([]byte, error) {
	var value []byte
	err := db.View(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := bucket(tx)
		if err != nil {
			return err
		}
		v := b.Get([]byte(key))
		if v == nil {
			return storage.ErrNotFound
		}
		// bbolt values are only valid for the life of the transaction
		value = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Get(ctx context.Context) (*storage.SessionRecord, error) {
	data, err := getValue(ctx, s.db, storage.KeySessionState)
	if err != nil {
		return nil, err
	}
	return storage.DecodeSession(data)
}

func (s *sessionStore) Put(ctx context.Context, record storage.SessionRecord) error {
	data, err := storage.EncodeSession(record)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := bucket(tx)
		if err != nil {
			return err
		}
		return b.Put([]byte(storage.KeySessionState), data)
	})
}

type historyStore struct {
	db *bbolt.DB
}

func (s *historyStore) Put(ctx context.Context, day string, usageMillis int64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := bucket(tx)
		if err != nil {
			return err
		}
		return putHistory(b, day, usageMillis)
	})
}

func (s *historyStore) Get(ctx context.Context, day string) (int64, error) {
	all, err := s.GetAll(ctx)
	if err != nil {
		return 0, err
	}
	v, ok := all[day]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return v, nil
}

func (s *historyStore) GetAll(ctx context.Context) (map[string]int64, error) {
	data, err := getValue(ctx, s.db, storage.KeyUsageHistory)
	if errors.Is(err, storage.ErrNotFound) {
		return make(map[string]int64), nil
	}
	if err != nil {
		return nil, err
	}
	return storage.DecodeHistory(data)
}
