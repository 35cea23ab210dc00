package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goodtune/timekeeper/internal/config"
	"github.com/goodtune/timekeeper/internal/storage"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces every key written by the store.
const DefaultKeyPrefix = "timekeeper"

// Store implements the storage.Store interface using Redis
type Store struct {
	client       *redis.Client
	keys         keys
	sessionStore *sessionStore
	historyStore *historyStore
}

type keys struct {
	session string
	history string
}

func newKeys(prefix string) keys {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return keys{
		session: prefix + ":" + storage.KeySessionState,
		history: prefix + ":" + storage.KeyUsageHistory,
	}
}

// Open creates a new Redis-backed storage instance
func Open(cfg config.RedisConfig) (*Store, error) {
	// Parse timeouts
	dialTimeout, err := time.ParseDuration(cfg.DialTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid dial_timeout: %w", err)
	}

	readTimeout, err := time.ParseDuration(cfg.ReadTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid read_timeout: %w", err)
	}

	writeTimeout, err := time.ParseDuration(cfg.WriteTimeout)
	if err != nil {
		return nil, fmt.Errorf("invalid write_timeout: %w", err)
	}

	// Determine address
	addr := cfg.Host
	if cfg.Port > 0 {
		addr = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
		DialTimeout:  dialTimeout,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	})

	// Ping to verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	k := newKeys(cfg.KeyPrefix)
	return &Store{
		client:       client,
		keys:         k,
		sessionStore: &sessionStore{client: client, key: k.session},
		historyStore: &historyStore{client: client, key: k.history},
	}, nil
}

// Close closes the Redis connection
func (s *Store) Close() error {
	return s.client.Close()
}

// Sessions returns the SessionStore implementation
func (s *Store) Sessions() storage.SessionStore {
	return s.sessionStore
}

// History returns the HistoryStore implementation
func (s *Store) History() storage.HistoryStore {
	return s.historyStore
}

// Finalize atomically writes the history field and the session record
func (s *Store) Finalize(ctx context.Context, day string, usageMillis int64, next storage.SessionRecord) error {
	data, err := storage.EncodeSession(next)
	if err != nil {
		return err
	}

	script := redis.NewScript(finalizeScript)
	keys := []string{s.keys.history, s.keys.session}
	args := []interface{}{day, usageMillis, string(data)}

	if err := script.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("failed to finalize day %s: %w", day, err)
	}
	return nil
}

type sessionStore struct {
	client *redis.Client
	key    string
}

// Get retrieves the session record
func (s *sessionStore) Get(ctx context.Context) (*storage.SessionRecord, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return storage.DecodeSession(data)
}

// Put replaces the session record
func (s *sessionStore) Put(ctx context.Context, record storage.SessionRecord) error {
	data, err := storage.EncodeSession(record)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key, data, 0).Err()
}

type historyStore struct {
	client *redis.Client
	key    string
}

// Put sets the usage for a single day
func (s *historyStore) Put(ctx context.Context, day string, usageMillis int64) error {
	return s.client.HSet(ctx, s.key, day, usageMillis).Err()
}

// Get returns the usage for a single day
func (s *historyStore) Get(ctx context.Context, day string) (int64, error) {
	value, err := s.client.HGet(ctx, s.key, day).Result()
	if errors.Is(err, redis.Nil) {
		return 0, storage.ErrNotFound
	}
	if err != nil {
		return 0, err
	}
	return parseMillis(day, value)
}

// GetAll returns every recorded day
func (s *historyStore) GetAll(ctx context.Context) (map[string]int64, error) {
	data, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, err
	}
	return parseHistory(data), nil
}
