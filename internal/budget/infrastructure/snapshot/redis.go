package snapshot

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	budget "grants-cloud/internal/budget/domain"
)

const defaultRedisKey = "grants:snapshot"

// RedisStore keeps the snapshot as a JSON document under one key.
type RedisStore struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithKey overrides the default key.
func WithKey(key string) RedisOption {
	return func(s *RedisStore) {
		if key != "" {
			s.key = key
		}
	}
}

// WithTTL expires the snapshot after ttl. Zero keeps it forever.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// NewRedisStore constructs a redis store.
func NewRedisStore(rdb *redis.Client, opts ...RedisOption) (*RedisStore, error) {
	if rdb == nil {
		return nil, errors.New("snapshot: nil redis client")
	}
	store := &RedisStore{rdb: rdb, key: defaultRedisKey}
	for _, opt := range opts {
		opt(store)
	}
	return store, nil
}

// Load fetches the snapshot.
func (s *RedisStore) Load(ctx context.Context) (*budget.Snapshot, error) {
	data, err := s.rdb.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNoSnapshot
		}
		return nil, err
	}
	var snap budget.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Save stores the snapshot.
func (s *RedisStore) Save(ctx context.Context, snap *budget.Snapshot) error {
	if snap == nil {
		return errors.New("snapshot: nil snapshot")
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key, data, s.ttl).Err()
}
