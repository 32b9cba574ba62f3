package credential

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

var _ Store = (*RedisStore)(nil)

// RedisStore persists the session record as a single JSON value under one
// key. A SET replaces the whole record atomically, which satisfies the
// no-partial-write requirement without any scripting.
type RedisStore struct {
	client redis.UniversalClient
	key    string
}

// NewRedisStore creates a RedisStore writing to the given key.
func NewRedisStore(client redis.UniversalClient, key string) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("[NewRedisStore] client is required")
	}
	if key == "" {
		return nil, errors.New("[NewRedisStore] key is required")
	}
	return &RedisStore{client: client, key: key}, nil
}

// Load implements Store.
func (rs *RedisStore) Load() (*PersistedSession, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	data, err := rs.client.Get(ctx, rs.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[RedisStore.Load] GET")
	}
	var session PersistedSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, errors.Wrap(err, "[RedisStore.Load] unmarshal record")
	}
	return &session, nil
}

// Save implements Store.
func (rs *RedisStore) Save(session *PersistedSession) error {
	if session == nil {
		return errors.New("[RedisStore.Save] session is required")
	}
	data, err := json.Marshal(session)
	if err != nil {
		return errors.Wrap(err, "[RedisStore.Save] marshal record")
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rs.client.Set(ctx, rs.key, data, 0).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Save] SET")
	}
	return nil
}

// Clear implements Store.
func (rs *RedisStore) Clear() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := rs.client.Del(ctx, rs.key).Err(); err != nil {
		return errors.Wrap(err, "[RedisStore.Clear] DEL")
	}
	return nil
}
