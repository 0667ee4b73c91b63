package cache

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/mo"
)

const (
	redisKeyPrefix = "waylyrics:lyrics:"
	redisTimeout   = 2 * time.Second
)

// kv is the subset of pkg/redis.Client the store needs.
type kv interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Close() error
}

// RedisStore keeps lyrics in Redis without expiration.
type RedisStore struct {
	client kv
	logger zerolog.Logger
	writer *writer
}

var _ Store = (*RedisStore)(nil)

func NewRedisStore(client kv, logger zerolog.Logger) *RedisStore {
	s := &RedisStore{client: client, logger: logger}
	s.writer = newWriter(s.write, logger)
	return s
}

func (s *RedisStore) Get(key string) mo.Option[string] {
	if key == "" {
		return mo.None[string]()
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	value, found, err := s.client.Get(ctx, redisKeyPrefix+key)
	if err != nil {
		s.logger.Error().Err(err).Str("key", key).Msg("Failed to read lyrics from redis")
		return mo.None[string]()
	}
	if !found || value == "" {
		return mo.None[string]()
	}
	s.logger.Debug().Str("key", key).Msg("Cache HIT")
	return mo.Some(value)
}

func (s *RedisStore) Put(key, text string) {
	if key == "" || text == "" {
		return
	}
	s.writer.enqueue(key, text)
}

func (s *RedisStore) write(key, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()
	return s.client.Set(ctx, redisKeyPrefix+key, text)
}

func (s *RedisStore) Flush() {
	s.writer.flush()
}

func (s *RedisStore) Close() error {
	s.writer.close()
	return s.client.Close()
}
