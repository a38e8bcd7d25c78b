package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the key used when none is configured
const DefaultRedisKey = "digitalhuman:baidu:access_token"

// RedisStore shares one token between several processes. The redis entry
// expires together with the token.
type RedisStore struct {
	client *redis.Client
	key    string
	now    func() time.Time
}

// NewRedisStore creates a redis-backed token store
func NewRedisStore(client *redis.Client, key string) *RedisStore {
	if key == "" {
		key = DefaultRedisKey
	}
	return &RedisStore{
		client: client,
		key:    key,
		now:    time.Now,
	}
}

// Load reads the token stored under the configured key
func (s *RedisStore) Load(ctx context.Context) (*AccessToken, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", s.key, err)
	}
	return decodeRecord(val)
}

// Save stores the token; an already expired token is not written.
func (s *RedisStore) Save(ctx context.Context, tok AccessToken) error {
	ttl := tok.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return fmt.Errorf("token already expired at %s", tok.ExpiresAt.Format(time.RFC3339))
	}

	data, err := encodeRecord(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.client.Set(ctx, s.key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", s.key, err)
	}
	return nil
}
