package preferences

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "readingnook:page_size:"

// RedisStore keeps preferences in Redis without expiry.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
}

func NewRedisStore(addr string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	return &RedisStore{
		client:  redis.NewClient(&redis.Options{Addr: addr}),
		timeout: 3 * time.Second,
	}, nil
}

func (s *RedisStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *RedisStore) Get(ctx context.Context, d Density) (int, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	val, err := s.client.Get(ctx, keyPrefix+string(d)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	size, err := strconv.Atoi(val)
	if err != nil {
		return 0, false, fmt.Errorf("stored page size %q: %w", val, err)
	}
	return size, true, nil
}

func (s *RedisStore) Set(ctx context.Context, d Density, size int) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Set(ctx, keyPrefix+string(d), size, 0).Err()
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error { return s.client.Close() }
