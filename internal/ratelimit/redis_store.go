package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordTTL keeps stale records from accumulating. It is housekeeping only;
// window logic lives in the Limiter.
const recordTTL = 2 * time.Hour

// RedisStore keeps rate-limit records in Redis as JSON values.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func key(ip string) string {
	return "ratelimit:" + ip
}

func (s *RedisStore) Get(ctx context.Context, ip string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, key(ip)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get rate limit record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode rate limit record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) Put(ctx context.Context, ip string, rec Record) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode rate limit record: %w", err)
	}
	if err := s.rdb.Set(ctx, key(ip), raw, recordTTL).Err(); err != nil {
		return fmt.Errorf("store rate limit record: %w", err)
	}
	return nil
}
