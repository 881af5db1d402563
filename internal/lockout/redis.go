package lockout

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "auth:lockout:"

// RedisStore keeps lockout state in a Redis hash per key:
//
//	auth:lockout:<username> → {failed_count: N, locked_until: <unix seconds>}
//
// HINCRBY makes the counter atomic across replicas. The hash expires one
// window after the last failure, or one window after the lock ends.
type RedisStore struct {
	client redis.UniversalClient
}

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Get(ctx context.Context, key string) (State, error) {
	data, err := s.client.HGetAll(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return State{}, err
	}
	if len(data) == 0 {
		return State{}, nil
	}

	var st State
	if raw, ok := data["failed_count"]; ok {
		if n, convErr := strconv.Atoi(raw); convErr == nil {
			st.FailedCount = n
		}
	}
	if raw, ok := data["locked_until"]; ok && raw != "" {
		if unix, convErr := strconv.ParseInt(raw, 10, 64); convErr == nil && unix > 0 {
			st.LockedUntil = time.Unix(unix, 0).UTC()
		}
	}
	return st, nil
}

func (s *RedisStore) RecordFailure(ctx context.Context, key string, now time.Time, threshold int, window time.Duration) (State, error) {
	redisKey := redisKeyPrefix + key

	count, err := s.client.HIncrBy(ctx, redisKey, "failed_count", 1).Result()
	if err != nil {
		return State{}, err
	}

	st := State{FailedCount: int(count)}
	if int(count) < threshold {
		if err := s.client.Expire(ctx, redisKey, window).Err(); err != nil {
			return State{}, err
		}
		return st, nil
	}

	// locked_until is stored in whole seconds; round up so the lock never
	// ends earlier than now+window.
	lockedUntil := time.Unix(now.Add(window).Add(time.Second-1).Unix(), 0).UTC()
	_, err = s.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, redisKey, "locked_until", lockedUntil.Unix())
		p.Expire(ctx, redisKey, 2*window)
		return nil
	})
	if err != nil {
		return State{}, err
	}
	st.LockedUntil = lockedUntil
	return st, nil
}

func (s *RedisStore) Clear(ctx context.Context, key string) error {
	return s.client.Del(ctx, redisKeyPrefix+key).Err()
}
