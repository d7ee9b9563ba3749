package session

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the session in one hash with the two fixed fields.
type RedisStore struct {
	rdb *redis.Client
	key string
}

func NewRedisStore(rdb *redis.Client, prefix string) *RedisStore {
	return &RedisStore{rdb: rdb, key: prefix + "session"}
}

func (r *RedisStore) Get(ctx context.Context) (Session, error) {
	kv, err := r.rdb.HGetAll(ctx, r.key).Result()
	if err != nil {
		return Session{}, fmt.Errorf("redis hgetall: %w", err)
	}
	s := Session{AccessToken: kv[KeyAccessToken], RefreshToken: kv[KeyRefreshToken]}
	if !s.Valid() {
		return Session{}, ErrNoSession
	}
	return s, nil
}

func (r *RedisStore) Set(ctx context.Context, s Session) error {
	if err := checkComplete(s); err != nil {
		return err
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, r.key)
		p.HSet(ctx, r.key, KeyAccessToken, s.AccessToken, KeyRefreshToken, s.RefreshToken)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.rdb.Del(ctx, r.key).Err(); err != nil {
		return fmt.Errorf("redis del session: %w", err)
	}
	return nil
}
