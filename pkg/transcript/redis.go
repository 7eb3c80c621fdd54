package transcript

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionPrefix = "transcript:session:"
	redisIndexKey      = "transcript:sessions"
)

// RedisStore keeps each session as a JSON string with a TTL and indexes
// session IDs in a sorted set scored by start time.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a store on client. ttl <= 0 means the default
// retention window.
func NewRedisStore(client *redis.Client, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, ErrInvalidConfig
	}
	if ttl <= 0 {
		ttl = DefaultRetention
	}
	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreFromURL parses a redis:// URL.
func NewRedisStoreFromURL(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("transcript: parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), ttl)
}

func redisKey(id string) string { return redisSessionPrefix + id }

// Load implements Store. Index entries whose session key has expired are
// pruned.
func (r *RedisStore) Load(ctx context.Context) ([]*Session, error) {
	ids, err := r.client.ZRange(ctx, redisIndexKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]*Session, 0, len(ids))
	var stale []any
	for _, id := range ids {
		val, err := r.client.Get(ctx, redisKey(id)).Result()
		if errors.Is(err, redis.Nil) {
			stale = append(stale, id)
			continue
		}
		if err != nil {
			return nil, err
		}
		var s Session
		if err := json.Unmarshal([]byte(val), &s); err != nil {
			return nil, err
		}
		out = append(out, &s)
	}
	if len(stale) > 0 {
		_ = r.client.ZRem(ctx, redisIndexKey, stale...).Err()
	}
	return out, nil
}

// Save implements Store.
func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	val, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisKey(s.ID), val, r.ttl)
		pipe.ZAdd(ctx, redisIndexKey, redis.Z{Score: float64(s.StartTime.UnixMilli()), Member: s.ID})
		return nil
	})
	return err
}

// Delete implements Store.
func (r *RedisStore) Delete(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = redisKey(id)
		members[i] = id
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, redisIndexKey, members...)
		return nil
	})
	return err
}

// Close implements Store.
func (r *RedisStore) Close() error { return r.client.Close() }

var _ Store = (*RedisStore)(nil)
