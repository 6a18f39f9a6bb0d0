package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var _ Frontend = (*RedisFrontend)(nil)

// RedisFrontend keeps entries as plain keys and each tag as a set of the
// keys carrying it.
type RedisFrontend struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisClient parses redisURL and verifies connectivity.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// NewRedisFrontend namespaces all keys with prefix, e.g. "personiojobs:".
func NewRedisFrontend(rdb *redis.Client, prefix string) *RedisFrontend {
	return &RedisFrontend{rdb: rdb, prefix: prefix}
}

func (r *RedisFrontend) entryKey(key string) string { return r.prefix + "entry:" + key }
func (r *RedisFrontend) tagKey(tag string) string   { return r.prefix + "tag:" + tag }

func (r *RedisFrontend) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := r.rdb.Get(ctx, r.entryKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, true, nil
}

func (r *RedisFrontend) Set(ctx context.Context, key string, value []byte, ttl time.Duration, tags ...string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.entryKey(key), value, ttl)
		for _, tag := range tags {
			pipe.SAdd(ctx, r.tagKey(tag), r.entryKey(key))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

// flushTagScript deletes every entry listed in the tag set KEYS[1] and the
// set itself in one step, so a concurrent Set cannot slip in between.
var flushTagScript = redis.NewScript(`
local keys = redis.call('SMEMBERS', KEYS[1])
for i = 1, #keys, 500 do
	redis.call('DEL', unpack(keys, i, math.min(i + 499, #keys)))
end
redis.call('DEL', KEYS[1])
return #keys
`)

func (r *RedisFrontend) FlushByTags(ctx context.Context, tags ...string) error {
	for _, tag := range tags {
		if err := flushTagScript.Run(ctx, r.rdb, []string{r.tagKey(tag)}).Err(); err != nil {
			return fmt.Errorf("redis flush %s: %w", tag, err)
		}
	}
	return nil
}
