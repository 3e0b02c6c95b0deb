package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// generationTTL outlives any loader; an expired counter reads as 0 and only makes
// in-flight writes fail their generation check.
const generationTTL = 24 * time.Hour

// KEYS come in (key, generation key) pairs.
var delScript = redis.NewScript(`
local removed = 0
for i = 1, #KEYS, 2 do
	removed = removed + redis.call('DEL', KEYS[i])
	redis.call('INCR', KEYS[i + 1])
	redis.call('PEXPIRE', KEYS[i + 1], ARGV[1])
end
return removed
`)

var setIfGenerationScript = redis.NewScript(`
local current = redis.call('GET', KEYS[2]) or '0'
if current ~= ARGV[2] then
	return 0
end
if tonumber(ARGV[3]) > 0 then
	redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[3])
else
	redis.call('SET', KEYS[1], ARGV[1])
end
return 1
`)

func generationKey(key string) string {
	return "gen:" + key
}

// RedisCache satisfies Cache using a go-redis v9 client.
type RedisCache struct {
	client redis.UniversalClient
}

var _ Cache = (*RedisCache)(nil)

func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// NewRedisClient parses url and verifies the server answers.
func NewRedisClient(url string) (*redis.Client, error) {
	if url == "" {
		return nil, errors.New("redis: url is not set")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	c := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return c, nil
}

func (r *RedisCache) Get(ctx context.Context, key string) (string, error) {
	res, err := r.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", err
	}
	return res, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisCache) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	pairs := make([]string, 0, 2*len(keys))
	for _, key := range keys {
		pairs = append(pairs, key, generationKey(key))
	}
	return delScript.Run(ctx, r.client, pairs, generationTTL.Milliseconds()).Int64()
}

func (r *RedisCache) Generation(ctx context.Context, key string) (int64, error) {
	raw, err := r.client.Get(ctx, generationKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(raw, 10, 64)
}

func (r *RedisCache) SetIfGeneration(ctx context.Context, key string, value string, ttl time.Duration, gen int64) (bool, error) {
	if ttl < 0 {
		ttl = 0
	}
	stored, err := setIfGenerationScript.Run(ctx, r.client,
		[]string{key, generationKey(key)},
		value, strconv.FormatInt(gen, 10), ttl.Milliseconds(),
	).Int64()
	if err != nil {
		return false, err
	}
	return stored == 1, nil
}

func (r *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, pattern, 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}

func (r *RedisCache) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisCache) Close() error {
	return r.client.Close()
}
