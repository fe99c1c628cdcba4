package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/rental-bookings/pkg/config"
)

// ErrMiss is returned by GetJSON when the key does not exist.
var ErrMiss = errors.New("cache miss")

func Connect(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	opts.DB = cfg.DB

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// Store is the small key/value surface the rest of the service relies on.
type Store struct {
	rdb redis.Cmdable
}

func NewStore(rdb redis.Cmdable) *Store {
	return &Store{rdb: rdb}
}

func (s *Store) GetJSON(ctx context.Context, key string, dst any) error {
	raw, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}

func (s *Store) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal cache value: %w", err)
	}
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}

func (s *Store) Delete(ctx context.Context, keys ...string) error {
	return s.rdb.Del(ctx, keys...).Err()
}

// Get and Set satisfy middleware.IdempotencyStore.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	v, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.rdb.Set(ctx, key, value, ttl).Err()
}

// SetNX stores value only when key is absent and reports whether it did.
func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, key, value, ttl).Result()
}

// Incr bumps a fixed-window counter. The key is created with its expiry in
// the same transaction, so a counter can never outlive its window.
func (s *Store) Incr(ctx context.Context, key string, window time.Duration) (int64, error) {
	var incr *redis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, window)
		incr = pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return incr.Val(), nil
}

var setIfNewer = redis.NewScript(`
local cur = redis.call("GET", KEYS[1])
if cur then
	local ok, doc = pcall(cjson.decode, cur)
	if ok and type(doc) == "table" then
		local have = tonumber(doc[ARGV[2]])
		if have and have > tonumber(ARGV[3]) then
			return 0
		end
	end
end
if tonumber(ARGV[4]) > 0 then
	redis.call("SET", KEYS[1], ARGV[1], "PX", ARGV[4])
else
	redis.call("SET", KEYS[1], ARGV[1])
end
return 1
`)

// SetJSONIfNewer caches v unless the cached document already carries a
// higher value in versionField. Readers filling the cache and writers
// publishing an update both go through it, so the entry only moves forward.
func (s *Store) SetJSONIfNewer(ctx context.Context, key string, v any, versionField string, version uint64, ttl time.Duration) (bool, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return false, fmt.Errorf("marshal cache value: %w", err)
	}
	n, err := setIfNewer.Run(ctx, s.rdb, []string{key}, raw, versionField, version, ttl.Milliseconds()).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

var deleteIfSuffix = redis.NewScript(`
local v = redis.call("GET", KEYS[1])
if v and string.sub(v, -string.len(ARGV[1])) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// DeleteIfSuffix deletes key only if its current value ends with suffix.
// The check and the delete run as one script.
func (s *Store) DeleteIfSuffix(ctx context.Context, key, suffix string) (bool, error) {
	if suffix == "" {
		return false, nil
	}
	n, err := deleteIfSuffix.Run(ctx, s.rdb, []string{key}, suffix).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
