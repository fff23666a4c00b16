// Package rediscache adapts a go-redis client to prefixcache.Client with
// memcached semantics. Redis has one keyspace per database, so server keys
// are accepted and ignored.
//
// CAS tokens carry the xxhash digest of the value that was read. A Cas
// succeeds while the stored value still hashes to the token.
package rediscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/go-redis/redis/v8"

	"github.com/khicago/prefixcache"
)

// maxWatchRetries bounds optimistic read-modify-write loops.
const maxWatchRetries = 8

type Config struct {
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// Client is a prefixcache.Client backed by Redis.
type Client struct {
	rdb redis.UniversalClient
}

var (
	_ prefixcache.Client  = (*Client)(nil)
	_ prefixcache.Invoker = (*Client)(nil)
)

// Dial connects to the Redis server described by config and pings it.
func Dial(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     config.Address,
		Password: config.Password,
		DB:       config.DB,
		PoolSize: config.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return New(rdb), nil
}

// New wraps an existing client. Single-node, sentinel and cluster clients
// all work.
func New(rdb redis.UniversalClient) *Client {
	return &Client{rdb: rdb}
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func digest(value []byte) uint64 {
	return xxhash.Sum64(value)
}

func notFound(err error) error {
	return fmt.Errorf("%w: %w", prefixcache.ErrNotFound, err)
}

// mapError turns redis.Nil into ErrNotFound and passes other errors on.
func mapError(err error) error {
	if errors.Is(err, redis.Nil) {
		return notFound(err)
	}
	return err
}

// keepTTL converts a PTTL reply to the expiration to write back.
func keepTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return 0
}

func (c *Client) Get(ctx context.Context, key string) (*prefixcache.Item, error) {
	var get *redis.StringCmd
	var ttl *redis.DurationCmd
	_, err := c.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		get = pipe.Get(ctx, key)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}

	value, err := get.Bytes()
	if err != nil {
		return nil, mapError(err)
	}
	return &prefixcache.Item{
		Key:        key,
		Value:      value,
		Expiration: keepTTL(ttl.Val()),
		CAS:        prefixcache.CASToken{ID: digest(value)},
	}, nil
}

func (c *Client) GetByKey(ctx context.Context, _, key string) (*prefixcache.Item, error) {
	return c.Get(ctx, key)
}

func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string]*prefixcache.Item, error) {
	out := make(map[string]*prefixcache.Item, len(keys))
	if len(keys) == 0 {
		return out, nil
	}

	values, err := c.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		value := []byte(s)
		out[keys[i]] = &prefixcache.Item{
			Key:   keys[i],
			Value: value,
			CAS:   prefixcache.CASToken{ID: digest(value)},
		}
	}
	return out, nil
}

func (c *Client) GetMultiByKey(ctx context.Context, _ string, keys []string) (map[string]*prefixcache.Item, error) {
	return c.GetMulti(ctx, keys)
}

// GetDelayed runs the multi-get and streams the hits in key order on a
// closed, buffered channel.
func (c *Client) GetDelayed(ctx context.Context, keys []string) (<-chan *prefixcache.Item, error) {
	items, err := c.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}

	ch := make(chan *prefixcache.Item, len(items))
	for _, k := range keys {
		if it, ok := items[k]; ok {
			ch <- it
			delete(items, k)
		}
	}
	close(ch)
	return ch, nil
}

func (c *Client) GetDelayedByKey(ctx context.Context, _ string, keys []string) (<-chan *prefixcache.Item, error) {
	return c.GetDelayed(ctx, keys)
}

func (c *Client) Set(ctx context.Context, key string, value []byte, exp time.Duration) error {
	return c.rdb.Set(ctx, key, value, exp).Err()
}

func (c *Client) SetByKey(ctx context.Context, _, key string, value []byte, exp time.Duration) error {
	return c.Set(ctx, key, value, exp)
}

func (c *Client) SetMulti(ctx context.Context, items map[string][]byte, exp time.Duration) error {
	if len(items) == 0 {
		return nil
	}
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, value := range items {
			pipe.Set(ctx, key, value, exp)
		}
		return nil
	})
	return err
}

func (c *Client) SetMultiByKey(ctx context.Context, _ string, items map[string][]byte, exp time.Duration) error {
	return c.SetMulti(ctx, items, exp)
}

func stored(ok bool, err error) error {
	if err != nil {
		return err
	}
	if !ok {
		return prefixcache.ErrNotStored
	}
	return nil
}

// Add is SET NX.
func (c *Client) Add(ctx context.Context, key string, value []byte, exp time.Duration) error {
	return stored(c.rdb.SetNX(ctx, key, value, exp).Result())
}

func (c *Client) AddByKey(ctx context.Context, _, key string, value []byte, exp time.Duration) error {
	return c.Add(ctx, key, value, exp)
}

// Replace is SET XX.
func (c *Client) Replace(ctx context.Context, key string, value []byte, exp time.Duration) error {
	return stored(c.rdb.SetXX(ctx, key, value, exp).Result())
}

func (c *Client) ReplaceByKey(ctx context.Context, _, key string, value []byte, exp time.Duration) error {
	return c.Replace(ctx, key, value, exp)
}

func (c *Client) runConcat(ctx context.Context, script *redis.Script, key string, value []byte) error {
	n, err := script.Run(ctx, c.rdb, []string{key}, value).Int()
	if err != nil {
		return err
	}
	if n == 0 {
		return prefixcache.ErrNotStored
	}
	return nil
}

func (c *Client) Append(ctx context.Context, key string, value []byte) error {
	return c.runConcat(ctx, appendScript, key, value)
}

func (c *Client) AppendByKey(ctx context.Context, _, key string, value []byte) error {
	return c.Append(ctx, key, value)
}

func (c *Client) Prepend(ctx context.Context, key string, value []byte) error {
	return c.runConcat(ctx, prependScript, key, value)
}

func (c *Client) PrependByKey(ctx context.Context, _, key string, value []byte) error {
	return c.Prepend(ctx, key, value)
}

// update rewrites key inside WATCH/MULTI. next receives the current value
// and TTL and returns the value and expiration to store.
func (c *Client) update(ctx context.Context, key string, retry bool,
	next func(old []byte, ttl time.Duration) ([]byte, time.Duration, error)) error {

	txf := func(tx *redis.Tx) error {
		old, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			return mapError(err)
		}
		ttl, err := tx.PTTL(ctx, key).Result()
		if err != nil {
			return err
		}

		value, exp, err := next(old, keepTTL(ttl))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, value, exp)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err := c.rdb.Watch(ctx, txf, key)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		if !retry {
			return fmt.Errorf("%w: %w", prefixcache.ErrCASConflict, err)
		}
	}
	return fmt.Errorf("%w: %s changed %d times during update", prefixcache.ErrCASConflict, key, maxWatchRetries)
}

// Cas stores value if the current value still hashes to token.ID.
func (c *Client) Cas(ctx context.Context, token prefixcache.CASToken, key string, value []byte, exp time.Duration) error {
	return c.update(ctx, key, false, func(old []byte, _ time.Duration) ([]byte, time.Duration, error) {
		if digest(old) != token.ID {
			return nil, 0, prefixcache.ErrCASConflict
		}
		return value, exp, nil
	})
}

func (c *Client) CasByKey(ctx context.Context, token prefixcache.CASToken, _, key string, value []byte, exp time.Duration) error {
	return c.Cas(ctx, token, key, value, exp)
}

func (c *Client) Delete(ctx context.Context, key string) error {
	n, err := c.rdb.Del(ctx, key).Result()
	if err != nil {
		return err
	}
	if n == 0 {
		return prefixcache.ErrNotFound
	}
	return nil
}

func (c *Client) DeleteByKey(ctx context.Context, _, key string) error {
	return c.Delete(ctx, key)
}

func (c *Client) DeleteMulti(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

func (c *Client) DeleteMultiByKey(ctx context.Context, _ string, keys []string) error {
	return c.DeleteMulti(ctx, keys)
}

// counter applies fn to the unsigned decimal value of key, keeping its TTL.
// Redis INCRBY is signed, so the arithmetic happens here.
func (c *Client) counter(ctx context.Context, key string, fn func(uint64) uint64) (uint64, error) {
	var result uint64
	err := c.update(ctx, key, true, func(old []byte, ttl time.Duration) ([]byte, time.Duration, error) {
		n, err := strconv.ParseUint(string(old), 10, 64)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %q is not a counter", prefixcache.ErrTypeMismatch, key)
		}
		result = fn(n)
		return []byte(strconv.FormatUint(result, 10)), ttl, nil
	})
	if err != nil {
		return 0, err
	}
	return result, nil
}

// Increment wraps at 2^64.
func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.counter(ctx, key, func(n uint64) uint64 { return n + delta })
}

func (c *Client) IncrementByKey(ctx context.Context, _, key string, delta uint64) (uint64, error) {
	return c.Increment(ctx, key, delta)
}

// Decrement stops at 0.
func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.counter(ctx, key, func(n uint64) uint64 {
		if delta > n {
			return 0
		}
		return n - delta
	})
}

func (c *Client) DecrementByKey(ctx context.Context, _, key string, delta uint64) (uint64, error) {
	return c.Decrement(ctx, key, delta)
}

// Touch is EXPIRE, or PERSIST when exp is 0.
func (c *Client) Touch(ctx context.Context, key string, exp time.Duration) error {
	if exp > 0 {
		ok, err := c.rdb.PExpire(ctx, key, exp).Result()
		if err != nil {
			return err
		}
		if !ok {
			return prefixcache.ErrNotFound
		}
		return nil
	}

	var exists *redis.IntCmd
	_, err := c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		exists = pipe.Exists(ctx, key)
		pipe.Persist(ctx, key)
		return nil
	})
	if err != nil {
		return err
	}
	if exists.Val() == 0 {
		return prefixcache.ErrNotFound
	}
	return nil
}

func (c *Client) TouchByKey(ctx context.Context, _, key string, exp time.Duration) error {
	return c.Touch(ctx, key, exp)
}

// Invoke supports "flush" (FLUSHDB) and "ping".
func (c *Client) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	switch name {
	case "flush":
		return nil, c.rdb.FlushDB(ctx).Err()
	case "ping":
		return c.rdb.Ping(ctx).Result()
	}
	return nil, fmt.Errorf("%w: %s", prefixcache.ErrUnknownOperation, name)
}
