// Package memcached adapts github.com/bradfitz/gomemcache to
// prefixcache.Client.
//
// Server keys are honored: a ByKey operation runs on the node that the
// server list picks for the server key, so every item written under one
// server key lives on the same node.
package memcached

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"github.com/khicago/prefixcache"
)

// relativeLimit is the longest expiration memcached accepts as a relative
// number of seconds. Longer ones are sent as absolute unix times.
const relativeLimit = 30 * 24 * time.Hour

// maxConcatRetries bounds the read-modify-write loop of Append and Prepend.
const maxConcatRetries = 8

// Option customizes a Client.
type Option func(*Client)

// WithTimeout sets the socket read/write timeout of every node connection.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxIdleConns sets the idle connection limit per node.
func WithMaxIdleConns(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxIdle = n
		}
	}
}

// Client is a prefixcache.Client backed by one or more memcached servers.
type Client struct {
	servers *memcache.ServerList
	mc      *memcache.Client
	timeout time.Duration
	maxIdle int

	mu    sync.Mutex
	nodes map[string]*memcache.Client
}

var (
	_ prefixcache.Client  = (*Client)(nil)
	_ prefixcache.Invoker = (*Client)(nil)
)

// New creates a Client for the given "host:port" or unix socket addresses.
// No connection is made until the first operation.
func New(servers []string, opts ...Option) (*Client, error) {
	if len(servers) == 0 {
		return nil, errors.New("memcached: no servers")
	}

	ss := new(memcache.ServerList)
	if err := ss.SetServers(servers...); err != nil {
		return nil, fmt.Errorf("memcached: resolve servers: %w", err)
	}

	c := &Client{
		servers: ss,
		timeout: memcache.DefaultTimeout,
		maxIdle: memcache.DefaultMaxIdleConns,
		nodes:   make(map[string]*memcache.Client),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.mc = c.configure(memcache.NewFromSelector(ss))
	return c, nil
}

func (c *Client) configure(mc *memcache.Client) *memcache.Client {
	mc.Timeout = c.timeout
	mc.MaxIdleConns = c.maxIdle
	return mc
}

// node returns the client pinned to the server owning serverKey.
func (c *Client) node(serverKey string) (*memcache.Client, error) {
	addr, err := c.servers.PickServer(serverKey)
	if err != nil {
		return nil, mapError(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	name := addr.String()
	if mc, ok := c.nodes[name]; ok {
		return mc, nil
	}
	mc := c.configure(memcache.New(name))
	c.nodes[name] = mc
	return mc, nil
}

// mapError translates gomemcache errors to the shared sentinels, keeping the
// original error in the chain.
func mapError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, memcache.ErrCacheMiss):
		return fmt.Errorf("%w: %w", prefixcache.ErrNotFound, err)
	case errors.Is(err, memcache.ErrNotStored):
		return fmt.Errorf("%w: %w", prefixcache.ErrNotStored, err)
	case errors.Is(err, memcache.ErrCASConflict):
		return fmt.Errorf("%w: %w", prefixcache.ErrCASConflict, err)
	case errors.Is(err, memcache.ErrMalformedKey):
		return fmt.Errorf("%w: %w", prefixcache.ErrInvalidKey, err)
	case strings.Contains(err.Error(), "non-numeric"):
		return fmt.Errorf("%w: %w", prefixcache.ErrTypeMismatch, err)
	}
	return err
}

// expiration converts d to the memcached wire form: 0 for never, seconds
// up to 30 days, and an absolute unix time beyond that.
func expiration(d time.Duration, now time.Time) int32 {
	if d <= 0 {
		return 0
	}
	if d > relativeLimit {
		return int32(now.Add(d).Unix())
	}
	secs := int32(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}

func toItem(it *memcache.Item) *prefixcache.Item {
	return &prefixcache.Item{
		Key:   it.Key,
		Value: it.Value,
		Flags: it.Flags,
		CAS:   prefixcache.CASToken{Handle: it},
	}
}

func (c *Client) get(ctx context.Context, mc *memcache.Client, key string) (*prefixcache.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	it, err := mc.Get(key)
	if err != nil {
		return nil, mapError(err)
	}
	return toItem(it), nil
}

func (c *Client) Get(ctx context.Context, key string) (*prefixcache.Item, error) {
	return c.get(ctx, c.mc, key)
}

func (c *Client) GetByKey(ctx context.Context, serverKey, key string) (*prefixcache.Item, error) {
	mc, err := c.node(serverKey)
	if err != nil {
		return nil, err
	}
	return c.get(ctx, mc, key)
}

func (c *Client) getMulti(ctx context.Context, mc *memcache.Client, keys []string) (map[string]*prefixcache.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	found, err := mc.GetMulti(keys)
	if err != nil {
		return nil, mapError(err)
	}
	out := make(map[string]*prefixcache.Item, len(found))
	for k, it := range found {
		out[k] = toItem(it)
	}
	return out, nil
}

func (c *Client) GetMulti(ctx context.Context, keys []string) (map[string]*prefixcache.Item, error) {
	return c.getMulti(ctx, c.mc, keys)
}

func (c *Client) GetMultiByKey(ctx context.Context, serverKey string, keys []string) (map[string]*prefixcache.Item, error) {
	mc, err := c.node(serverKey)
	if err != nil {
		return nil, err
	}
	return c.getMulti(ctx, mc, keys)
}

// GetDelayed issues the multi-get immediately and streams the hits in key
// order on a closed, buffered channel.
func (c *Client) GetDelayed(ctx context.Context, keys []string) (<-chan *prefixcache.Item, error) {
	items, err := c.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	return stream(items, keys), nil
}

func (c *Client) GetDelayedByKey(ctx context.Context, serverKey string, keys []string) (<-chan *prefixcache.Item, error) {
	items, err := c.GetMultiByKey(ctx, serverKey, keys)
	if err != nil {
		return nil, err
	}
	return stream(items, keys), nil
}

func stream(items map[string]*prefixcache.Item, keys []string) <-chan *prefixcache.Item {
	ch := make(chan *prefixcache.Item, len(items))
	for _, k := range keys {
		if it, ok := items[k]; ok {
			ch <- it
			delete(items, k)
		}
	}
	close(ch)
	return ch
}

type storeFunc func(mc *memcache.Client, it *memcache.Item) error

func (c *Client) store(ctx context.Context, mc *memcache.Client, fn storeFunc, key string, value []byte, exp time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	it := &memcache.Item{Key: key, Value: value, Expiration: expiration(exp, time.Now())}
	return mapError(fn(mc, it))
}

func set(mc *memcache.Client, it *memcache.Item) error     { return mc.Set(it) }
func add(mc *memcache.Client, it *memcache.Item) error     { return mc.Add(it) }
func replace(mc *memcache.Client, it *memcache.Item) error { return mc.Replace(it) }

func (c *Client) Set(ctx context.Context, key string, value []byte, exp time.Duration) error {
	return c.store(ctx, c.mc, set, key, value, exp)
}

func (c *Client) SetByKey(ctx context.Context, serverKey, key string, value []byte, exp time.Duration) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.store(ctx, mc, set, key, value, exp)
}

func (c *Client) Add(ctx context.Context, key string, value []byte, exp time.Duration) error {
	return c.store(ctx, c.mc, add, key, value, exp)
}

func (c *Client) AddByKey(ctx context.Context, serverKey, key string, value []byte, exp time.Duration) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.store(ctx, mc, add, key, value, exp)
}

func (c *Client) Replace(ctx context.Context, key string, value []byte, exp time.Duration) error {
	return c.store(ctx, c.mc, replace, key, value, exp)
}

func (c *Client) ReplaceByKey(ctx context.Context, serverKey, key string, value []byte, exp time.Duration) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.store(ctx, mc, replace, key, value, exp)
}

func (c *Client) setMulti(ctx context.Context, mc *memcache.Client, items map[string][]byte, exp time.Duration) error {
	for key, value := range items {
		if err := c.store(ctx, mc, set, key, value, exp); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) SetMulti(ctx context.Context, items map[string][]byte, exp time.Duration) error {
	return c.setMulti(ctx, c.mc, items, exp)
}

func (c *Client) SetMultiByKey(ctx context.Context, serverKey string, items map[string][]byte, exp time.Duration) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.setMulti(ctx, mc, items, exp)
}

// concat joins value onto the stored data with a gets/cas loop. A missing
// key is ErrNotStored, as with the native append command.
//
// The item is rewritten without expiration, since memcached does not report
// the remaining TTL of an item.
func (c *Client) concat(ctx context.Context, mc *memcache.Client, key string, value []byte, front bool) error {
	for attempt := 0; attempt < maxConcatRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		it, err := mc.Get(key)
		if errors.Is(err, memcache.ErrCacheMiss) {
			return fmt.Errorf("%w: %w", prefixcache.ErrNotStored, err)
		}
		if err != nil {
			return mapError(err)
		}

		joined := make([]byte, 0, len(it.Value)+len(value))
		if front {
			joined = append(append(joined, value...), it.Value...)
		} else {
			joined = append(append(joined, it.Value...), value...)
		}
		it.Value = joined

		err = mc.CompareAndSwap(it)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, memcache.ErrCASConflict):
			continue
		case errors.Is(err, memcache.ErrCacheMiss), errors.Is(err, memcache.ErrNotStored):
			return fmt.Errorf("%w: %w", prefixcache.ErrNotStored, err)
		default:
			return mapError(err)
		}
	}
	return fmt.Errorf("%w: %s changed %d times during update", prefixcache.ErrCASConflict, key, maxConcatRetries)
}

func (c *Client) Append(ctx context.Context, key string, value []byte) error {
	return c.concat(ctx, c.mc, key, value, false)
}

func (c *Client) AppendByKey(ctx context.Context, serverKey, key string, value []byte) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.concat(ctx, mc, key, value, false)
}

func (c *Client) Prepend(ctx context.Context, key string, value []byte) error {
	return c.concat(ctx, c.mc, key, value, true)
}

func (c *Client) PrependByKey(ctx context.Context, serverKey, key string, value []byte) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.concat(ctx, mc, key, value, true)
}

// tokenItem recovers the gomemcache item a read put in the token.
func tokenItem(token prefixcache.CASToken) (*memcache.Item, error) {
	it, ok := token.Handle.(*memcache.Item)
	if !ok || it == nil {
		return nil, fmt.Errorf("%w: cas token was not issued by a memcached read", prefixcache.ErrInvalidArgs)
	}
	return it, nil
}

func (c *Client) cas(ctx context.Context, mc *memcache.Client, token prefixcache.CASToken, key string, value []byte, exp time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	seen, err := tokenItem(token)
	if err != nil {
		return err
	}
	// Copy the item to keep its cas id while replacing the payload.
	it := *seen
	it.Key = key
	it.Value = value
	it.Expiration = expiration(exp, time.Now())
	return mapError(mc.CompareAndSwap(&it))
}

func (c *Client) Cas(ctx context.Context, token prefixcache.CASToken, key string, value []byte, exp time.Duration) error {
	return c.cas(ctx, c.mc, token, key, value, exp)
}

func (c *Client) CasByKey(ctx context.Context, token prefixcache.CASToken, serverKey, key string, value []byte, exp time.Duration) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.cas(ctx, mc, token, key, value, exp)
}

func (c *Client) del(ctx context.Context, mc *memcache.Client, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(mc.Delete(key))
}

func (c *Client) Delete(ctx context.Context, key string) error {
	return c.del(ctx, c.mc, key)
}

func (c *Client) DeleteByKey(ctx context.Context, serverKey, key string) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.del(ctx, mc, key)
}

// deleteMulti deletes every key, skipping the ones already gone.
func (c *Client) deleteMulti(ctx context.Context, mc *memcache.Client, keys []string) error {
	for _, key := range keys {
		err := c.del(ctx, mc, key)
		if err != nil && !errors.Is(err, prefixcache.ErrNotFound) {
			return err
		}
	}
	return nil
}

func (c *Client) DeleteMulti(ctx context.Context, keys []string) error {
	return c.deleteMulti(ctx, c.mc, keys)
}

func (c *Client) DeleteMultiByKey(ctx context.Context, serverKey string, keys []string) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.deleteMulti(ctx, mc, keys)
}

func (c *Client) incr(ctx context.Context, mc *memcache.Client, key string, delta uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := mc.Increment(key, delta)
	return n, mapError(err)
}

func (c *Client) decr(ctx context.Context, mc *memcache.Client, key string, delta uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n, err := mc.Decrement(key, delta)
	return n, mapError(err)
}

func (c *Client) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.incr(ctx, c.mc, key, delta)
}

func (c *Client) IncrementByKey(ctx context.Context, serverKey, key string, delta uint64) (uint64, error) {
	mc, err := c.node(serverKey)
	if err != nil {
		return 0, err
	}
	return c.incr(ctx, mc, key, delta)
}

func (c *Client) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	return c.decr(ctx, c.mc, key, delta)
}

func (c *Client) DecrementByKey(ctx context.Context, serverKey, key string, delta uint64) (uint64, error) {
	mc, err := c.node(serverKey)
	if err != nil {
		return 0, err
	}
	return c.decr(ctx, mc, key, delta)
}

func (c *Client) touch(ctx context.Context, mc *memcache.Client, key string, exp time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return mapError(mc.Touch(key, expiration(exp, time.Now())))
}

func (c *Client) Touch(ctx context.Context, key string, exp time.Duration) error {
	return c.touch(ctx, c.mc, key, exp)
}

func (c *Client) TouchByKey(ctx context.Context, serverKey, key string, exp time.Duration) error {
	mc, err := c.node(serverKey)
	if err != nil {
		return err
	}
	return c.touch(ctx, mc, key, exp)
}

// Invoke supports "flush" (flush_all on every server) and "ping".
func (c *Client) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	switch name {
	case "flush":
		return nil, mapError(c.mc.FlushAll())
	case "ping":
		return nil, mapError(c.mc.Ping())
	}
	return nil, fmt.Errorf("%w: %s", prefixcache.ErrUnknownOperation, name)
}
