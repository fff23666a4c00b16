package prefixcache

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"
)

type entry struct {
	value  []byte
	cas    uint64
	expire time.Time
}

// Memory implements Client with thread-safe in-memory storage and memcached
// semantics. It is a single node, so server keys are ignored.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
	cas  uint64
}

var (
	_ Client  = (*Memory)(nil)
	_ Invoker = (*Memory)(nil)
)

// NewMemory creates an empty in-memory Client.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]entry)}
}

func (e entry) expired() bool {
	if e.expire.IsZero() {
		return false
	}
	return time.Now().After(e.expire)
}

func (e entry) item(key string) *Item {
	it := &Item{Key: key, Value: clone(e.value), CAS: CASToken{ID: e.cas}}
	if !e.expire.IsZero() {
		it.Expiration = time.Until(e.expire)
	}
	return it
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}

func clone(src []byte) []byte {
	if len(src) == 0 {
		return nil
	}
	dst := make([]byte, len(src))
	copy(dst, src)
	return dst
}

// live returns the unexpired entry for key, dropping it if it has expired.
// Callers must hold the write lock.
func (m *Memory) live(key string) (entry, bool) {
	e, ok := m.data[key]
	if !ok {
		return entry{}, false
	}
	if e.expired() {
		delete(m.data, key)
		return entry{}, false
	}
	return e, true
}

// store writes value under key with a fresh CAS id. Callers must hold the
// write lock.
func (m *Memory) store(key string, value []byte, expire time.Time) {
	m.cas++
	m.data[key] = entry{value: value, cas: m.cas, expire: expire}
}

func (m *Memory) Get(ctx context.Context, key string) (*Item, error) {
	// Fast path: optimistic read with RLock.
	m.mu.RLock()
	e, ok := m.data[key]
	m.mu.RUnlock()

	if !ok {
		return nil, ErrNotFound
	}
	if !e.expired() {
		return e.item(key), nil
	}

	// Slow path: entry expired, need write lock to delete.
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok = m.live(key)
	if !ok {
		return nil, ErrNotFound
	}
	return e.item(key), nil
}

func (m *Memory) GetByKey(ctx context.Context, _, key string) (*Item, error) {
	return m.Get(ctx, key)
}

func (m *Memory) GetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make(map[string]*Item, len(keys))
	for _, key := range keys {
		if e, ok := m.live(key); ok {
			result[key] = e.item(key)
		}
	}
	return result, nil
}

func (m *Memory) GetMultiByKey(ctx context.Context, _ string, keys []string) (map[string]*Item, error) {
	return m.GetMulti(ctx, keys)
}

// GetDelayed resolves keys immediately; the returned channel is already
// filled and closed.
func (m *Memory) GetDelayed(ctx context.Context, keys []string) (<-chan *Item, error) {
	items, err := m.GetMulti(ctx, keys)
	if err != nil {
		return nil, err
	}
	return deliver(items, keys), nil
}

func (m *Memory) GetDelayedByKey(ctx context.Context, _ string, keys []string) (<-chan *Item, error) {
	return m.GetDelayed(ctx, keys)
}

func (m *Memory) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store(key, clone(value), expiry(expiration))
	return nil
}

func (m *Memory) SetByKey(ctx context.Context, _, key string, value []byte, expiration time.Duration) error {
	return m.Set(ctx, key, value, expiration)
}

func (m *Memory) SetMulti(ctx context.Context, items map[string][]byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	exp := expiry(expiration)
	for key, value := range items {
		m.store(key, clone(value), exp)
	}
	return nil
}

func (m *Memory) SetMultiByKey(ctx context.Context, _ string, items map[string][]byte, expiration time.Duration) error {
	return m.SetMulti(ctx, items, expiration)
}

// Add stores value only if key is absent.
func (m *Memory) Add(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); ok {
		return ErrNotStored
	}
	m.store(key, clone(value), expiry(expiration))
	return nil
}

func (m *Memory) AddByKey(ctx context.Context, _, key string, value []byte, expiration time.Duration) error {
	return m.Add(ctx, key, value, expiration)
}

// Replace stores value only if key is present.
func (m *Memory) Replace(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); !ok {
		return ErrNotStored
	}
	m.store(key, clone(value), expiry(expiration))
	return nil
}

func (m *Memory) ReplaceByKey(ctx context.Context, _, key string, value []byte, expiration time.Duration) error {
	return m.Replace(ctx, key, value, expiration)
}

func (m *Memory) concat(key string, value []byte, front bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return ErrNotStored
	}
	joined := make([]byte, 0, len(e.value)+len(value))
	if front {
		joined = append(append(joined, value...), e.value...)
	} else {
		joined = append(append(joined, e.value...), value...)
	}
	m.store(key, joined, e.expire)
	return nil
}

// Append adds value after the existing data of key, keeping its expiration.
func (m *Memory) Append(ctx context.Context, key string, value []byte) error {
	return m.concat(key, value, false)
}

func (m *Memory) AppendByKey(ctx context.Context, _, key string, value []byte) error {
	return m.Append(ctx, key, value)
}

// Prepend adds value before the existing data of key, keeping its expiration.
func (m *Memory) Prepend(ctx context.Context, key string, value []byte) error {
	return m.concat(key, value, true)
}

func (m *Memory) PrependByKey(ctx context.Context, _, key string, value []byte) error {
	return m.Prepend(ctx, key, value)
}

// Cas stores value only if key still carries the version in token.
func (m *Memory) Cas(ctx context.Context, token CASToken, key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return ErrNotFound
	}
	if e.cas != token.ID {
		return ErrCASConflict
	}
	m.store(key, clone(value), expiry(expiration))
	return nil
}

func (m *Memory) CasByKey(ctx context.Context, token CASToken, _, key string, value []byte, expiration time.Duration) error {
	return m.Cas(ctx, token, key, value, expiration)
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.live(key); !ok {
		return ErrNotFound
	}
	delete(m.data, key)
	return nil
}

func (m *Memory) DeleteByKey(ctx context.Context, _, key string) error {
	return m.Delete(ctx, key)
}

// DeleteMulti removes every key; missing keys are skipped.
func (m *Memory) DeleteMulti(ctx context.Context, keys []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *Memory) DeleteMultiByKey(ctx context.Context, _ string, keys []string) error {
	return m.DeleteMulti(ctx, keys)
}

// counter applies fn to the decimal value of key.
func (m *Memory) counter(key string, fn func(uint64) uint64) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return 0, ErrNotFound
	}
	current, err := strconv.ParseUint(string(e.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a counter", ErrTypeMismatch, key)
	}
	next := fn(current)
	m.store(key, []byte(strconv.FormatUint(next, 10)), e.expire)
	return next, nil
}

// Increment adds delta to a decimal counter, wrapping at 2^64.
func (m *Memory) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	return m.counter(key, func(n uint64) uint64 { return n + delta })
}

func (m *Memory) IncrementByKey(ctx context.Context, _, key string, delta uint64) (uint64, error) {
	return m.Increment(ctx, key, delta)
}

// Decrement subtracts delta from a decimal counter, stopping at 0.
func (m *Memory) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	return m.counter(key, func(n uint64) uint64 {
		if delta > n {
			return 0
		}
		return n - delta
	})
}

func (m *Memory) DecrementByKey(ctx context.Context, _, key string, delta uint64) (uint64, error) {
	return m.Decrement(ctx, key, delta)
}

// Touch resets the expiration of key.
func (m *Memory) Touch(ctx context.Context, key string, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.live(key)
	if !ok {
		return ErrNotFound
	}
	e.expire = expiry(expiration)
	m.data[key] = e
	return nil
}

func (m *Memory) TouchByKey(ctx context.Context, _, key string, expiration time.Duration) error {
	return m.Touch(ctx, key, expiration)
}

// Invoke supports "flush", which drops every item, and "len", which returns
// the number of unexpired items as an int.
func (m *Memory) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	switch name {
	case "flush":
		m.mu.Lock()
		m.data = make(map[string]entry)
		m.mu.Unlock()
		return nil, nil
	case "len":
		m.mu.RLock()
		defer m.mu.RUnlock()
		n := 0
		for _, e := range m.data {
			if !e.expired() {
				n++
			}
		}
		return n, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
}

// deliver sends items on a buffered channel and closes it.
func deliver(items map[string]*Item, keys []string) <-chan *Item {
	ch := make(chan *Item, len(items))
	for _, k := range keys {
		if item, ok := items[k]; ok {
			ch <- item
			delete(items, k)
		}
	}
	close(ch)
	return ch
}
