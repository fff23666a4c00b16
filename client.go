package prefixcache

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound         = errors.New("prefixcache: not found")
	ErrNotStored        = errors.New("prefixcache: not stored")
	ErrCASConflict      = errors.New("prefixcache: cas conflict")
	ErrTypeMismatch     = errors.New("prefixcache: type mismatch")
	ErrInvalidKey       = errors.New("prefixcache: invalid key")
	ErrInvalidArgs      = errors.New("prefixcache: invalid arguments")
	ErrUnknownOperation = errors.New("prefixcache: unknown operation")
)

// NoExpiration stores an item until it is deleted or evicted.
const NoExpiration time.Duration = 0

// CASToken identifies the version of an item observed by a read.
// ID is the numeric version where the backend exposes one. Handle carries a
// backend-native value the backend needs to issue the swap.
type CASToken struct {
	ID     uint64
	Handle any
}

// Item is a cached value as returned by a Client.
type Item struct {
	Key        string
	Value      []byte
	Flags      uint32
	Expiration time.Duration
	CAS        CASToken
}

// Client describes the memcached-style capability set the Proxy forwards to.
// Expiration 0 means the item never expires. Server keys route an operation
// to the node owning serverKey; backends with a single node ignore them.
// Implementations must be thread-safe.
type Client interface {
	Get(ctx context.Context, key string) (*Item, error)
	GetByKey(ctx context.Context, serverKey, key string) (*Item, error)
	Set(ctx context.Context, key string, value []byte, expiration time.Duration) error
	SetByKey(ctx context.Context, serverKey, key string, value []byte, expiration time.Duration) error
	Add(ctx context.Context, key string, value []byte, expiration time.Duration) error
	AddByKey(ctx context.Context, serverKey, key string, value []byte, expiration time.Duration) error
	Replace(ctx context.Context, key string, value []byte, expiration time.Duration) error
	ReplaceByKey(ctx context.Context, serverKey, key string, value []byte, expiration time.Duration) error
	Append(ctx context.Context, key string, value []byte) error
	AppendByKey(ctx context.Context, serverKey, key string, value []byte) error
	Prepend(ctx context.Context, key string, value []byte) error
	PrependByKey(ctx context.Context, serverKey, key string, value []byte) error
	Cas(ctx context.Context, token CASToken, key string, value []byte, expiration time.Duration) error
	CasByKey(ctx context.Context, token CASToken, serverKey, key string, value []byte, expiration time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByKey(ctx context.Context, serverKey, key string) error
	Increment(ctx context.Context, key string, delta uint64) (uint64, error)
	IncrementByKey(ctx context.Context, serverKey, key string, delta uint64) (uint64, error)
	Decrement(ctx context.Context, key string, delta uint64) (uint64, error)
	DecrementByKey(ctx context.Context, serverKey, key string, delta uint64) (uint64, error)
	Touch(ctx context.Context, key string, expiration time.Duration) error
	TouchByKey(ctx context.Context, serverKey, key string, expiration time.Duration) error

	// Batch operations
	GetMulti(ctx context.Context, keys []string) (map[string]*Item, error)
	GetMultiByKey(ctx context.Context, serverKey string, keys []string) (map[string]*Item, error)
	SetMulti(ctx context.Context, items map[string][]byte, expiration time.Duration) error
	SetMultiByKey(ctx context.Context, serverKey string, items map[string][]byte, expiration time.Duration) error
	DeleteMulti(ctx context.Context, keys []string) error
	DeleteMultiByKey(ctx context.Context, serverKey string, keys []string) error

	// Delayed fetches deliver hits on the returned channel, which is closed
	// once every requested key has been resolved.
	GetDelayed(ctx context.Context, keys []string) (<-chan *Item, error)
	GetDelayedByKey(ctx context.Context, serverKey string, keys []string) (<-chan *Item, error)
}

// Invoker is implemented by clients that accept operations outside the
// Client method set, addressed by name. Unknown names should report
// ErrUnknownOperation.
type Invoker interface {
	Invoke(ctx context.Context, name string, args ...any) (any, error)
}
