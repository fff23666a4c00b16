package prefixcache

import (
	"context"
	"errors"
)

// Accessor is map-style access to a namespace: membership, lookup,
// assignment and removal of single keys.
type Accessor interface {
	Has(ctx context.Context, key string) (bool, error)
	Value(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Unset(ctx context.Context, key string) error
}

var _ Accessor = (*Proxy)(nil)

// Has reports whether key is present. A stored empty value counts as
// present. Any failure other than ErrNotFound also reports true, together
// with the client's error.
func (p *Proxy) Has(ctx context.Context, key string) (bool, error) {
	_, err := p.Do(ctx, OpGet, key)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNotFound):
		return false, nil
	default:
		return true, err
	}
}

// Value returns the bytes stored at key, or ErrNotFound.
func (p *Proxy) Value(ctx context.Context, key string) ([]byte, error) {
	item, err := p.item(ctx, OpGet, key)
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Put stores value at key without expiration. The empty key stands for an
// absent key and is rejected with ErrInvalidKey before reaching the client.
func (p *Proxy) Put(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return ErrInvalidKey
	}
	return p.exec(ctx, OpSet, key, value, NoExpiration)
}

// Unset deletes key.
func (p *Proxy) Unset(ctx context.Context, key string) error {
	return p.exec(ctx, OpDelete, key)
}
