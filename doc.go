// Package prefixcache namespaces a memcached-style cache client by prepending
// a fixed prefix to every key.
//
// # Overview
//
// A Proxy wraps any Client and rewrites the key argument(s) of every call
// before forwarding it. Single-key operations get prefix+key; batch
// operations (those with "Multi" or "Delayed" in their name) get every key
// of their list or map prefixed while values stay untouched. Results and
// errors come back exactly as the client produced them.
//
// # Quick Start
//
//	cache := prefixcache.New("foo", prefixcache.NewMemory())
//	ctx := context.Background()
//
//	cache.Put(ctx, "bar", []byte("x"))   // stores "foobar"
//	ok, _ := cache.Has(ctx, "bar")       // true
//	cache.Unset(ctx, "bar")              // deletes "foobar"
//	cache.Set(ctx, "bar", []byte("x"), 0) // stores "foobar"
//
// # Generic Forwarding
//
// Every operation is also reachable by name, which is how the typed methods
// are built:
//
//	cache.Forward(ctx, "setMulti", map[string][]byte{"a": []byte("1")}, time.Minute)
//	cache.Forward(ctx, "getByKey", "shard-7", "user:1")
//
// Names outside the operation table are passed verbatim to clients that
// implement Invoker:
//
//	cache.Forward(ctx, "flush")
//
// # Backends
//
// Memory is an in-process Client. The memcached and rediscache packages adapt
// gomemcache and go-redis clients; the config package builds a Proxy over one
// of them from environment variables.
//
// # Bypassing the Prefix
//
// Proxy.Client returns the wrapped client for unprefixed access.
//
// # Error Handling
//
//	_, err := cache.Value(ctx, "missing")
//	if errors.Is(err, prefixcache.ErrNotFound) {
//	    // Handle missing key
//	}
//
// Put rejects the empty key with ErrInvalidKey. Malformed forwarded arguments
// yield ErrInvalidArgs. Everything else is the client's own error.
package prefixcache
