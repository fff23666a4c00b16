package prefixcache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Option customizes Proxy behavior.
type Option func(*Proxy)

// WithLogger specifies a logger for failed operations.
// If not provided, a no-op logger is used (no logging).
func WithLogger(logger Logger) Option {
	return func(p *Proxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithLogTag sets a tag prefix for all log messages.
// Useful for identifying the namespace in multi-proxy scenarios.
func WithLogTag(tag string) Option {
	return func(p *Proxy) {
		p.logTag = tag
	}
}

// Proxy prepends a fixed prefix to every key before delegating to a Client.
// It holds no state besides the prefix and the client, so it is as safe for
// concurrent use as the client it wraps.
type Proxy struct {
	prefix string
	client Client
	logger Logger
	logTag string
}

var (
	_ Client  = (*Proxy)(nil)
	_ Invoker = (*Proxy)(nil)
)

// New creates a Proxy that namespaces every key of c under prefix.
// An empty prefix makes the Proxy a plain passthrough.
func New(prefix string, c Client, opts ...Option) *Proxy {
	p := &Proxy{
		prefix: prefix,
		client: c,
		logger: defaultLogger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Sub returns a Proxy for the nested namespace p.Prefix()+prefix over the
// same client, logger and log tag.
func (p *Proxy) Sub(prefix string) *Proxy {
	return &Proxy{
		prefix: p.prefix + prefix,
		client: p.client,
		logger: p.logger,
		logTag: p.logTag,
	}
}

// Prefix returns the prefix prepended to every key.
func (p *Proxy) Prefix() string { return p.prefix }

// Client returns the wrapped client, for access without the prefix.
func (p *Proxy) Client() Client { return p.client }

// Unprefix strips the prefix from a stored key, as found in batch results.
func (p *Proxy) Unprefix(key string) (string, bool) {
	return strings.CutPrefix(key, p.prefix)
}

// Forward calls the operation named name with args, prefixing the key
// argument when name is a known operation. Other names are handed verbatim
// to the client's Invoker; clients without one report ErrUnknownOperation.
func (p *Proxy) Forward(ctx context.Context, name string, args ...any) (any, error) {
	if op, ok := LookupOp(name); ok {
		return p.Do(ctx, op, args...)
	}

	inv, ok := p.client.(Invoker)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, name)
	}
	res, err := inv.Invoke(ctx, name, args...)
	if err != nil {
		p.logFailure(ctx, name, err)
	}
	return res, err
}

// Invoke is Forward, so a Proxy can wrap another Proxy.
func (p *Proxy) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	return p.Forward(ctx, name, args...)
}

// Do prefixes the key argument(s) of op and calls it on the client.
// Results and errors come back as the client returned them.
func (p *Proxy) Do(ctx context.Context, op Op, args ...any) (any, error) {
	if !op.valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownOperation, op)
	}

	rewritten, err := p.rewrite(op, args)
	if err != nil {
		p.logf("error", ctx, "%s rejected: %v", op, err)
		return nil, err
	}

	res, err := dispatch(ctx, p.client, op, rewritten)
	if err != nil {
		p.logFailure(ctx, op.String(), err)
	}
	return res, err
}

func (p *Proxy) logFailure(ctx context.Context, name string, err error) {
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotStored) || errors.Is(err, ErrCASConflict) {
		return
	}
	p.logf("error", ctx, "%s failed: %v", name, err)
}

func (p *Proxy) logf(level string, ctx context.Context, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if p.logTag != "" {
		msg = p.logTag + " " + msg
	}
	switch level {
	case "info":
		p.logger.Info(ctx, "%s", msg)
	case "warn":
		p.logger.Warn(ctx, "%s", msg)
	case "error":
		p.logger.Error(ctx, "%s", msg)
	case "debug":
		p.logger.Debug(ctx, "%s", msg)
	}
}

func (p *Proxy) item(ctx context.Context, op Op, args ...any) (*Item, error) {
	res, err := p.Do(ctx, op, args...)
	item, _ := res.(*Item)
	return item, err
}

func (p *Proxy) items(ctx context.Context, op Op, args ...any) (map[string]*Item, error) {
	res, err := p.Do(ctx, op, args...)
	items, _ := res.(map[string]*Item)
	return items, err
}

func (p *Proxy) stream(ctx context.Context, op Op, args ...any) (<-chan *Item, error) {
	res, err := p.Do(ctx, op, args...)
	ch, _ := res.(<-chan *Item)
	return ch, err
}

func (p *Proxy) counter(ctx context.Context, op Op, args ...any) (uint64, error) {
	res, err := p.Do(ctx, op, args...)
	n, _ := res.(uint64)
	return n, err
}

func (p *Proxy) exec(ctx context.Context, op Op, args ...any) error {
	_, err := p.Do(ctx, op, args...)
	return err
}

func (p *Proxy) Get(ctx context.Context, key string) (*Item, error) {
	return p.item(ctx, OpGet, key)
}

func (p *Proxy) GetByKey(ctx context.Context, serverKey, key string) (*Item, error) {
	return p.item(ctx, OpGetByKey, serverKey, key)
}

// GetMulti fetches several keys. The result is keyed by stored keys, which
// carry the prefix.
func (p *Proxy) GetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	return p.items(ctx, OpGetMulti, keys)
}

func (p *Proxy) GetMultiByKey(ctx context.Context, serverKey string, keys []string) (map[string]*Item, error) {
	return p.items(ctx, OpGetMultiByKey, serverKey, keys)
}

func (p *Proxy) GetDelayed(ctx context.Context, keys []string) (<-chan *Item, error) {
	return p.stream(ctx, OpGetDelayed, keys)
}

func (p *Proxy) GetDelayedByKey(ctx context.Context, serverKey string, keys []string) (<-chan *Item, error) {
	return p.stream(ctx, OpGetDelayedByKey, serverKey, keys)
}

func (p *Proxy) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpSet, key, value, expiration)
}

func (p *Proxy) SetByKey(ctx context.Context, serverKey, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpSetByKey, serverKey, key, value, expiration)
}

func (p *Proxy) SetMulti(ctx context.Context, items map[string][]byte, expiration time.Duration) error {
	return p.exec(ctx, OpSetMulti, items, expiration)
}

func (p *Proxy) SetMultiByKey(ctx context.Context, serverKey string, items map[string][]byte, expiration time.Duration) error {
	return p.exec(ctx, OpSetMultiByKey, serverKey, items, expiration)
}

func (p *Proxy) Add(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpAdd, key, value, expiration)
}

func (p *Proxy) AddByKey(ctx context.Context, serverKey, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpAddByKey, serverKey, key, value, expiration)
}

func (p *Proxy) Replace(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpReplace, key, value, expiration)
}

func (p *Proxy) ReplaceByKey(ctx context.Context, serverKey, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpReplaceByKey, serverKey, key, value, expiration)
}

func (p *Proxy) Append(ctx context.Context, key string, value []byte) error {
	return p.exec(ctx, OpAppend, key, value)
}

func (p *Proxy) AppendByKey(ctx context.Context, serverKey, key string, value []byte) error {
	return p.exec(ctx, OpAppendByKey, serverKey, key, value)
}

func (p *Proxy) Prepend(ctx context.Context, key string, value []byte) error {
	return p.exec(ctx, OpPrepend, key, value)
}

func (p *Proxy) PrependByKey(ctx context.Context, serverKey, key string, value []byte) error {
	return p.exec(ctx, OpPrependByKey, serverKey, key, value)
}

func (p *Proxy) Cas(ctx context.Context, token CASToken, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpCas, token, key, value, expiration)
}

func (p *Proxy) CasByKey(ctx context.Context, token CASToken, serverKey, key string, value []byte, expiration time.Duration) error {
	return p.exec(ctx, OpCasByKey, token, serverKey, key, value, expiration)
}

func (p *Proxy) Delete(ctx context.Context, key string) error {
	return p.exec(ctx, OpDelete, key)
}

func (p *Proxy) DeleteByKey(ctx context.Context, serverKey, key string) error {
	return p.exec(ctx, OpDeleteByKey, serverKey, key)
}

func (p *Proxy) DeleteMulti(ctx context.Context, keys []string) error {
	return p.exec(ctx, OpDeleteMulti, keys)
}

func (p *Proxy) DeleteMultiByKey(ctx context.Context, serverKey string, keys []string) error {
	return p.exec(ctx, OpDeleteMultiByKey, serverKey, keys)
}

func (p *Proxy) Increment(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, OpIncrement, key, delta)
}

func (p *Proxy) IncrementByKey(ctx context.Context, serverKey, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, OpIncrementByKey, serverKey, key, delta)
}

func (p *Proxy) Decrement(ctx context.Context, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, OpDecrement, key, delta)
}

func (p *Proxy) DecrementByKey(ctx context.Context, serverKey, key string, delta uint64) (uint64, error) {
	return p.counter(ctx, OpDecrementByKey, serverKey, key, delta)
}

func (p *Proxy) Touch(ctx context.Context, key string, expiration time.Duration) error {
	return p.exec(ctx, OpTouch, key, expiration)
}

func (p *Proxy) TouchByKey(ctx context.Context, serverKey, key string, expiration time.Duration) error {
	return p.exec(ctx, OpTouchByKey, serverKey, key, expiration)
}
