package prefixcache

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

type call struct {
	name string
	args []any
}

// recordingClient is a Memory that records the calls it receives.
type recordingClient struct {
	*Memory
	mu    sync.Mutex
	calls []call
}

func newRecordingClient() *recordingClient {
	return &recordingClient{Memory: NewMemory()}
}

func (r *recordingClient) record(name string, args ...any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call{name: name, args: args})
}

func (r *recordingClient) getCalls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call{}, r.calls...)
}

func (r *recordingClient) Get(ctx context.Context, key string) (*Item, error) {
	r.record("get", key)
	return r.Memory.Get(ctx, key)
}

func (r *recordingClient) Set(ctx context.Context, key string, value []byte, expiration time.Duration) error {
	r.record("set", key, value, expiration)
	return r.Memory.Set(ctx, key, value, expiration)
}

func (r *recordingClient) Delete(ctx context.Context, key string) error {
	r.record("delete", key)
	return r.Memory.Delete(ctx, key)
}

func (r *recordingClient) GetMulti(ctx context.Context, keys []string) (map[string]*Item, error) {
	r.record("getMulti", keys)
	return r.Memory.GetMulti(ctx, keys)
}

func (r *recordingClient) SetMulti(ctx context.Context, items map[string][]byte, expiration time.Duration) error {
	r.record("setMulti", items, expiration)
	return r.Memory.SetMulti(ctx, items, expiration)
}

func (r *recordingClient) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	r.record(name, args...)
	return "invoked", nil
}

// failingClient fails every Get and Set with err.
type failingClient struct {
	*Memory
	err error
}

func (f *failingClient) Get(context.Context, string) (*Item, error) {
	return nil, f.err
}

func (f *failingClient) Set(context.Context, string, []byte, time.Duration) error {
	return f.err
}

// plainClient hides the Invoker implementation of the wrapped client.
type plainClient struct {
	Client
}

// mockLogger captures log messages for testing
type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (m *mockLogger) Info(ctx context.Context, format string, args ...interface{}) {
	m.add("INFO: "+format, args...)
}

func (m *mockLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	m.add("WARN: "+format, args...)
}

func (m *mockLogger) Error(ctx context.Context, format string, args ...interface{}) {
	m.add("ERROR: "+format, args...)
}

func (m *mockLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	m.add("DEBUG: "+format, args...)
}

func (m *mockLogger) add(format string, args ...interface{}) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, fmt.Sprintf(format, args...))
}

func (m *mockLogger) getMessages() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.messages...)
}

func (m *mockLogger) contains(substring string) bool {
	for _, msg := range m.getMessages() {
		if strings.Contains(msg, substring) {
			return true
		}
	}
	return false
}
