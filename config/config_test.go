package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/khicago/prefixcache"
)

var envVars = []string{
	"PREFIXCACHE_PREFIX", "PREFIXCACHE_BACKEND", "PREFIXCACHE_LOG_TAG",
	"MEMCACHED_SERVERS", "MEMCACHED_TIMEOUT",
	"REDIS_ADDRESS", "REDIS_PASSWORD", "REDIS_DB", "REDIS_POOL_SIZE",
}

// clearEnv blanks every variable for the test; t.Setenv restores them.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envVars {
		t.Setenv(key, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	assert.Equal(t, "", cfg.Prefix)
	assert.Equal(t, BackendMemory, cfg.Backend)
	assert.Equal(t, "localhost:11211", cfg.MemcachedServers)
	assert.Equal(t, "500ms", cfg.MemcachedTimeout)
	assert.Equal(t, "localhost:6379", cfg.RedisAddress)
	assert.Equal(t, "0", cfg.RedisDB)
	assert.Equal(t, "10", cfg.RedisPoolSize)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("PREFIXCACHE_PREFIX", "app:")
	t.Setenv("PREFIXCACHE_BACKEND", "redis")
	t.Setenv("REDIS_DB", "3")

	cfg := Load()
	assert.Equal(t, "app:", cfg.Prefix)
	assert.Equal(t, BackendRedis, cfg.Backend)
	assert.Equal(t, "3", cfg.RedisDB)
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "cache.env")
	content := "PREFIXCACHE_PREFIX=sessions:\nMEMCACHED_SERVERS=10.0.0.1:11211, 10.0.0.2:11211\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// godotenv never overrides set variables, so unset the blanks first.
	require.NoError(t, os.Unsetenv("PREFIXCACHE_PREFIX"))
	require.NoError(t, os.Unsetenv("MEMCACHED_SERVERS"))
	t.Cleanup(func() {
		os.Unsetenv("PREFIXCACHE_PREFIX")
		os.Unsetenv("MEMCACHED_SERVERS")
	})

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sessions:", cfg.Prefix)
	assert.Equal(t, []string{"10.0.0.1:11211", "10.0.0.2:11211"}, cfg.Servers())
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "absent.env"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{"memory", func(c *Config) {}, false},
		{"unknown backend", func(c *Config) { c.Backend = "couchbase" }, true},
		{"memcached", func(c *Config) { c.Backend = BackendMemcached }, false},
		{"memcached without servers", func(c *Config) {
			c.Backend = BackendMemcached
			c.MemcachedServers = " , "
		}, true},
		{"memcached bad timeout", func(c *Config) {
			c.Backend = BackendMemcached
			c.MemcachedTimeout = "soon"
		}, true},
		{"redis", func(c *Config) { c.Backend = BackendRedis }, false},
		{"redis db out of range", func(c *Config) {
			c.Backend = BackendRedis
			c.RedisDB = "16"
		}, true},
		{"redis zero pool", func(c *Config) {
			c.Backend = BackendRedis
			c.RedisPoolSize = "0"
		}, true},
		{"redis bad pool", func(c *Config) {
			c.Backend = BackendRedis
			c.RedisPoolSize = "many"
		}, true},
		{"memory ignores redis fields", func(c *Config) { c.RedisDB = "x" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			cfg := Load()
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOpen_Memory(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.Prefix = "ns:"

	cache, err := Open(context.Background(), cfg)
	require.NoError(t, err)
	defer cache.Close()

	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, "k", []byte("v")))
	_, err = cache.Client().Get(ctx, "ns:k")
	assert.NoError(t, err)
}

func TestOpen_Redis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	clearEnv(t)
	cfg := Load()
	cfg.Backend = BackendRedis
	cfg.RedisAddress = mr.Addr()
	cfg.Prefix = "app:"

	cache, err := Open(context.Background(), cfg)
	require.NoError(t, err)

	require.NoError(t, cache.Put(context.Background(), "k", []byte("v")))
	got, err := mr.Get("app:k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)

	assert.NoError(t, cache.Close())
}

func TestOpen_Errors(t *testing.T) {
	clearEnv(t)

	_, err := Open(context.Background(), nil)
	assert.Error(t, err)

	cfg := Load()
	cfg.Backend = "nope"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = Open(ctx, Load())
	assert.ErrorIs(t, err, context.Canceled)

	cfg = Load()
	cfg.Backend = BackendMemcached
	cfg.MemcachedServers = "127.0.0.1:1"
	_, err = Open(context.Background(), cfg)
	assert.Error(t, err)
}

type captureLogger struct{ lines []string }

func (l *captureLogger) Info(context.Context, string, ...interface{}) {}
func (l *captureLogger) Warn(context.Context, string, ...interface{}) {}
func (l *captureLogger) Debug(context.Context, string, ...interface{}) {}
func (l *captureLogger) Error(_ context.Context, format string, args ...interface{}) {
	l.lines = append(l.lines, format)
	for _, a := range args {
		if s, ok := a.(string); ok {
			l.lines = append(l.lines, s)
		}
	}
}

func TestOpen_LogTag(t *testing.T) {
	clearEnv(t)
	cfg := Load()
	cfg.LogTag = "[cfg]"
	logger := &captureLogger{}

	cache, err := Open(context.Background(), cfg, prefixcache.WithLogger(logger))
	require.NoError(t, err)

	_, _ = cache.Forward(context.Background(), "get")
	require.NotEmpty(t, logger.lines)
	assert.Contains(t, logger.lines[len(logger.lines)-1], "[cfg] get rejected")
}
