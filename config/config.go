// Package config builds a prefixing cache from environment variables.
//
// Environment Variables:
//
// Cache Settings:
//   - PREFIXCACHE_PREFIX: Prefix prepended to every key (default: empty)
//   - PREFIXCACHE_BACKEND: "memory", "memcached" or "redis" (default: memory)
//   - PREFIXCACHE_LOG_TAG: Tag in front of every log line (default: empty)
//
// Memcached Configuration:
//   - MEMCACHED_SERVERS: Comma-separated server addresses (default: localhost:11211)
//   - MEMCACHED_TIMEOUT: Socket timeout (default: 500ms)
//
// Redis Configuration:
//   - REDIS_ADDRESS: Redis server address (default: localhost:6379)
//   - REDIS_PASSWORD: Redis password
//   - REDIS_DB: Redis database number 0-15 (default: 0)
//   - REDIS_POOL_SIZE: Redis connection pool size (default: 10)
//
// Example usage:
//
//	cfg, err := config.LoadFile()
//	if err != nil {
//		log.Fatal(err)
//	}
//	cache, err := config.Open(ctx, cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/khicago/prefixcache"
	"github.com/khicago/prefixcache/memcached"
	"github.com/khicago/prefixcache/rediscache"
)

// Backend names accepted in PREFIXCACHE_BACKEND.
const (
	BackendMemory    = "memory"
	BackendMemcached = "memcached"
	BackendRedis     = "redis"
)

// Config holds the connection parameters of a cache. Numeric fields are kept
// as the raw strings of their environment variables and checked by Validate.
type Config struct {
	Prefix  string // Key prefix
	Backend string // memory, memcached or redis
	LogTag  string // Log line tag

	MemcachedServers string // Comma-separated host:port list
	MemcachedTimeout string // Socket timeout, e.g. "500ms"

	RedisAddress  string // Redis server address (host:port)
	RedisPassword string // Redis authentication password
	RedisDB       string // Redis database number (0-15)
	RedisPoolSize string // Redis connection pool size
}

// Load reads the configuration from environment variables, using defaults
// for unset ones. It does not validate.
func Load() *Config {
	return &Config{
		Prefix:  getEnv("PREFIXCACHE_PREFIX", ""),
		Backend: getEnv("PREFIXCACHE_BACKEND", BackendMemory),
		LogTag:  getEnv("PREFIXCACHE_LOG_TAG", ""),

		MemcachedServers: getEnv("MEMCACHED_SERVERS", "localhost:11211"),
		MemcachedTimeout: getEnv("MEMCACHED_TIMEOUT", "500ms"),

		RedisAddress:  getEnv("REDIS_ADDRESS", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnv("REDIS_DB", "0"),
		RedisPoolSize: getEnv("REDIS_POOL_SIZE", "10"),
	}
}

// LoadFile applies the given .env files to the environment, then calls Load.
// Variables already set in the environment win. With no paths, ./.env is
// read if it exists.
func LoadFile(paths ...string) (*Config, error) {
	if err := godotenv.Load(paths...); err != nil {
		if len(paths) > 0 || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load env file: %w", err)
		}
	}
	return Load(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// Servers returns the memcached addresses, trimmed, without empty entries.
func (c *Config) Servers() []string {
	var servers []string
	for _, s := range strings.Split(c.MemcachedServers, ",") {
		if s = strings.TrimSpace(s); s != "" {
			servers = append(servers, s)
		}
	}
	return servers
}

// Validate checks the settings of the selected backend.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMemcached:
		if len(c.Servers()) == 0 {
			return fmt.Errorf("MEMCACHED_SERVERS is required when using memcached")
		}
		if d, err := time.ParseDuration(c.MemcachedTimeout); err != nil || d <= 0 {
			return fmt.Errorf("MEMCACHED_TIMEOUT must be a positive duration (e.g., '500ms', '1s')")
		}
	case BackendRedis:
		if c.RedisAddress == "" {
			return fmt.Errorf("REDIS_ADDRESS is required when using redis")
		}
		if db, err := strconv.Atoi(c.RedisDB); err != nil || db < 0 || db > 15 {
			return fmt.Errorf("REDIS_DB must be a number between 0 and 15")
		}
		if poolSize, err := strconv.Atoi(c.RedisPoolSize); err != nil || poolSize < 1 {
			return fmt.Errorf("REDIS_POOL_SIZE must be a positive number")
		}
	default:
		return fmt.Errorf("PREFIXCACHE_BACKEND must be 'memory', 'memcached' or 'redis'")
	}
	return nil
}

// Cache is a Proxy over a backend opened from a Config.
type Cache struct {
	*prefixcache.Proxy
	close func() error
}

// Close releases the backend connections.
func (c *Cache) Close() error {
	if c.close == nil {
		return nil
	}
	return c.close()
}

// Open validates cfg, connects to its backend and wraps it in a Proxy.
// The PREFIXCACHE_LOG_TAG tag is applied before opts.
func Open(ctx context.Context, cfg *Config, opts ...prefixcache.Option) (*Cache, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	client, closer, err := openBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if cfg.LogTag != "" {
		opts = append([]prefixcache.Option{prefixcache.WithLogTag(cfg.LogTag)}, opts...)
	}
	return &Cache{
		Proxy: prefixcache.New(cfg.Prefix, client, opts...),
		close: closer,
	}, nil
}

func openBackend(ctx context.Context, cfg *Config) (prefixcache.Client, func() error, error) {
	switch cfg.Backend {
	case BackendMemcached:
		timeout, _ := time.ParseDuration(cfg.MemcachedTimeout)
		mc, err := memcached.New(cfg.Servers(), memcached.WithTimeout(timeout))
		if err != nil {
			return nil, nil, err
		}
		if _, err := mc.Invoke(ctx, "ping"); err != nil {
			return nil, nil, fmt.Errorf("failed to connect to memcached: %w", err)
		}
		return mc, nil, nil

	case BackendRedis:
		db, _ := strconv.Atoi(cfg.RedisDB)
		poolSize, _ := strconv.Atoi(cfg.RedisPoolSize)
		rc, err := rediscache.Dial(&rediscache.Config{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       db,
			PoolSize: poolSize,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, rc.Close, nil
	}
	return prefixcache.NewMemory(), nil, nil
}
