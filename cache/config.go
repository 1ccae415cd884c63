package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-content-cache/internal/cacheinfra"
)

// Supported cache drivers.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
	DriverBolt   = "bolt"
)

// DefaultTTL is the lifetime of every cached entry unless configured.
const DefaultTTL = 300 * time.Second

// Config exposes cache configuration options for consumers of the cache package.
type Config struct {
	Driver      string        `mapstructure:"driver"`
	TTL         time.Duration `mapstructure:"ttl"`
	Compression bool          `mapstructure:"compression"`
	// CompressionThreshold is the smallest payload that gets compressed.
	CompressionThreshold int `mapstructure:"compression_threshold"`

	Memory MemoryConfig `mapstructure:"memory"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Bolt   BoltConfig   `mapstructure:"bolt"`
}

// MemoryConfig mirrors the in-process sturdyc options.
type MemoryConfig struct {
	Capacity           int           `mapstructure:"capacity"`
	NumShards          int           `mapstructure:"num_shards"`
	EvictionPercentage int           `mapstructure:"eviction_percentage"`
	EvictionInterval   time.Duration `mapstructure:"eviction_interval"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// BoltConfig configures the bolt backend.
type BoltConfig struct {
	Path string `mapstructure:"path"`
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() Config {
	mem := cacheinfra.DefaultConfig()
	return Config{
		Driver:               DriverMemory,
		TTL:                  DefaultTTL,
		Compression:          true,
		CompressionThreshold: DefaultCompressionThreshold,
		Memory: MemoryConfig{
			Capacity:           mem.Capacity,
			NumShards:          mem.NumShards,
			EvictionPercentage: mem.EvictionPercentage,
			EvictionInterval:   mem.EvictionInterval,
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Bolt:  BoltConfig{Path: "data/cache.db"},
	}
}

// Validate checks whether the configuration values are valid.
func (c Config) Validate() error {
	if c.TTL <= 0 {
		return &cacheinfra.ConfigError{Field: "TTL", Message: "must be greater than 0"}
	}

	switch c.Driver {
	case DriverMemory:
		return c.memoryConfig().Validate()
	case DriverRedis:
		return c.redisConfig().Validate()
	case DriverBolt:
		return c.boltConfig().Validate()
	default:
		return &cacheinfra.ConfigError{
			Field:   "Driver",
			Message: fmt.Sprintf("unknown driver %q", c.Driver),
		}
	}
}

// NewCacheService constructs the cache service selected by cfg.Driver.
func NewCacheService(ctx context.Context, cfg Config, logger *slog.Logger) (CacheService, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	var (
		svc CacheService
		err error
	)
	switch cfg.Driver {
	case DriverMemory:
		svc, err = cacheinfra.NewSturdycService(cfg.memoryConfig())
	case DriverRedis:
		svc, err = cacheinfra.NewRedisService(ctx, cfg.redisConfig())
	case DriverBolt:
		svc, err = cacheinfra.NewBoltService(cfg.boltConfig())
	}
	if err != nil {
		return nil, err
	}

	logger.Info("cache ready", "driver", cfg.Driver, "ttl", cfg.TTL)
	return svc, nil
}

// NewReadThrough builds the read path helper for a service using the codec
// settings from cfg.
func NewReadThrough(svc CacheService, cfg Config, logger *slog.Logger) (ReadThrough, error) {
	codec, err := NewMsgpackCodec(cfg.Compression, cfg.CompressionThreshold)
	if err != nil {
		return ReadThrough{}, err
	}
	return ReadThrough{Service: svc, Codec: codec, TTL: cfg.TTL, Logger: logger}, nil
}

func (c Config) memoryConfig() cacheinfra.Config {
	return cacheinfra.Config{
		Capacity:           c.Memory.Capacity,
		NumShards:          c.Memory.NumShards,
		TTL:                c.TTL,
		EvictionPercentage: c.Memory.EvictionPercentage,
		EvictionInterval:   c.Memory.EvictionInterval,
	}
}

func (c Config) redisConfig() cacheinfra.RedisConfig {
	return cacheinfra.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
	}
}

func (c Config) boltConfig() cacheinfra.BoltConfig {
	return cacheinfra.BoltConfig{Path: c.Bolt.Path}
}
