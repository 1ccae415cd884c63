// Package config loads the contentd configuration from defaults, an optional
// YAML file and CONTENTD_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/goliatone/go-content-cache/auth"
	"github.com/goliatone/go-content-cache/cache"
	"github.com/goliatone/go-content-cache/content"
	"github.com/goliatone/go-content-cache/media"
)

// EnvPrefix prefixes every environment override, e.g. CONTENTD_SERVER_ADDR.
const EnvPrefix = "CONTENTD"

// Store drivers.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreSQLite   = "sqlite"
)

// DefaultBodyLimit caps request bodies, uploads included.
const DefaultBodyLimit = 5 << 20

// Config is the complete contentd configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Store      StoreConfig      `mapstructure:"store"`
	Cache      cache.Config     `mapstructure:"cache"`
	Media      media.Config     `mapstructure:"media"`
	Auth       auth.Config      `mapstructure:"auth"`
	Pagination PaginationConfig `mapstructure:"pagination"`
	Log        LogConfig        `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	BodyLimit       int64         `mapstructure:"body_limit"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

// StoreConfig selects the store driver. DSN is ignored for the memory
// store.
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

// PaginationConfig bounds listing windows.
type PaginationConfig struct {
	MaxPageSize int `mapstructure:"max_page_size"`
}

// LogConfig selects the slog handler. Format is "json" or "text".
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns a configuration that runs entirely in memory.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":5000",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			BodyLimit:       DefaultBodyLimit,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost"},
		},
		Store:      StoreConfig{Driver: StoreMemory},
		Cache:      cache.DefaultConfig(),
		Media:      media.DefaultConfig(),
		Auth:       auth.Config{TokenTTL: auth.DefaultTokenTTL},
		Pagination: PaginationConfig{MaxPageSize: content.MaxPageSize},
		Log:        LogConfig{Level: "info", Format: "json"},
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.Server.Addr == "" {
		return &Error{Field: "server.addr", Message: "is required"}
	}
	if c.Server.BodyLimit <= 0 {
		return &Error{Field: "server.body_limit", Message: "must be greater than 0"}
	}

	switch c.Store.Driver {
	case StoreMemory:
	case StorePostgres, StoreSQLite:
		if c.Store.DSN == "" {
			return &Error{Field: "store.dsn", Message: fmt.Sprintf("is required for driver %q", c.Store.Driver)}
		}
	default:
		return &Error{Field: "store.driver", Message: fmt.Sprintf("unknown driver %q", c.Store.Driver)}
	}

	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if c.Media.Dir == "" {
		return &Error{Field: "media.dir", Message: "is required"}
	}
	if len(c.Auth.Secret) < 16 {
		return &Error{Field: "auth.secret", Message: "must be at least 16 bytes"}
	}
	if c.Pagination.MaxPageSize <= 0 {
		return &Error{Field: "pagination.max_page_size", Message: "must be greater than 0"}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return &Error{Field: "log.level", Message: err.Error()}
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return &Error{Field: "log.format", Message: fmt.Sprintf("unknown format %q", c.Log.Format)}
	}
	return nil
}

// Error describes an invalid setting.
type Error struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return "config error in field " + e.Field + ": " + e.Message
}

// Load reads path (optional) and the environment into a validated Config.
// Flags bound to v before the call take precedence over both.
func Load(v *viper.Viper, path string) (Config, error) {
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setDefaults registers every leaf key so AutomaticEnv can override it
// during Unmarshal.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.body_limit", d.Server.BodyLimit)
	v.SetDefault("server.cors_origins", d.Server.CORSOrigins)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.dsn", d.Store.DSN)

	v.SetDefault("cache.driver", d.Cache.Driver)
	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.compression", d.Cache.Compression)
	v.SetDefault("cache.compression_threshold", d.Cache.CompressionThreshold)
	v.SetDefault("cache.memory.capacity", d.Cache.Memory.Capacity)
	v.SetDefault("cache.memory.num_shards", d.Cache.Memory.NumShards)
	v.SetDefault("cache.memory.eviction_percentage", d.Cache.Memory.EvictionPercentage)
	v.SetDefault("cache.memory.eviction_interval", d.Cache.Memory.EvictionInterval)
	v.SetDefault("cache.redis.addr", d.Cache.Redis.Addr)
	v.SetDefault("cache.redis.password", d.Cache.Redis.Password)
	v.SetDefault("cache.redis.db", d.Cache.Redis.DB)
	v.SetDefault("cache.bolt.path", d.Cache.Bolt.Path)

	v.SetDefault("media.dir", d.Media.Dir)
	v.SetDefault("media.url_prefix", d.Media.URLPrefix)
	v.SetDefault("media.max_width", d.Media.MaxWidth)
	v.SetDefault("media.jpeg_quality", d.Media.JPEGQuality)

	v.SetDefault("auth.secret", d.Auth.Secret)
	v.SetDefault("auth.token_ttl", d.Auth.TokenTTL)

	v.SetDefault("pagination.max_page_size", d.Pagination.MaxPageSize)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// NewLogger builds the slog logger described by c. A nil w writes to stderr.
func (c LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(c.Level)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = os.Stderr
	}

	opts := &slog.HandlerOptions{Level: level}
	switch c.Format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json", "":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", c.Format)
	}
}

func parseLevel(raw string) (slog.Level, error) {
	var level slog.Level
	if raw == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, errors.New("unknown level " + raw)
	}
	return level, nil
}
