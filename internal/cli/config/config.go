// Package config loads waypoint configuration from waypoint.yaml and
// WAYPOINT_* environment variables, and watches the file for changes.
package config

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config represents the waypoint configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Dispatch DispatchConfig `mapstructure:"dispatch"`
	Log      LogConfig      `mapstructure:"log"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Profile  ProfileConfig  `mapstructure:"profile"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Address         string        `mapstructure:"address"`
	MountPath       string        `mapstructure:"mount_path"`
	ExposeRoutes    bool          `mapstructure:"expose_routes"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DispatchConfig represents dispatcher configuration
type DispatchConfig struct {
	// Strategy is "trie" or "pattern"
	Strategy string        `mapstructure:"strategy"`
	Async    bool          `mapstructure:"async"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// LogConfig represents logging configuration
type LogConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// RedisConfig configures the rate limiter store. An empty address selects
// the in-memory limiter.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Prefix   string `mapstructure:"prefix"`
	FailOpen bool   `mapstructure:"fail_open"`
}

// CacheConfig configures the response cache
type CacheConfig struct {
	// Store is "none", "memory" or "redis"; redis uses redis.addr
	Store         string        `mapstructure:"store"`
	Prefix        string        `mapstructure:"prefix"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// ProfileConfig configures the pprof endpoints
type ProfileConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// AuthConfig configures bearer token authentication
type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// DatabaseConfig represents database configuration
type DatabaseConfig struct {
	// Driver is "sqlite3" or "pgx"
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Loader reads configuration through a viper instance
type Loader struct {
	v    *viper.Viper
	mu   sync.Mutex
	file string
}

// NewLoader creates a loader. An empty file searches for waypoint.yaml in
// the working directory; a missing file is not an error.
func NewLoader(file string) *Loader {
	v := viper.New()
	setDefaults(v)

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("waypoint")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("WAYPOINT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, file: file}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.address", ":8080")
	v.SetDefault("server.mount_path", "")
	v.SetDefault("server.expose_routes", false)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("dispatch.strategy", "trie")
	v.SetDefault("dispatch.async", false)
	v.SetDefault("dispatch.timeout", 0)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.prefix", "waypoint:ratelimit:")
	v.SetDefault("redis.fail_open", true)
	v.SetDefault("cache.store", "none")
	v.SetDefault("cache.prefix", "waypoint:cache:")
	v.SetDefault("cache.sweep_interval", time.Minute)
	v.SetDefault("profile.enabled", false)
	v.SetDefault("profile.path", "/debug/pprof")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("database.driver", "sqlite3")
	v.SetDefault("database.dsn", "file:waypoint.db?cache=shared")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
}

// Load reads the config file, if any, and returns the validated config
func (l *Loader) Load() (*Config, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if l.file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}
	return l.decode()
}

func (l *Loader) decode() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// File returns the config file in use, or "" when running on defaults
func (l *Loader) File() string {
	return l.v.ConfigFileUsed()
}

// Watch calls onChange with the reloaded config every time the config file
// is written. Reload errors are passed through; the caller keeps its
// current config in that case. Watch must be called after Load.
func (l *Loader) Watch(onChange func(*Config, error)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		l.mu.Lock()
		cfg, err := l.decode()
		l.mu.Unlock()
		onChange(cfg, err)
	})
	l.v.WatchConfig()
}

// Load loads the configuration from file, or waypoint.yaml when file is empty
func Load(file string) (*Config, error) {
	return NewLoader(file).Load()
}

// Validate validates the configuration
func Validate(cfg *Config) error {
	if p := cfg.Server.MountPath; p != "" {
		if !strings.HasPrefix(p, "/") {
			return fmt.Errorf("server.mount_path must start with '/', got: %s", p)
		}
		if strings.HasSuffix(p, "/") {
			return fmt.Errorf("server.mount_path must not end with '/', got: %s", p)
		}
	}
	switch cfg.Dispatch.Strategy {
	case "trie", "pattern":
	default:
		return fmt.Errorf("dispatch.strategy must be trie or pattern, got: %s", cfg.Dispatch.Strategy)
	}
	if cfg.Dispatch.Timeout < 0 {
		return fmt.Errorf("dispatch.timeout must not be negative")
	}
	switch cfg.Cache.Store {
	case "", "none", "memory":
	case "redis":
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("cache.store redis needs redis.addr")
		}
	default:
		return fmt.Errorf("cache.store must be none, memory or redis, got: %s", cfg.Cache.Store)
	}
	if cfg.Profile.Enabled && !strings.HasPrefix(cfg.Profile.Path, "/") {
		return fmt.Errorf("profile.path must start with '/', got: %s", cfg.Profile.Path)
	}
	switch cfg.Database.Driver {
	case "sqlite3", "pgx":
	default:
		return fmt.Errorf("database.driver must be sqlite3 or pgx, got: %s", cfg.Database.Driver)
	}
	return nil
}
