package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jathurchan/davlock/lock"
	"github.com/jathurchan/davlock/logger"
	"github.com/jathurchan/davlock/server"
	"github.com/jathurchan/davlock/types"
)

// envPrefix prefixes every environment override, e.g. DAVLOCK_GRPC_ADDRESS
// for grpc.address.
const envPrefix = "DAVLOCK"

// Config is the daemon configuration as read by viper.
type Config struct {
	LogLevel string        `mapstructure:"log_level"`
	GRPC     GRPCConfig    `mapstructure:"grpc"`
	WebDAV   WebDAVConfig  `mapstructure:"webdav"`
	Metrics  MetricsConfig `mapstructure:"metrics"`
	Lock     LockConfig    `mapstructure:"lock"`
	Store    StoreConfig   `mapstructure:"store"`

	// Root is the host filesystem every path resolves from.
	Root FilesystemConfig `mapstructure:"root"`

	// Mounts are attached to Root in order, so a mount may target a
	// collection inside an earlier mount.
	Mounts []MountConfig `mapstructure:"mounts"`
}

// GRPCConfig configures the gRPC API.
type GRPCConfig struct {
	Address               string          `mapstructure:"address"`
	RequestTimeout        time.Duration   `mapstructure:"request_timeout"`
	ShutdownTimeout       time.Duration   `mapstructure:"shutdown_timeout"`
	MaxConcurrentRequests int             `mapstructure:"max_concurrent_requests"`
	RateLimit             RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig configures per-client rate limiting of the gRPC API.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Requests int           `mapstructure:"requests"`
	Burst    int           `mapstructure:"burst"`
	Window   time.Duration `mapstructure:"window"`
}

// WebDAVConfig configures the WebDAV endpoint. An empty Address disables it.
type WebDAVConfig struct {
	Address string `mapstructure:"address"`
	Prefix  string `mapstructure:"prefix"`
}

// MetricsConfig configures the Prometheus endpoint. An empty Address disables it.
type MetricsConfig struct {
	Address string `mapstructure:"address"`
	Path    string `mapstructure:"path"`
}

// LockConfig mirrors lock.LockManagerConfig.
type LockConfig struct {
	DefaultTimeout time.Duration `mapstructure:"default_timeout"`
	MaxTimeout     time.Duration `mapstructure:"max_timeout"`
	ExpiryRounding time.Duration `mapstructure:"expiry_rounding"`
	MaxLocks       int           `mapstructure:"max_locks"`
}

// StoreConfig enables SQLite persistence of active locks. An empty Path
// keeps locks in memory only.
type StoreConfig struct {
	Path        string        `mapstructure:"path"`
	BusyTimeout time.Duration `mapstructure:"busy_timeout"`
}

// FilesystemConfig describes one filesystem instance.
type FilesystemConfig struct {
	Name string `mapstructure:"name"`

	// Manifest is an optional YAML file seeding the instance.
	Manifest string `mapstructure:"manifest"`

	ReadOnly bool `mapstructure:"read_only"`
}

// MountConfig attaches a filesystem at Path in the host namespace.
type MountConfig struct {
	Path             string `mapstructure:"path"`
	FilesystemConfig `mapstructure:",squash"`
}

// setDefaults registers every key so that environment overrides apply even
// when the config file does not mention them.
func setDefaults(v *viper.Viper) {
	srv := server.DefaultConfig()
	lm := lock.DefaultLockManagerConfig()

	v.SetDefault("log_level", "info")

	v.SetDefault("grpc.address", srv.ListenAddress)
	v.SetDefault("grpc.request_timeout", srv.RequestTimeout)
	v.SetDefault("grpc.shutdown_timeout", srv.ShutdownTimeout)
	v.SetDefault("grpc.max_concurrent_requests", srv.MaxConcurrentReqs)
	v.SetDefault("grpc.rate_limit.enabled", srv.EnableRateLimit)
	v.SetDefault("grpc.rate_limit.requests", srv.RateLimit)
	v.SetDefault("grpc.rate_limit.burst", srv.RateLimitBurst)
	v.SetDefault("grpc.rate_limit.window", srv.RateLimitWindow)

	v.SetDefault("webdav.address", "127.0.0.1:7480")
	v.SetDefault("webdav.prefix", "")

	v.SetDefault("metrics.address", "127.0.0.1:7490")
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("lock.default_timeout", lm.DefaultTimeout)
	v.SetDefault("lock.max_timeout", lm.MaxTimeout)
	v.SetDefault("lock.expiry_rounding", lm.ExpiryRounding)
	v.SetDefault("lock.max_locks", lm.MaxLocks)

	v.SetDefault("store.path", "")
	v.SetDefault("store.busy_timeout", 5*time.Second)

	v.SetDefault("root.name", "root")
	v.SetDefault("root.manifest", "")
	v.SetDefault("root.read_only", false)
}

// newViper returns a viper instance with defaults and environment overrides.
// If cfgFile is non-empty it must exist.
func newViper(cfgFile string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile == "" {
		return v, nil
	}
	v.SetConfigFile(cfgFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("davlockd: read config %s: %w", cfgFile, err)
	}
	return v, nil
}

// loadConfig decodes v into a Config and validates it.
func loadConfig(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("davlockd: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks settings that the component constructors do not.
func (c Config) Validate() error {
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("davlockd: log_level: %w", err)
	}
	if c.GRPC.Address == "" {
		return errors.New("davlockd: grpc.address must be set")
	}
	if c.Root.Name == "" {
		return errors.New("davlockd: root.name must be set")
	}

	seen := map[string]bool{}
	for i, m := range c.Mounts {
		if m.Name == "" {
			return fmt.Errorf("davlockd: mounts[%d].name must be set", i)
		}
		if !strings.HasPrefix(m.Path, "/") {
			return fmt.Errorf("davlockd: mounts[%d].path %q must be absolute", i, m.Path)
		}
		clean := types.CleanPath(m.Path)
		if clean == "/" {
			return fmt.Errorf("davlockd: mounts[%d] cannot be mounted at the root", i)
		}
		if seen[clean] {
			return fmt.Errorf("davlockd: mounts[%d]: %s is mounted twice", i, clean)
		}
		seen[clean] = true
	}

	if c.Metrics.Address != "" && !strings.HasPrefix(c.Metrics.Path, "/") {
		return errors.New("davlockd: metrics.path must start with /")
	}

	lm := lock.DefaultLockManagerConfig()
	for _, opt := range c.Lock.lockOptions() {
		opt(&lm)
	}
	return lm.Validate()
}

// lockOptions converts the lock section into manager options.
func (c LockConfig) lockOptions() []lock.LockManagerOption {
	return []lock.LockManagerOption{
		lock.WithDefaultTimeout(c.DefaultTimeout),
		lock.WithMaxTimeout(c.MaxTimeout),
		lock.WithExpiryRounding(c.ExpiryRounding),
		lock.WithMaxLocks(c.MaxLocks),
	}
}
