package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the complete application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Goal     GoalConfig     `mapstructure:"goal"`
	Client   ClientConfig   `mapstructure:"client"`
}

// ServerConfig defines server ports and addresses
type ServerConfig struct {
	APIPort        int    `mapstructure:"api_port"`
	MetricsPort    int    `mapstructure:"metrics_port"`
	MetricsEnabled bool   `mapstructure:"metrics_enabled"`
	BindAddress    string `mapstructure:"bind_address"`
}

// StorageConfig defines storage backend settings
type StorageConfig struct {
	Type             string      `mapstructure:"type"` // "bolt", "sqlite", "redis" or "memory"
	Path             string      `mapstructure:"path"`
	HistoryCacheSize int         `mapstructure:"history_cache_size"`
	Redis            RedisConfig `mapstructure:"redis"`
}

// RedisConfig defines Redis connection settings
type RedisConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db"`
	PoolSize     int    `mapstructure:"pool_size"`
	MinIdleConns int    `mapstructure:"min_idle_conns"`
	DialTimeout  string `mapstructure:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout"`
	KeyPrefix    string `mapstructure:"key_prefix"`
}

// LoggingConfig defines logging behavior
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TrackingConfig defines activity tracking settings
type TrackingConfig struct {
	TickInterval          string `mapstructure:"tick_interval"`
	IdleThreshold         string `mapstructure:"idle_threshold"`
	RolloverCheckInterval string `mapstructure:"rollover_check_interval"`
	NotificationTTL       string `mapstructure:"notification_ttl"`
	AccumulationMode      string `mapstructure:"accumulation_mode"` // "bounded" or "legacy"
	TimeZone              string `mapstructure:"time_zone"`
}

// GoalConfig defines the daily goal policy
type GoalConfig struct {
	Min         string `mapstructure:"min"`
	Max         string `mapstructure:"max"`
	Default     string `mapstructure:"default"`
	ClampOnLoad bool   `mapstructure:"clamp_on_load"`
}

// ClientConfig defines how CLI commands reach a running daemon
type ClientConfig struct {
	Addr    string `mapstructure:"addr"`
	Timeout string `mapstructure:"timeout"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetEnvPrefix("TIMEKEEPER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults and environment variables
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Defaults returns the configuration produced when no file or environment
// overrides are present, without validating it.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// DefaultDataDir returns the directory used for local storage files.
func DefaultDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "timekeeper")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "timekeeper")
	}
	return filepath.Join(os.TempDir(), "timekeeper")
}

// DefaultConfigPath returns the config file location used when --config is not given.
func DefaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "timekeeper", "config.yaml")
	}
	return "timekeeper.yaml"
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.api_port", 7878)
	v.SetDefault("server.metrics_port", 9090)
	v.SetDefault("server.metrics_enabled", true)
	v.SetDefault("server.bind_address", "127.0.0.1")

	// Storage defaults
	v.SetDefault("storage.type", "bolt")
	v.SetDefault("storage.path", filepath.Join(DefaultDataDir(), "timekeeper.bolt"))
	v.SetDefault("storage.history_cache_size", 64)
	v.SetDefault("storage.redis.host", "localhost")
	v.SetDefault("storage.redis.port", 6379)
	v.SetDefault("storage.redis.password", "")
	v.SetDefault("storage.redis.db", 0)
	v.SetDefault("storage.redis.pool_size", 10)
	v.SetDefault("storage.redis.min_idle_conns", 2)
	v.SetDefault("storage.redis.dial_timeout", "5s")
	v.SetDefault("storage.redis.read_timeout", "3s")
	v.SetDefault("storage.redis.write_timeout", "3s")
	v.SetDefault("storage.redis.key_prefix", "timekeeper")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Tracking defaults
	v.SetDefault("tracking.tick_interval", "1s")
	v.SetDefault("tracking.idle_threshold", "5s")
	v.SetDefault("tracking.rollover_check_interval", "1h")
	v.SetDefault("tracking.notification_ttl", "0s")
	v.SetDefault("tracking.accumulation_mode", "bounded")
	v.SetDefault("tracking.time_zone", "Local")

	// Goal defaults
	v.SetDefault("goal.min", "50m")
	v.SetDefault("goal.max", "90m")
	v.SetDefault("goal.default", "2h")
	v.SetDefault("goal.clamp_on_load", false)

	// Client defaults
	v.SetDefault("client.addr", "")
	v.SetDefault("client.timeout", "5s")
}

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Server.APIPort <= 0 || cfg.Server.APIPort > 65535 {
		return fmt.Errorf("invalid API port: %d", cfg.Server.APIPort)
	}
	if cfg.Server.MetricsEnabled && (cfg.Server.MetricsPort <= 0 || cfg.Server.MetricsPort > 65535) {
		return fmt.Errorf("invalid metrics port: %d", cfg.Server.MetricsPort)
	}

	durations := map[string]string{
		"tracking.tick_interval":           cfg.Tracking.TickInterval,
		"tracking.idle_threshold":          cfg.Tracking.IdleThreshold,
		"tracking.rollover_check_interval": cfg.Tracking.RolloverCheckInterval,
		"goal.min":                         cfg.Goal.Min,
		"goal.max":                         cfg.Goal.Max,
		"goal.default":                     cfg.Goal.Default,
	}
	for key, value := range durations {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, value, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", key, value)
		}
	}

	ttl, err := time.ParseDuration(cfg.Tracking.NotificationTTL)
	if err != nil || ttl < 0 {
		return fmt.Errorf("invalid tracking.notification_ttl %q", cfg.Tracking.NotificationTTL)
	}

	minGoal, _ := time.ParseDuration(cfg.Goal.Min)
	maxGoal, _ := time.ParseDuration(cfg.Goal.Max)
	if minGoal > maxGoal {
		return fmt.Errorf("goal.min (%s) must not exceed goal.max (%s)", cfg.Goal.Min, cfg.Goal.Max)
	}

	switch cfg.Tracking.AccumulationMode {
	case "bounded", "legacy":
	default:
		return fmt.Errorf("invalid tracking.accumulation_mode: %q (must be bounded or legacy)", cfg.Tracking.AccumulationMode)
	}

	if _, err := time.LoadLocation(cfg.Tracking.TimeZone); err != nil {
		return fmt.Errorf("invalid tracking.time_zone %q: %w", cfg.Tracking.TimeZone, err)
	}

	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "bolt"
	}

	switch cfg.Storage.Type {
	case "bolt", "sqlite":
		if cfg.Storage.Path == "" {
			return fmt.Errorf("storage path is required for %s storage", cfg.Storage.Type)
		}
		// Ensure storage directory exists
		storageDir := filepath.Dir(cfg.Storage.Path)
		if err := os.MkdirAll(storageDir, 0755); err != nil {
			return fmt.Errorf("failed to create storage directory: %w", err)
		}
	case "redis":
		if cfg.Storage.Redis.Host == "" {
			return fmt.Errorf("storage.redis.host is required for redis storage")
		}
	case "memory":
	default:
		return fmt.Errorf("invalid storage type: %q (must be bolt, sqlite, redis or memory)", cfg.Storage.Type)
	}

	return nil
}

// ClientAddr returns the base URL CLI commands use to reach the daemon.
func (c *Config) ClientAddr() string {
	if c.Client.Addr != "" {
		return c.Client.Addr
	}
	host := c.Server.BindAddress
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return fmt.Sprintf("http://%s:%d", host, c.Server.APIPort)
}
