// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the application configuration.
type Config struct {
	GitHub   GitHubConfig   `mapstructure:"github"`
	Poller   PollerConfig   `mapstructure:"poller"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
}

// GitHubConfig holds the upstream feed configuration.
type GitHubConfig struct {
	URL     string `mapstructure:"url"`
	Token   string `mapstructure:"token"`
	Accept  string `mapstructure:"accept"`
	PerPage int    `mapstructure:"per_page"`
}

// PollerConfig holds pipeline tuning knobs.
type PollerConfig struct {
	QueueSize    int `mapstructure:"queue_size"`
	WorkersCount int `mapstructure:"workers_count"`
	// RateLimitBase is the minimum number of seconds between full poll cycles.
	RateLimitBase int `mapstructure:"rate_limit_base"`
	// RateLimitHard caps the sleep when the quota is exhausted and no reset
	// header arrived.
	RateLimitHard int `mapstructure:"rate_limit_hard"`
}

// DatabaseConfig holds database connection and pool configuration.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres or sqlite3
	Path     string `mapstructure:"path"`   // sqlite3 only
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`

	PoolPrePing  bool `mapstructure:"pool_pre_ping"`
	PoolRecycle  int  `mapstructure:"pool_recycle"` // seconds
	MaxOpenConns int  `mapstructure:"max_open_conns"`
	MaxIdleConns int  `mapstructure:"max_idle_conns"`
}

// ServerConfig holds HTTP server configuration for the metrics API.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

// Load reads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("github.url", "https://api.github.com/events")
	v.SetDefault("github.token", "")
	v.SetDefault("github.accept", "application/vnd.github+json")
	v.SetDefault("github.per_page", 100)
	v.SetDefault("poller.queue_size", 1000)
	v.SetDefault("poller.workers_count", 2)
	v.SetDefault("poller.rate_limit_base", 60)
	v.SetDefault("poller.rate_limit_hard", 3600)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.path", "./data/events.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "")
	v.SetDefault("database.pool_pre_ping", true)
	v.SetDefault("database.pool_recycle", 600)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")

	// Read config file
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Read environment variables
	v.SetEnvPrefix("GHEVENTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks if all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Poller.QueueSize < 1 {
		return fmt.Errorf("poller queue_size must be positive")
	}
	if c.Poller.WorkersCount < 1 {
		return fmt.Errorf("poller workers_count must be positive")
	}
	switch c.Database.Driver {
	case "postgres":
		if c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database name and user are required for postgres")
		}
	case "sqlite3":
		if c.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite3")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}
	return nil
}

// DSN returns the driver-specific data source name.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "sqlite3" {
		return c.Path
	}
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name)
}

// ServerAddress returns the full server address.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
