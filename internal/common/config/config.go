// Package config provides configuration management for the AG-UI gateway.
// It supports loading configuration from environment variables, config files, and defaults.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration sections for the gateway.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	NATS     NATSConfig     `mapstructure:"nats"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	RunLog   RunLogConfig   `mapstructure:"runlog"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host        string `mapstructure:"host"`
	Port        int    `mapstructure:"port"`
	ReadTimeout int    `mapstructure:"readTimeout"` // in seconds
	// WriteTimeout applies to the whole response. Zero disables it, which is
	// the default because run responses are long-lived SSE streams.
	WriteTimeout int `mapstructure:"writeTimeout"`
}

// StorageConfig selects the thread registry driver.
type StorageConfig struct {
	Driver string `mapstructure:"driver"` // memory, sqlite, postgres
	Path   string `mapstructure:"path"`   // sqlite database file
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

// NATSConfig holds NATS messaging configuration.
type NATSConfig struct {
	URL           string `mapstructure:"url"`
	ClientID      string `mapstructure:"clientId"`
	MaxReconnects int    `mapstructure:"maxReconnects"`
}

// AuthConfig holds authentication configuration. Auth is disabled when the
// bearer token is empty.
type AuthConfig struct {
	BearerToken string `mapstructure:"bearerToken"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"outputPath"`
}

// RunLogConfig bounds the in-memory per-thread event history.
type RunLogConfig struct {
	MaxEventsPerThread int `mapstructure:"maxEventsPerThread"`
}

// PipelineConfig selects the host pipeline driver.
type PipelineConfig struct {
	Driver string `mapstructure:"driver"`
}

// ReadTimeoutDuration returns the read timeout as a time.Duration.
func (s *ServerConfig) ReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// WriteTimeoutDuration returns the write timeout as a time.Duration.
func (s *ServerConfig) WriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// Enabled reports whether bearer-token auth is configured.
func (a *AuthConfig) Enabled() bool {
	return a.BearerToken != ""
}

// detectDefaultLogFormat returns the appropriate log format based on environment.
// Returns "json" if running in Kubernetes or other production environments.
// Returns "text" for terminal/development use (human-readable console format).
func detectDefaultLogFormat() string {
	// Check if running in Kubernetes
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return "json"
	}

	// Check for explicit production environment
	if env := os.Getenv("AGUI_ENV"); env == "production" || env == "prod" {
		return "json"
	}

	// Default to text format for terminal use (more readable than JSON)
	return "text"
}

// setDefaults configures default values for all configuration options.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 30)
	v.SetDefault("server.writeTimeout", 0) // SSE streams stay open for the whole run

	// Storage defaults
	v.SetDefault("storage.driver", "memory")
	v.SetDefault("storage.path", "agui-gateway.db")
	v.SetDefault("storage.dsn", "")

	// NATS defaults - empty URL means use in-memory event bus
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.clientId", "agui-gateway")
	v.SetDefault("nats.maxReconnects", 10)

	// Auth defaults - empty token disables auth
	v.SetDefault("auth.bearerToken", "")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", detectDefaultLogFormat())
	v.SetDefault("logging.outputPath", "stdout")

	// Run log defaults
	v.SetDefault("runlog.maxEventsPerThread", 1000)

	// Pipeline defaults
	v.SetDefault("pipeline.driver", "loopback")
}

// Load reads configuration from environment variables, config file, and defaults.
// Environment variables use the prefix AGUI_ with snake_case naming.
// Config file should be named config.yaml and placed in the current directory or /etc/agui-gateway/.
func Load() (*Config, error) {
	return LoadWithPath("")
}

// LoadWithPath reads configuration from the specified path or default locations.
func LoadWithPath(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults first
	setDefaults(v)

	// Configure environment variables
	v.SetEnvPrefix("AGUI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Explicit bindings for snake_case env vars (camelCase config keys)
	// AutomaticEnv does not handle camelCase to SNAKE_CASE conversion,
	// so we explicitly bind keys where env var naming differs from config key naming.
	_ = v.BindEnv("server.readTimeout", "AGUI_SERVER_READ_TIMEOUT")
	_ = v.BindEnv("server.writeTimeout", "AGUI_SERVER_WRITE_TIMEOUT")
	_ = v.BindEnv("auth.bearerToken", "AGUI_AUTH_BEARER_TOKEN")
	_ = v.BindEnv("nats.clientId", "AGUI_NATS_CLIENT_ID")
	_ = v.BindEnv("nats.maxReconnects", "AGUI_NATS_MAX_RECONNECTS")
	_ = v.BindEnv("runlog.maxEventsPerThread", "AGUI_RUNLOG_MAX_EVENTS_PER_THREAD")

	// Configure config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	if configPath != "" {
		v.AddConfigPath(configPath)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/agui-gateway/")

	// Read config file (ignore if not found)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// validate checks that all required configuration fields are set.
func validate(cfg *Config) error {
	var errs []string

	// Server validation - always required
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}

	// Storage validation
	switch strings.ToLower(cfg.Storage.Driver) {
	case "memory":
	case "sqlite":
		if cfg.Storage.Path == "" {
			errs = append(errs, "storage.path is required when storage.driver is sqlite")
		}
	case "postgres":
		if cfg.Storage.DSN == "" {
			errs = append(errs, "storage.dsn is required when storage.driver is postgres")
		}
	default:
		errs = append(errs, "storage.driver must be one of: memory, sqlite, postgres")
	}

	// NATS validation - optional (uses in-memory event bus if not set)
	// No validation needed - empty URL means use in-memory

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, "logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[strings.ToLower(cfg.Logging.Format)] {
		errs = append(errs, "logging.format must be one of: json, text")
	}

	if cfg.RunLog.MaxEventsPerThread <= 0 {
		errs = append(errs, "runlog.maxEventsPerThread must be positive")
	}

	if cfg.Pipeline.Driver == "" {
		errs = append(errs, "pipeline.driver must be set")
	}

	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}

	return nil
}
