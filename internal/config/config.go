package config

import (
	"fmt"
	"runtime"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all service configuration.
type Config struct {
	Server  ServerConfig
	Sim     SimConfig
	Logging LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"ERDSIM_PORT" default:"8600"`
	Host string `envconfig:"ERDSIM_HOST" default:"0.0.0.0"`
}

// SimConfig holds simulation process configuration.
type SimConfig struct {
	// BinDir is the directory holding the mcerd executable.
	BinDir string `envconfig:"ERDSIM_BIN_DIR" default:"external/bin"`
	// PollInterval is the liveness poll period for running processes.
	PollInterval time.Duration `envconfig:"ERDSIM_POLL_INTERVAL" default:"10s"`
	// MaxConcurrent caps simultaneously running simulation processes.
	// Zero means one process per available CPU.
	MaxConcurrent int `envconfig:"ERDSIM_MAX_CONCURRENT" default:"0"`
	// EchoProgress mirrors every progress record to the service log.
	EchoProgress bool `envconfig:"ERDSIM_ECHO_PROGRESS" default:"true"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"ERDSIM_LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"ERDSIM_LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8600",
			Host: "0.0.0.0",
		},
		Sim: SimConfig{
			BinDir:        "external/bin",
			PollInterval:  10 * time.Second,
			MaxConcurrent: 0,
			EchoProgress:  true,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}

// Concurrency resolves MaxConcurrent, defaulting to the CPU count.
func (c SimConfig) Concurrency() int {
	if c.MaxConcurrent > 0 {
		return c.MaxConcurrent
	}
	return runtime.NumCPU()
}
