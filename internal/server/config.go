// Package server serves static files over TCP, handing each accepted
// connection to a worker pool as one job.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment variable read by ApplyEnv
const EnvPrefix = "RUSTIC_"

// Config holds runtime configuration for the server and its pool
type Config struct {
	Address          string        `yaml:"address"`
	Port             string        `yaml:"port"`
	StaticDir        string        `yaml:"static_dir"`
	Workers          int           `yaml:"workers"`
	ReadTimeout      time.Duration `yaml:"read_timeout"`
	JoinWarnInterval time.Duration `yaml:"join_warn_interval"`
	LogLevel         string        `yaml:"log_level"`
	LogFormat        string        `yaml:"log_format"`
	MetricsAddr      string        `yaml:"metrics_addr"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Address:          "127.0.0.1",
		Port:             "7878",
		StaticDir:        "./static",
		Workers:          5,
		ReadTimeout:      5 * time.Second,
		JoinWarnInterval: 10 * time.Second,
		LogLevel:         "info",
		LogFormat:        "text",
	}
}

// LoadFile reads a YAML config file over the defaults
func LoadFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	return cfg, nil
}

// ApplyEnv overrides fields from RUSTIC_* environment variables
func ApplyEnv(cfg *Config) error {
	cfg.Address = getEnv("ADDRESS", cfg.Address)
	cfg.Port = getEnv("PORT", cfg.Port)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsAddr = getEnv("METRICS_ADDR", cfg.MetricsAddr)

	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS %q: %w", EnvPrefix, v, err)
		}
		cfg.Workers = n
	}

	for name, target := range map[string]*time.Duration{
		"READ_TIMEOUT":       &cfg.ReadTimeout,
		"JOIN_WARN_INTERVAL": &cfg.JoinWarnInterval,
	} {
		if v := os.Getenv(EnvPrefix + name); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s %q: %w", EnvPrefix, name, v, err)
			}
			*target = d
		}
	}

	return nil
}

// Validate checks the configuration
func (c *Config) Validate() error {
	var errs []error

	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if port, err := strconv.Atoi(c.Port); err != nil || port < 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %q", c.Port))
	}
	if c.StaticDir == "" {
		errs = append(errs, errors.New("static_dir is required"))
	}
	if c.ReadTimeout < 0 {
		errs = append(errs, fmt.Errorf("read_timeout must not be negative, got %s", c.ReadTimeout))
	}
	switch c.LogFormat {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log_format must be text or json, got %q", c.LogFormat))
	}

	return errors.Join(errs...)
}

// ListenAddr returns the host:port the server binds
func (c *Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, c.Port)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(EnvPrefix + key); v != "" {
		return v
	}
	return fallback
}
