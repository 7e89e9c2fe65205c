// Package config loads the gateway daemon configuration from YAML.
// A missing file yields defaults; invalid YAML is an error.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ppiankov/admingate/internal/alert"
)

// RateClass is the YAML shape of one rate-limit class.
type RateClass struct {
	Limit  int           `yaml:"limit"`
	Window time.Duration `yaml:"window"`
}

// Config holds all daemon parameters.
type Config struct {
	ListenAddr   string         `yaml:"listen_addr"`
	AuditLogPath string         `yaml:"audit_log"`
	StorePath    string         `yaml:"store_path"`
	IdentityURL  string         `yaml:"identity_url"`
	RedisAddr    string         `yaml:"redis_addr"` // non-empty selects the Redis limiter backend
	RateLimits   RateLimits     `yaml:"rate_limits"`
	Alerts       []alert.Config `yaml:"alerts"`
}

// RateLimits holds the two admission classes. The general class covers
// read traffic; the admin class covers privileged mutations.
type RateLimits struct {
	General RateClass `yaml:"general"`
	Admin   RateClass `yaml:"admin"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		ListenAddr:   ":8440",
		AuditLogPath: defaultPath("audit.jsonl"),
		StorePath:    defaultPath("gateway.db"),
		RateLimits: RateLimits{
			General: RateClass{Limit: 100, Window: time.Minute},
			Admin:   RateClass{Limit: 10, Window: time.Minute},
		},
	}
}

func defaultPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return name
	}
	return filepath.Join(home, ".admingate", name)
}

// Load reads configuration from a YAML file. Empty path falls back to
// ~/.admingate/config.yaml. Missing file returns defaults. Invalid YAML
// returns an error.
func Load(path string) (*Config, error) {
	if path == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return DefaultConfig(), nil
		}
		path = filepath.Join(home, ".admingate", "config.yaml")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.RateLimits.General.Limit < 0 || c.RateLimits.Admin.Limit < 0 {
		return fmt.Errorf("config: rate limits must be non-negative")
	}
	if c.RateLimits.General.Window < 0 || c.RateLimits.Admin.Window < 0 {
		return fmt.Errorf("config: rate windows must be non-negative")
	}
	if c.ListenAddr == "" {
		return fmt.Errorf("config: listen_addr must not be empty")
	}
	return nil
}
