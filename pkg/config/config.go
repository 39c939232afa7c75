// Package config loads server configuration from YAML with environment
// variable expansion.
package config

import (
	"os"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config represents the complete sitesmith server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Workspace WorkspaceConfig `yaml:"workspace"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Sessions  SessionsConfig  `yaml:"sessions"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds listen address configuration
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// WorkspaceConfig holds the root directory tool handlers operate in
type WorkspaceConfig struct {
	Root string `yaml:"root"`
}

// AuthConfig holds bearer-token authentication configuration.
// Auth is disabled when JWTSecret is empty.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// RateLimitConfig holds per-session request rate limiting.
// Disabled when RPS is zero.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SessionsConfig bounds the session table. Zero values leave the
// table unbounded with no idle expiry.
type SessionsConfig struct {
	Max     int           `yaml:"max"`
	IdleTTL time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	IdleTTLRaw string `yaml:"idle_ttl"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	return &Config{
		Server:    ServerConfig{Addr: ":8080"},
		Workspace: WorkspaceConfig{Root: "."},
		Logging:   LoggingConfig{Level: "info"},
	}
}

// Load reads and parses a YAML config file, expanding ${VAR}
// references from the environment before unmarshaling.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	expanded := expandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}
	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return envPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
}

func (c *Config) finalize() error {
	if c.Sessions.IdleTTLRaw != "" {
		d, err := time.ParseDuration(c.Sessions.IdleTTLRaw)
		if err != nil {
			return errors.Wrapf(err, "invalid sessions.idle_ttl %q", c.Sessions.IdleTTLRaw)
		}
		c.Sessions.IdleTTL = d
	}
	if c.RateLimit.RPS > 0 && c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 1
	}
	return nil
}
