// ABOUTME: Configuration loading and parsing for ads-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete ads-gateway configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Credentials CredentialsConfig `yaml:"credentials"`
	Ads         AdsConfig         `yaml:"ads"`
	Sessions    SessionsConfig    `yaml:"sessions"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// CredentialsConfig holds credential resolution configuration
type CredentialsConfig struct {
	// ServiceURL is the base URL of the external credential service
	ServiceURL string `yaml:"service_url"`

	// StaticToken pins one upstream credential for the whole process.
	// When set it wins over every other resolution tier.
	StaticToken string `yaml:"static_token"`

	PromptTimeout time.Duration `yaml:"-"`
	CacheTTL      time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	PromptTimeoutRaw string `yaml:"prompt_timeout"`
	CacheTTLRaw      string `yaml:"cache_ttl"`
}

// AdsConfig holds advertising API configuration
type AdsConfig struct {
	BaseURL    string `yaml:"base_url"`
	APIVersion string `yaml:"api_version"`
}

// SessionsConfig holds session registry configuration
type SessionsConfig struct {
	// Store selects the backing store: "memory" (default) or "sqlite"
	Store string `yaml:"store"`

	// Path is the SQLite database path when store is "sqlite"
	Path string `yaml:"path"`

	TTL time.Duration `yaml:"-"`

	// TTLRaw is the session eviction TTL; empty or "0" retains entries
	// for the process lifetime
	TTLRaw string `yaml:"ttl"`
}

// AuthConfig holds authentication configuration for the registration and
// diagnostics surface
type AuthConfig struct {
	JWTSecret   string `yaml:"jwt_secret"`
	RequireAuth bool   `yaml:"require_auth"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	// A static token makes the credential service optional; otherwise
	// resolution tiers 4-5 have nowhere to go.
	if c.Credentials.StaticToken == "" && c.Credentials.ServiceURL == "" {
		return fmt.Errorf("credentials.service_url is required unless a static_token is configured")
	}

	if c.Ads.BaseURL == "" {
		return fmt.Errorf("ads.base_url is required")
	}

	switch c.Sessions.Store {
	case "", "memory":
	case "sqlite":
		if c.Sessions.Path == "" {
			return fmt.Errorf("sessions.path is required when sessions.store is sqlite")
		}
	default:
		return fmt.Errorf("sessions.store must be memory or sqlite, got %q", c.Sessions.Store)
	}

	if c.Auth.RequireAuth && c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwt_secret is required when auth.require_auth is set")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Credentials.PromptTimeoutRaw != "" {
		cfg.Credentials.PromptTimeout, err = time.ParseDuration(cfg.Credentials.PromptTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing prompt_timeout %q: %w", cfg.Credentials.PromptTimeoutRaw, err)
		}
	}

	if cfg.Credentials.CacheTTLRaw != "" {
		cfg.Credentials.CacheTTL, err = time.ParseDuration(cfg.Credentials.CacheTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing cache_ttl %q: %w", cfg.Credentials.CacheTTLRaw, err)
		}
	}

	if cfg.Sessions.TTLRaw != "" && cfg.Sessions.TTLRaw != "0" {
		cfg.Sessions.TTL, err = time.ParseDuration(cfg.Sessions.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing sessions ttl %q: %w", cfg.Sessions.TTLRaw, err)
		}
	}

	return nil
}
