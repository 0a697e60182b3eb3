// ABOUTME: Configuration loading and parsing for shipdesk-session
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Defaults applied by Load when a field is left empty.
const (
	DefaultIssuer         = "shipdesk"
	DefaultAudience       = "shipdesk-dashboard"
	DefaultAccountTimeout = 15 * time.Second
)

// Config represents the complete shipdesk-session configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" toml:"database"`
	Session  SessionConfig  `yaml:"session" toml:"session"`
	Account  AccountConfig  `yaml:"account" toml:"account"`
	Logging  LoggingConfig  `yaml:"logging" toml:"logging"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`
}

// SessionConfig holds token and session storage configuration
type SessionConfig struct {
	// LegacyPath is the JSON file mirroring the bare token for older readers.
	// Defaults to legacy-session.json next to the database.
	LegacyPath string `yaml:"legacy_path" toml:"legacy_path"`

	Issuer   string `yaml:"issuer" toml:"issuer"`
	Audience string `yaml:"audience" toml:"audience"`

	// TokenSigning is "placeholder" (default) or "hs256".
	TokenSigning  string `yaml:"token_signing" toml:"token_signing"`
	SigningSecret string `yaml:"signing_secret" toml:"signing_secret"`

	// DelegatedSecretPolicy is "verify" (default) or "identifier_only".
	DelegatedSecretPolicy string `yaml:"delegated_secret_policy" toml:"delegated_secret_policy"`
}

// AccountConfig holds the remote account service endpoint
type AccountConfig struct {
	BaseURL string        `yaml:"base_url" toml:"base_url"`
	Timeout time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	TimeoutRaw string `yaml:"timeout" toml:"timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// DefaultPath returns the config file location: $SHIPDESK_CONFIG if set,
// otherwise $XDG_CONFIG_HOME/shipdesk/session.yaml (or ~/.config/...).
func DefaultPath() string {
	if p := os.Getenv("SHIPDESK_CONFIG"); p != "" {
		return p
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "session.yaml"
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "shipdesk", "session.yaml")
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

func (c *Config) applyDefaults() {
	if c.Session.LegacyPath == "" && c.Database.Path != "" && c.Database.Path != ":memory:" {
		c.Session.LegacyPath = filepath.Join(filepath.Dir(c.Database.Path), "legacy-session.json")
	}
	if c.Session.Issuer == "" {
		c.Session.Issuer = DefaultIssuer
	}
	if c.Session.Audience == "" {
		c.Session.Audience = DefaultAudience
	}
	if c.Session.TokenSigning == "" {
		c.Session.TokenSigning = "placeholder"
	}
	if c.Session.DelegatedSecretPolicy == "" {
		c.Session.DelegatedSecretPolicy = "verify"
	}
	if c.Account.Timeout == 0 {
		c.Account.Timeout = DefaultAccountTimeout
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Session.LegacyPath == "" {
		return fmt.Errorf("session.legacy_path is required for in-memory databases")
	}

	switch c.Session.TokenSigning {
	case "placeholder":
	case "hs256":
		if len(c.Session.SigningSecret) < 32 {
			return fmt.Errorf("session.signing_secret must be at least 32 bytes for hs256")
		}
	default:
		return fmt.Errorf("session.token_signing must be placeholder or hs256, got %q", c.Session.TokenSigning)
	}

	switch c.Session.DelegatedSecretPolicy {
	case "verify", "identifier_only":
	default:
		return fmt.Errorf("session.delegated_secret_policy must be verify or identifier_only, got %q", c.Session.DelegatedSecretPolicy)
	}

	if c.Account.BaseURL != "" &&
		!strings.HasPrefix(c.Account.BaseURL, "http://") && !strings.HasPrefix(c.Account.BaseURL, "https://") {
		return fmt.Errorf("account.base_url must be an http(s) URL")
	}
	if c.Account.Timeout < 0 {
		return fmt.Errorf("account.timeout must not be negative")
	}

	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Account.TimeoutRaw != "" {
		cfg.Account.Timeout, err = time.ParseDuration(cfg.Account.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing account timeout %q: %w", cfg.Account.TimeoutRaw, err)
		}
	}

	return nil
}
