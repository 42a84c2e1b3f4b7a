// ABOUTME: Configuration loading and parsing for mirrorsync
// ABOUTME: Supports YAML files with environment variable expansion, defaults and env overrides
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"
)

// Config represents the complete mirrorsync configuration
type Config struct {
	Google   GoogleConfig   `yaml:"google"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Sync     SyncConfig     `yaml:"sync"`
}

// GoogleConfig holds the OAuth application registration
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	// BaseURL is the external URL used to build OAuth redirect URIs
	BaseURL  string `yaml:"base_url"`
	TokenURL string `yaml:"token_url"`

	// APIBaseURL points the Calendar, People and userinfo clients at another host
	APIBaseURL string `yaml:"api_base_url"`
}

// ServerConfig holds HTTP front configuration
type ServerConfig struct {
	HTTPAddr      string `yaml:"http_addr"`
	SecureCookies bool   `yaml:"secure_cookies"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SyncConfig bounds the work a run does against remote APIs
type SyncConfig struct {
	WindowDays        int           `yaml:"window_days"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	RequestTimeout    time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RequestTimeoutRaw string `yaml:"request_timeout"`
}

// DefaultPath is where Load looks when no path is given.
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, "mirrorsync", "config.yaml")
}

// Default returns a configuration that works without a file.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "localhost:8787",
		},
		Database: DatabaseConfig{
			Path: filepath.Join(xdg.DataHome, "mirrorsync", "mirrorsync.db"),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Sync: SyncConfig{
			WindowDays:        365,
			RequestsPerSecond: 10,
			RequestTimeout:    30 * time.Second,
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded. A missing file
// at the default path yields the defaults; a missing explicit path is an error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}

	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		// Expand environment variables in the raw YAML content
		expandedData := expandEnvVars(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyEnv lets well-known environment variables override the file.
func applyEnv(cfg *Config) {
	overrides := []struct {
		name   string
		target *string
	}{
		{"GOOGLE_CLIENT_ID", &cfg.Google.ClientID},
		{"GOOGLE_CLIENT_SECRET", &cfg.Google.ClientSecret},
		{"MIRRORSYNC_BASE_URL", &cfg.Google.BaseURL},
		{"MIRRORSYNC_DB_PATH", &cfg.Database.Path},
		{"MIRRORSYNC_LOG_LEVEL", &cfg.Logging.Level},
	}
	for _, o := range overrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.target = v
		}
	}
}

// Validate checks that all configuration fields are present and valid.
// Google client credentials are checked where they are used, so commands
// that never talk to Google work without them.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}

	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not text or json", c.Logging.Format)
	}

	if c.Sync.WindowDays <= 0 {
		return fmt.Errorf("sync.window_days must be positive")
	}
	if c.Sync.RequestsPerSecond < 0 {
		return fmt.Errorf("sync.requests_per_second cannot be negative")
	}
	if c.Sync.RequestTimeout <= 0 {
		return fmt.Errorf("sync.request_timeout must be positive")
	}

	if c.Google.BaseURL != "" && !strings.HasPrefix(c.Google.BaseURL, "http://") && !strings.HasPrefix(c.Google.BaseURL, "https://") {
		return fmt.Errorf("google.base_url must be an http(s) URL")
	}
	if c.Google.APIBaseURL != "" && !strings.HasPrefix(c.Google.APIBaseURL, "http://") && !strings.HasPrefix(c.Google.APIBaseURL, "https://") {
		return fmt.Errorf("google.api_base_url must be an http(s) URL")
	}

	return nil
}

// HasGoogleClient reports whether OAuth client credentials are configured.
func (c *Config) HasGoogleClient() bool {
	return c.Google.ClientID != "" && c.Google.ClientSecret != ""
}

// RedirectURL builds the OAuth callback URL for a role.
func (c *Config) RedirectURL(role string) string {
	base := strings.TrimRight(c.Google.BaseURL, "/")
	if base == "" {
		base = "http://" + c.Server.HTTPAddr
	}
	return fmt.Sprintf("%s/api/google/%s/callback", base, role)
}

// APIEndpoint returns the override for an API whose discovery root path is
// rootPath, or "" to use the production endpoint.
func (c *Config) APIEndpoint(rootPath string) string {
	if c.Google.APIBaseURL == "" {
		return ""
	}
	return strings.TrimRight(c.Google.APIBaseURL, "/") + "/" + strings.TrimLeft(rootPath, "/")
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	if cfg.Sync.RequestTimeoutRaw != "" {
		d, err := time.ParseDuration(cfg.Sync.RequestTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing request_timeout %q: %w", cfg.Sync.RequestTimeoutRaw, err)
		}
		cfg.Sync.RequestTimeout = d
	}

	return nil
}
