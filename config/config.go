package config

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/m4xw311/telegram-mcp/errors"
)

// Transport names accepted by the server.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Telegram holds the credentials and session-file settings for the
// platform client.
type Telegram struct {
	APIID       int    `yaml:"api_id"`
	APIHash     string `yaml:"api_hash"`
	PhoneNumber string `yaml:"phone_number"`
	SessionName string `yaml:"session_name"`
	SessionDir  string `yaml:"session_dir"`
}

// Sessions configures the session manager.
type Sessions struct {
	IdleTTL         string `yaml:"idle_ttl"`
	CleanupInterval string `yaml:"cleanup_interval"`
	MaxSessions     int    `yaml:"max_sessions"`
	ConnectTimeout  string `yaml:"connect_timeout"`
}

// Config is the full server configuration, merged from YAML files and
// environment variables.
type Config struct {
	Transport      string   `yaml:"transport"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AuthRequired   bool     `yaml:"auth_required"`
	Debug          bool     `yaml:"debug"`
	Telegram       Telegram `yaml:"telegram"`
	Sessions       Sessions `yaml:"sessions"`
	AllowedMethods []string `yaml:"allowed_methods"`

	// TestMode forces the HTTP transport onto localhost with auth disabled
	// and an in-memory platform client. Set by flag only, never by file.
	TestMode bool `yaml:"-"`
}

// LoadConfig loads configuration from the user's home directory and the
// current working directory, with the latter taking precedence, then applies
// environment variable overrides.
func LoadConfig() (*Config, error) {
	cfg := defaults()

	home, err := os.UserHomeDir()
	if err == nil {
		userConfigPath := filepath.Join(home, ".telegram-mcp", "config.yaml")
		if _, err := os.Stat(userConfigPath); err == nil {
			if err := loadFromFile(userConfigPath, cfg); err != nil {
				return nil, errors.Wrapf(err, "error loading user config")
			}
		}
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, errors.Wrapf(err, "could not get working directory")
	}
	projectConfigPath := filepath.Join(wd, ".telegram-mcp", "config.yaml")
	if _, err := os.Stat(projectConfigPath); err == nil {
		if err := loadFromFile(projectConfigPath, cfg); err != nil {
			return nil, errors.Wrapf(err, "error loading project config")
		}
	}

	applyEnv(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Transport: TransportStdio,
		Host:      "127.0.0.1",
		Port:      8765,
		Telegram: Telegram{
			SessionName: "mcp_telegram",
		},
		Sessions: Sessions{
			IdleTTL:         "30m",
			CleanupInterval: "60s",
			MaxSessions:     32,
			ConnectTimeout:  "30s",
		},
	}
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	// Unmarshal overwrites fields present in the YAML, so project-level
	// config replaces user-level values field by field.
	return yaml.Unmarshal(data, cfg)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("MCP_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("MCP_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("MCP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Port = p
		}
	}
	if v := os.Getenv("MCP_AUTH_REQUIRED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.AuthRequired = b
		}
	}
	if v := os.Getenv("API_ID"); v != "" {
		if id, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.APIID = id
		}
	}
	if v := os.Getenv("API_HASH"); v != "" {
		cfg.Telegram.APIHash = v
	}
	if v := os.Getenv("PHONE_NUMBER"); v != "" {
		cfg.Telegram.PhoneNumber = v
	}
	if v := os.Getenv("SESSION_NAME"); v != "" {
		cfg.Telegram.SessionName = v
	}
}

func (c *Config) validate() error {
	if c.Transport != TransportStdio && c.Transport != TransportHTTP {
		return errors.New("invalid transport %q: must be %q or %q", c.Transport, TransportStdio, TransportHTTP)
	}
	if _, err := c.IdleTTL(); err != nil {
		return errors.Wrapf(err, "invalid sessions.idle_ttl")
	}
	if _, err := c.CleanupInterval(); err != nil {
		return errors.Wrapf(err, "invalid sessions.cleanup_interval")
	}
	if _, err := c.ConnectTimeout(); err != nil {
		return errors.Wrapf(err, "invalid sessions.connect_timeout")
	}
	return nil
}

// IdleTTL returns the parsed session idle TTL.
func (c *Config) IdleTTL() (time.Duration, error) {
	return time.ParseDuration(c.Sessions.IdleTTL)
}

// CleanupInterval returns the parsed cleaner sweep interval.
func (c *Config) CleanupInterval() (time.Duration, error) {
	return time.ParseDuration(c.Sessions.CleanupInterval)
}

// ConnectTimeout returns the parsed connect timeout for new sessions.
func (c *Config) ConnectTimeout() (time.Duration, error) {
	return time.ParseDuration(c.Sessions.ConnectTimeout)
}

// SessionPath returns the session-state file for a bearer token. The empty
// token maps to the process-default session named by SESSION_NAME; other
// tokens are keyed by a digest so the opaque credential never hits the
// filesystem.
func (c *Config) SessionPath(token string) (string, error) {
	dir := c.Telegram.SessionDir
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", errors.Wrapf(err, "could not resolve home directory")
		}
		dir = filepath.Join(home, ".telegram-mcp", "sessions")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", errors.Wrapf(err, "could not create session directory")
	}
	name := c.Telegram.SessionName
	if token != "" {
		sum := sha256.Sum256([]byte(token))
		name = hex.EncodeToString(sum[:8])
	}
	return filepath.Join(dir, name+".session"), nil
}
