package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Hue             HueConfig      `yaml:"hue"`
	Spotify         SpotifyConfig  `yaml:"spotify"`
	Presets         PresetsConfig  `yaml:"presets"`
	Database        DatabaseConfig `yaml:"database"`
	Log             LogConfig      `yaml:"log"`
	Ledger          LedgerConfig   `yaml:"ledger"`
	Server          ServerConfig   `yaml:"server"`
	EventBus        EventBusConfig `yaml:"eventbus"`
	ShutdownTimeout Duration       `yaml:"shutdown_timeout"` // General shutdown timeout for graceful stops
}

// HueConfig contains Hue bridge connection and polling settings
type HueConfig struct {
	Bridge   string   `yaml:"bridge"`
	Username string   `yaml:"username"`
	Timeout  Duration `yaml:"timeout"` // HTTP timeout for bridge requests

	RefreshInterval Duration `yaml:"refresh_interval"` // Poll interval (default: 2s)
	GracePeriod     Duration `yaml:"grace_period"`     // No polling this long after a local edit (default: 10s)
	UpdateDebounce  Duration `yaml:"update_debounce"`  // Quiet period before a write (default: 500ms)
	WriteTimeout    Duration `yaml:"write_timeout"`
	RateLimitRPS    float64  `yaml:"rate_limit_rps"`  // Bridge write rate (default: 10)
	OverrideCycles  int      `yaml:"override_cycles"` // Polls an unconfirmed edit stays visible (default: 2)
	DefaultEntity   string   `yaml:"default_entity"`  // light/<id> or group/<id>; empty picks the best entity
}

// SpotifyConfig contains Spotify Web API settings
type SpotifyConfig struct {
	Enabled      bool     `yaml:"enabled"`
	ClientID     string   `yaml:"client_id"`
	ClientSecret string   `yaml:"client_secret"`
	RefreshToken string   `yaml:"refresh_token"`
	AccessToken  string   `yaml:"access_token"`
	TokenURL     string   `yaml:"token_url"`
	BaseURL      string   `yaml:"base_url"`
	Timeout      Duration `yaml:"timeout"`

	PlaybackInterval Duration `yaml:"playback_interval"` // default: 1s
	QueueInterval    Duration `yaml:"queue_interval"`    // default: 10s
	OverrideCycles   int      `yaml:"override_cycles"`
}

// PresetsConfig contains preset settings
type PresetsConfig struct {
	Script string `yaml:"script"` // Optional Lua script defining presets
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level   string `yaml:"level"`
	Colors  bool   `yaml:"colors"`
	UseJSON bool   `yaml:"json"`
}

// GetLevel returns the log level with default
func (c *LogConfig) GetLevel() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

// LedgerConfig contains command ledger settings
type LedgerConfig struct {
	CleanupInterval Duration `yaml:"cleanup_interval"`
	RetentionDays   int      `yaml:"retention_days"`
}

// Retention returns the retention period.
func (c *LedgerConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Enabled        bool     `yaml:"enabled"`
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"` // WebSocket origins; empty allows any
}

// Addr returns host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// EventBusConfig contains event bus settings
type EventBusConfig struct {
	Workers   int `yaml:"workers"`    // Number of worker goroutines (default: 4)
	QueueSize int `yaml:"queue_size"` // Event queue size (default: 100)
}

// GetWorkers returns worker count with default
func (c *EventBusConfig) GetWorkers() int {
	if c.Workers <= 0 {
		return 4
	}
	return c.Workers
}

// GetQueueSize returns queue size with default
func (c *EventBusConfig) GetQueueSize() int {
	if c.QueueSize <= 0 {
		return 100
	}
	return c.QueueSize
}

// Duration is a wrapper around time.Duration for YAML unmarshalling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse parses configuration from YAML and applies defaults
func Parse(data []byte) (*Config, error) {
	// Expand environment variables
	expanded := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "./huedash.sqlite"
	}

	// Hue defaults
	if cfg.Hue.Timeout == 0 {
		cfg.Hue.Timeout = Duration(10 * time.Second)
	}
	if cfg.Hue.RefreshInterval == 0 {
		cfg.Hue.RefreshInterval = Duration(2 * time.Second)
	}
	if cfg.Hue.GracePeriod == 0 {
		cfg.Hue.GracePeriod = Duration(10 * time.Second)
	}
	if cfg.Hue.UpdateDebounce == 0 {
		cfg.Hue.UpdateDebounce = Duration(500 * time.Millisecond)
	}
	if cfg.Hue.WriteTimeout == 0 {
		cfg.Hue.WriteTimeout = Duration(10 * time.Second)
	}
	if cfg.Hue.RateLimitRPS == 0 {
		cfg.Hue.RateLimitRPS = 10.0 // 10 requests per second
	}
	if cfg.Hue.OverrideCycles == 0 {
		cfg.Hue.OverrideCycles = 2
	}

	// Spotify defaults
	if cfg.Spotify.Timeout == 0 {
		cfg.Spotify.Timeout = Duration(10 * time.Second)
	}
	if cfg.Spotify.PlaybackInterval == 0 {
		cfg.Spotify.PlaybackInterval = Duration(time.Second)
	}
	if cfg.Spotify.QueueInterval == 0 {
		cfg.Spotify.QueueInterval = Duration(10 * time.Second)
	}
	if cfg.Spotify.OverrideCycles == 0 {
		cfg.Spotify.OverrideCycles = 2
	}

	// Ledger defaults
	if cfg.Ledger.CleanupInterval == 0 {
		cfg.Ledger.CleanupInterval = Duration(24 * time.Hour)
	}
	if cfg.Ledger.RetentionDays == 0 {
		cfg.Ledger.RetentionDays = 30
	}

	// Server defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}

	// General shutdown timeout
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = Duration(5 * time.Second)
	}
}

func (c *Config) validate() error {
	if c.Hue.Bridge == "" {
		return fmt.Errorf("hue.bridge is required")
	}
	if c.Hue.Username == "" {
		return fmt.Errorf("hue.username is required")
	}
	if c.Spotify.Enabled && c.Spotify.AccessToken == "" && c.Spotify.RefreshToken == "" {
		return fmt.Errorf("spotify.access_token or spotify.refresh_token is required when spotify is enabled")
	}
	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}
func expandEnvVars(input string) string {
	// Match ${VAR} or ${VAR:default}
	re := regexp.MustCompile(`\$\{([^}:]+)(?::([^}]*))?\}`)

	return re.ReplaceAllStringFunc(input, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultVal := ""
		if len(parts) >= 3 {
			defaultVal = parts[2]
		}

		if val := os.Getenv(varName); val != "" {
			return val
		}
		return defaultVal
	})
}
