package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultFeeds is used when the config file declares no feeds
var DefaultFeeds = map[string]string{
	"wired": "https://www.wired.com/feed/",
}

// TomlServer holds the HTTP server settings
type TomlServer struct {
	Port         int      `toml:"port"`
	APINamespace string   `toml:"api_namespace"`
	AllowOrigins []string `toml:"allow_origins,omitempty"`
}

// TomlCache selects and configures the cache store
type TomlCache struct {
	Backend     string   `toml:"backend"` // "memory", "redis" or "postgres"
	TTL         Duration `toml:"ttl"`
	Size        int      `toml:"size"`
	RedisURL    string   `toml:"redis_url,omitempty"`
	DatabaseURL string   `toml:"database_url,omitempty"`
}

// TomlFetcher configures the outbound HTTP client
type TomlFetcher struct {
	Timeout     Duration `toml:"timeout"`
	MaxBodySize string   `toml:"max_body_size"` // e.g. "10MB"
	UserAgent   string   `toml:"user_agent"`
}

// TomlConfig represents the top-level configuration
type TomlConfig struct {
	LogLevel  string            `toml:"log_level"`
	LogFormat string            `toml:"log_format"`
	Server    TomlServer        `toml:"server"`
	Cache     TomlCache         `toml:"cache"`
	Fetcher   TomlFetcher       `toml:"fetcher"`
	Feeds     map[string]string `toml:"feeds"`
}

// Duration lets TOML values like "10s" or "1h" decode into a time.Duration
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

func Default() *TomlConfig {
	feeds := make(map[string]string, len(DefaultFeeds))
	for id, url := range DefaultFeeds {
		feeds[id] = url
	}

	return &TomlConfig{
		LogLevel:  "info",
		LogFormat: "text",
		Server: TomlServer{
			Port:         3000,
			APINamespace: "af/v1",
			AllowOrigins: []string{"*"},
		},
		Cache: TomlCache{
			Backend: "memory",
			TTL:     Duration{time.Hour},
			Size:    128,
		},
		Fetcher: TomlFetcher{
			Timeout:     Duration{10 * time.Second},
			MaxBodySize: "10MB",
			UserAgent:   "feedgrid/1.0",
		},
		Feeds: feeds,
	}
}

// LoadConfig reads the TOML file at path on top of the defaults. An empty path
// returns the defaults.
func LoadConfig(path string) (*TomlConfig, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Decoding merges into the defaults, except for the feeds table which
	// replaces them entirely when present
	config.Feeds = nil
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	if len(config.Feeds) == 0 {
		config.Feeds = Default().Feeds
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks settings that would otherwise fail later at runtime
func (c *TomlConfig) Validate() error {
	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisURL == "" {
			return fmt.Errorf("cache backend redis requires redis_url")
		}
	case "postgres":
		if c.Cache.DatabaseURL == "" {
			return fmt.Errorf("cache backend postgres requires database_url")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.Cache.Backend)
	}

	if c.Cache.TTL.Duration <= 0 {
		return fmt.Errorf("cache ttl must be positive, got %s", c.Cache.TTL)
	}
	if c.Fetcher.Timeout.Duration <= 0 {
		return fmt.Errorf("fetcher timeout must be positive, got %s", c.Fetcher.Timeout)
	}

	for id, url := range c.Feeds {
		if id == "" || url == "" {
			return fmt.Errorf("feed %q has an empty identifier or url", id)
		}
	}

	return nil
}
