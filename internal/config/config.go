// Package config loads the bridge configuration from the environment.
//
// Variables may also come from a .env file in the working directory;
// values already set in the environment take precedence. Configuration is
// read once at startup; changes require a restart.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// DefaultEnvFile is loaded when present.
const DefaultEnvFile = ".env"

// Config holds all application configuration.
type Config struct {
	// Origin is the public origin of the bridge (e.g.
	// "https://bridge.example"). Every actor and activity id is built
	// from it.
	Origin string `envconfig:"ORIGIN" required:"true"`

	// Port is the HTTP listen port.
	Port int `envconfig:"PORT" default:"8000"`

	// SyncTTL is the minimum time between post syncs of one user, in
	// milliseconds.
	SyncTTL int64 `envconfig:"SYNC_TTL" default:"300000"`

	// DBPath is the SQLite database file.
	DBPath string `envconfig:"DB_PATH" default:"bridge.db"`

	// PlatformAPIURL is the base URL of the source platform API.
	PlatformAPIURL string `envconfig:"PLATFORM_API_URL" required:"true"`

	// PlatformPageSize is the number of posts fetched per sync.
	PlatformPageSize int `envconfig:"PLATFORM_PAGE_SIZE" default:"20"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// DeliveryWorkers is the number of goroutines posting outbound
	// activities.
	DeliveryWorkers int `envconfig:"DELIVERY_WORKERS" default:"4"`
}

// Load reads the configuration from the environment after merging in
// envFile. An empty envFile means DefaultEnvFile, which may be absent; an
// explicitly named file must exist.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		if err := godotenv.Load(DefaultEnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", DefaultEnvFile, err)
		}
	} else if err := godotenv.Load(envFile); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", envFile, err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.Origin = strings.TrimRight(cfg.Origin, "/")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate checks values envconfig cannot.
func (c *Config) validate() error {
	switch {
	case !isAbsoluteURL(c.Origin):
		return fmt.Errorf("config: ORIGIN must be an absolute http(s) URL, got %q", c.Origin)
	case !isAbsoluteURL(c.PlatformAPIURL):
		return fmt.Errorf("config: PLATFORM_API_URL must be an absolute http(s) URL, got %q", c.PlatformAPIURL)
	case c.Port <= 0 || c.Port > 65535:
		return fmt.Errorf("config: PORT out of range: %d", c.Port)
	case c.SyncTTL < 0:
		return fmt.Errorf("config: SYNC_TTL must not be negative")
	case c.DBPath == "":
		return fmt.Errorf("config: DB_PATH is required")
	case c.DeliveryWorkers <= 0:
		return fmt.Errorf("config: DELIVERY_WORKERS must be positive")
	}
	return nil
}

// ListenAddr returns the address the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// TTL returns SyncTTL as a duration.
func (c *Config) TTL() time.Duration {
	return time.Duration(c.SyncTTL) * time.Millisecond
}

func isAbsoluteURL(s string) bool {
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
