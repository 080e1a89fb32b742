// Package config loads the engine's environment-driven configuration.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config is the fully-resolved set of settings the engine runs with.
type Config struct {
	DatabaseURL      string
	UpstreamBaseURL  string
	UpstreamAPIKey   string
	IngestInterval   time.Duration
	MaxPages         int
	AliveWindow      time.Duration // ALIVE_WINDOW_MS; loaded but not read: internal/recommend uses a fixed 8-minute live-BIN window
	UnseenGrace      time.Duration // ingest unseen-mark grace interval
	HTTPPort         string
	AllowedOrigins   string
}

// Load reads configuration from the environment (with documented defaults)
// and fails fast if a required secret is missing.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()

	v.SetDefault("UPSTREAM_BASE_URL", "https://api.hypixel.net/skyblock")
	v.SetDefault("INGEST_INTERVAL_MS", 120_000)
	v.SetDefault("MAX_PAGES", 200)
	v.SetDefault("ALIVE_WINDOW_MS", 480_000)
	v.SetDefault("UNSEEN_GRACE_MS", 60_000)
	v.SetDefault("PORT", "8080")
	v.SetDefault("ALLOWED_ORIGINS", "*")

	dbURL := v.GetString("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("config: DATABASE_URL is required")
	}
	apiKey := v.GetString("UPSTREAM_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("config: UPSTREAM_API_KEY is required")
	}

	cfg := &Config{
		DatabaseURL:     dbURL,
		UpstreamBaseURL: v.GetString("UPSTREAM_BASE_URL"),
		UpstreamAPIKey:  apiKey,
		IngestInterval:  time.Duration(v.GetInt64("INGEST_INTERVAL_MS")) * time.Millisecond,
		MaxPages:        v.GetInt("MAX_PAGES"),
		AliveWindow:     time.Duration(v.GetInt64("ALIVE_WINDOW_MS")) * time.Millisecond,
		UnseenGrace:     time.Duration(v.GetInt64("UNSEEN_GRACE_MS")) * time.Millisecond,
		HTTPPort:        v.GetString("PORT"),
		AllowedOrigins:  v.GetString("ALLOWED_ORIGINS"),
	}
	return cfg, nil
}
