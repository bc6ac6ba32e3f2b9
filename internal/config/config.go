// Package config loads application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
)

// Defaults for optional settings.
const (
	DefaultAddr    = "127.0.0.1:8080"
	DefaultBaseURL = "http://127.0.0.1:8080"
)

// ErrMissingCredentials is returned when SPOTIFY_ID or SPOTIFY_SECRET is not set.
var ErrMissingCredentials = errors.New("missing SPOTIFY_ID or SPOTIFY_SECRET environment variable")

// Config holds all runtime configuration for the application.
type Config struct {
	// Addr is the listen address for the HTTP server.
	Addr string

	// BaseURL is the externally visible URL used to build the OAuth redirect URI.
	BaseURL string

	// ClientID and ClientSecret are the Spotify application credentials.
	ClientID     string
	ClientSecret string

	// DatabaseURL is the PostgreSQL connection string. Empty means the
	// server runs with in-memory sessions and no history persistence is
	// possible, so it is required in practice.
	DatabaseURL string

	// LogLevel is the zerolog level name (debug, info, warn, error).
	LogLevel string
}

// Load reads configuration from the environment.
// Returns ErrMissingCredentials if the Spotify credentials are not set.
func Load() (*Config, error) {
	cfg := &Config{
		Addr:         envOr("ADDR", DefaultAddr),
		BaseURL:      envOr("BASE_URL", DefaultBaseURL),
		ClientID:     os.Getenv("SPOTIFY_ID"),
		ClientSecret: os.Getenv("SPOTIFY_SECRET"),
		DatabaseURL:  os.Getenv("DATABASE_URL"),
		LogLevel:     envOr("LOG_LEVEL", "info"),
	}

	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrMissingCredentials
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("missing DATABASE_URL environment variable")
	}

	return cfg, nil
}

// RedirectURI returns the OAuth callback URI registered with Spotify.
func (c *Config) RedirectURI() string {
	return c.BaseURL + "/callback"
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
