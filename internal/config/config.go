package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Database    DatabaseConfig    `yaml:"database"`
	Spotify     SpotifyConfig     `yaml:"spotify"`
	MusicBrainz MusicBrainzConfig `yaml:"musicbrainz"`
	Cache       CacheConfig       `yaml:"cache"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port     int    `yaml:"port"`
	BasePath string `yaml:"base_path"`
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// SpotifyConfig holds Spotify OAuth application credentials.
type SpotifyConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// MusicBrainzConfig holds MusicBrainz API settings. Contact is embedded in
// the User-Agent header, which MusicBrainz asks clients to provide.
type MusicBrainzConfig struct {
	BaseURL string `yaml:"base_url"`
	Contact string `yaml:"contact"`
}

// CacheConfig holds artist-origin cache settings.
type CacheConfig struct {
	ValidityDays int `yaml:"validity_days"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	FilePath string `yaml:"file_path"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			BasePath: "",
		},
		Database: DatabaseConfig{
			Path: "/data/soundatlas.db",
		},
		MusicBrainz: MusicBrainzConfig{
			BaseURL: "https://musicbrainz.org/ws/2",
		},
		Cache: CacheConfig{
			ValidityDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads config from a YAML file (if it exists) and overrides with
// environment variables. Environment variables take precedence.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	cfg.loadFromEnv()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from trusted config/env
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if v := os.Getenv("SA_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("SA_BASE_PATH"); v != "" {
		c.Server.BasePath = v
	}
	if v := os.Getenv("SA_DB_PATH"); v != "" {
		c.Database.Path = v
	}
	if v := os.Getenv("SA_SPOTIFY_CLIENT_ID"); v != "" {
		c.Spotify.ClientID = v
	}
	if v := os.Getenv("SA_SPOTIFY_CLIENT_SECRET"); v != "" {
		c.Spotify.ClientSecret = v
	}
	if v := os.Getenv("SA_SPOTIFY_REDIRECT_URL"); v != "" {
		c.Spotify.RedirectURL = v
	}
	if v := os.Getenv("SA_MUSICBRAINZ_URL"); v != "" {
		c.MusicBrainz.BaseURL = v
	}
	if v := os.Getenv("SA_MUSICBRAINZ_CONTACT"); v != "" {
		c.MusicBrainz.Contact = v
	}
	if v := os.Getenv("SA_CACHE_VALIDITY_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil {
			c.Cache.ValidityDays = days
		}
	}
	if v := os.Getenv("SA_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SA_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("SA_LOG_FILE"); v != "" {
		c.Logging.FilePath = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Cache.ValidityDays < 1 {
		return fmt.Errorf("cache validity must be at least one day, got %d", c.Cache.ValidityDays)
	}
	c.Server.BasePath = strings.TrimRight(c.Server.BasePath, "/")
	return nil
}
