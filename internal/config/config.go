// Package config handles configuration loading for the ag3dash server.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the server configuration.
type Config struct {
	Server ServerConfig `yaml:"server"`
	Data   DataConfig   `yaml:"data"`
	Cache  CacheConfig  `yaml:"cache"`
	Render RenderConfig `yaml:"render"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port              int      `yaml:"port"`
	Title             string   `yaml:"title"`
	CORSOrigins       []string `yaml:"cors_origins"`
	SessionSecret     string   `yaml:"session_secret"`
	SessionTTLMinutes int      `yaml:"session_ttl_minutes"`
}

// DataConfig describes where the release is read from.
type DataConfig struct {
	// Source is one of "file", "http" or "s3".
	Source           string   `yaml:"source"`
	Release          string   `yaml:"release"`
	BasePath         string   `yaml:"base_path"`
	BaseURL          string   `yaml:"base_url"`
	S3               S3Config `yaml:"s3"`
	SnapshotPath     string   `yaml:"snapshot_path"`
	FetchConcurrency int      `yaml:"fetch_concurrency"`
	HTTPTimeoutSecs  int      `yaml:"http_timeout_seconds"`
}

// S3Config contains settings for S3-compatible release mirrors.
type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	Endpoint  string `yaml:"endpoint"`
	Prefix    string `yaml:"prefix"`
	PathStyle bool   `yaml:"path_style"`
}

// CacheConfig contains caching settings.
type CacheConfig struct {
	MapSizeMB      int `yaml:"map_size_mb"`
	MapTTLMinutes  int `yaml:"map_ttl_minutes"`
	QueryCacheSize int `yaml:"query_cache_size"`
}

// RenderConfig contains map rendering settings.
type RenderConfig struct {
	MapWidth    int     `yaml:"map_width"`
	MapHeight   int     `yaml:"map_height"`
	PointRadius float64 `yaml:"point_radius"`
	Ramp        string  `yaml:"ramp"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		// Return default config if file doesn't exist
		cfg := DefaultConfig()
		applyEnv(cfg)
		return cfg, nil
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	applyDefaults(&cfg)
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:              8501,
			Title:             "Ag3",
			CORSOrigins:       []string{"http://localhost:3000", "http://localhost:5173"},
			SessionSecret:     "change-me-ag3dash-session-secret",
			SessionTTLMinutes: 120,
		},
		Data: DataConfig{
			Source:           "file",
			Release:          "v3",
			BasePath:         "./data/vo_agam_release",
			SnapshotPath:     "./data/ag3_snapshot.sqlite",
			FetchConcurrency: 8,
			HTTPTimeoutSecs:  60,
		},
		Cache: CacheConfig{
			MapSizeMB:      64,
			MapTTLMinutes:  30,
			QueryCacheSize: 1000,
		},
		Render: RenderConfig{
			MapWidth:    1024,
			MapHeight:   512,
			PointRadius: 3,
			Ramp:        "reds",
		},
	}
}

func applyDefaults(cfg *Config) {
	defaults := DefaultConfig()

	if cfg.Server.Port == 0 {
		cfg.Server.Port = defaults.Server.Port
	}
	if cfg.Server.Title == "" {
		cfg.Server.Title = defaults.Server.Title
	}
	if len(cfg.Server.CORSOrigins) == 0 {
		cfg.Server.CORSOrigins = defaults.Server.CORSOrigins
	}
	if cfg.Server.SessionSecret == "" {
		cfg.Server.SessionSecret = defaults.Server.SessionSecret
	}
	if cfg.Server.SessionTTLMinutes == 0 {
		cfg.Server.SessionTTLMinutes = defaults.Server.SessionTTLMinutes
	}
	if cfg.Data.Source == "" {
		cfg.Data.Source = defaults.Data.Source
	}
	if cfg.Data.Release == "" {
		cfg.Data.Release = defaults.Data.Release
	}
	if cfg.Data.Source == "file" && cfg.Data.BasePath == "" {
		cfg.Data.BasePath = defaults.Data.BasePath
	}
	if cfg.Data.FetchConcurrency <= 0 {
		cfg.Data.FetchConcurrency = defaults.Data.FetchConcurrency
	}
	if cfg.Data.HTTPTimeoutSecs <= 0 {
		cfg.Data.HTTPTimeoutSecs = defaults.Data.HTTPTimeoutSecs
	}
	if cfg.Cache.MapSizeMB == 0 {
		cfg.Cache.MapSizeMB = defaults.Cache.MapSizeMB
	}
	if cfg.Cache.MapTTLMinutes == 0 {
		cfg.Cache.MapTTLMinutes = defaults.Cache.MapTTLMinutes
	}
	if cfg.Cache.QueryCacheSize == 0 {
		cfg.Cache.QueryCacheSize = defaults.Cache.QueryCacheSize
	}
	if cfg.Render.MapWidth == 0 {
		cfg.Render.MapWidth = defaults.Render.MapWidth
	}
	if cfg.Render.MapHeight == 0 {
		cfg.Render.MapHeight = defaults.Render.MapHeight
	}
	if cfg.Render.PointRadius == 0 {
		cfg.Render.PointRadius = defaults.Render.PointRadius
	}
	if cfg.Render.Ramp == "" {
		cfg.Render.Ramp = defaults.Render.Ramp
	}
}

// applyEnv lets secrets live outside the YAML file.
func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("AG3DASH_SESSION_SECRET")); v != "" {
		cfg.Server.SessionSecret = v
	}
	if v := strings.TrimSpace(os.Getenv("AG3DASH_DATA_BASE_URL")); v != "" {
		cfg.Data.BaseURL = v
	}
}

// Validate checks that the data source is fully described.
func (c *Config) Validate() error {
	switch c.Data.Source {
	case "file":
		if c.Data.BasePath == "" {
			return fmt.Errorf("data.base_path is required for the file source")
		}
	case "http":
		if c.Data.BaseURL == "" {
			return fmt.Errorf("data.base_url is required for the http source")
		}
	case "s3":
		if c.Data.S3.Bucket == "" {
			return fmt.Errorf("data.s3.bucket is required for the s3 source")
		}
	default:
		return fmt.Errorf("unknown data.source %q (expected file, http or s3)", c.Data.Source)
	}
	return nil
}
