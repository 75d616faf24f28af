// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// FileConfig represents the TOML configuration file.
//
//	[server]
//	port = 8080
//	db = "/var/lib/milestones.db"
//	cors-origins = ["http://localhost:5173"]
//
//	[engine]
//	refresh-interval = "1m"
//	cache-bucket = "1m"
type FileConfig struct {
	Server ServerConfig `toml:"server"`
	Engine EngineConfig `toml:"engine"`
}

// ServerConfig maps HTTP server settings.
type ServerConfig struct {
	Port        *int     `toml:"port"`
	DB          *string  `toml:"db"`
	CORSOrigins []string `toml:"cors-origins"`
}

// EngineConfig maps scheduler and cache settings. Durations use Go syntax.
type EngineConfig struct {
	RefreshInterval *string `toml:"refresh-interval"`
	CacheBucket     *string `toml:"cache-bucket"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if _, err := cfg.Engine.Refresh(0); err != nil {
		return FileConfig{}, err
	}
	if _, err := cfg.Engine.Bucket(0); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

// Refresh returns the configured refresh interval, or def when unset.
func (e EngineConfig) Refresh(def time.Duration) (time.Duration, error) {
	return parseDuration("engine.refresh-interval", e.RefreshInterval, def)
}

// Bucket returns the configured cache bucket, or def when unset.
func (e EngineConfig) Bucket(def time.Duration) (time.Duration, error) {
	return parseDuration("engine.cache-bucket", e.CacheBucket, def)
}

func parseDuration(key string, v *string, def time.Duration) (time.Duration, error) {
	if v == nil || *v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(*v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be positive", key)
	}
	return d, nil
}
