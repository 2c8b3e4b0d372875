// Package config provides the configuration structure for the
// narration-service.
package config

import (
	"fmt"
	"os"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
	"github.com/pelletier/go-toml/v2"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                    string `toml:"url"`
	NarrationSubject       string `toml:"narration_subject"`
	AudioObjectStoreBucket string `toml:"audio_object_store_bucket"`
	DocumentKVBucket       string `toml:"document_kv_bucket"`
}

// HTTPConfig holds the configuration for the HTTP API.
type HTTPConfig struct {
	ListenAddress string `toml:"listen_address"`
}

// ServiceClientConfig holds the configuration for one upstream HTTP service.
type ServiceClientConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MusicConfig holds the configuration for the background music catalog.
type MusicConfig struct {
	BaseURL        string `toml:"base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	Randomized     bool   `toml:"randomized"`
}

// AudioConfig holds the mixing and concatenation defaults.
type AudioConfig struct {
	BackgroundVolume float64 `toml:"background_volume"`
	CrossfadeSeconds float64 `toml:"crossfade_seconds"`
	FadeInSeconds    float64 `toml:"fade_in_seconds"`
	FadeOutSeconds   float64 `toml:"fade_out_seconds"`
	Workers          int     `toml:"workers"`
}

// StorageConfig holds the public download gateway settings.
type StorageConfig struct {
	PublicBaseURL string `toml:"public_base_url"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS     NATSConfig          `toml:"nats"`
	HTTP     HTTPConfig          `toml:"http"`
	TTS      ServiceClientConfig `toml:"tts"`
	Metadata ServiceClientConfig `toml:"metadata"`
	Music    MusicConfig         `toml:"music"`
	Audio    AudioConfig         `toml:"audio"`
	Storage  StorageConfig       `toml:"storage"`
	Paths    PathsConfig         `toml:"paths"`
}

// Load loads the configuration for the narration-service from the central
// configurator.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}

// LoadFile loads the configuration from a local TOML file. Used for
// development runs via NARRATION_SERVICE_CONFIG.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file '%s': %w", path, err)
	}

	var cfg Config

	err = toml.Unmarshal(data, &cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file '%s': %w", path, err)
	}

	return &cfg, nil
}
