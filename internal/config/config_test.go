// Package config_test tests the configuration loading for the
// narration-service.
package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/book-expert/narration-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testTOML = `
[nats]
url = "nats://127.0.0.1:4222"
narration_subject = "narration.jobs"
audio_object_store_bucket = "NARRATION_AUDIO"
document_kv_bucket = "BOOK_DOCUMENTS"

[http]
listen_address = ":8085"

[tts]
base_url = "http://localhost:8000"
timeout_seconds = 300

[metadata]
base_url = "http://localhost:8010"
timeout_seconds = 30

[music]
base_url = "http://localhost:8020"
timeout_seconds = 30
randomized = true

[audio]
background_volume = 0.3
crossfade_seconds = 2.0
fade_in_seconds = 1.0
fade_out_seconds = 2.0
workers = 3

[storage]
public_base_url = "https://storage.example.com"

[paths]
base_logs_dir = "/var/log/narration-service"
`

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	var cfg config.Config

	err := toml.Unmarshal([]byte(testTOML), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "narration.jobs", cfg.NATS.NarrationSubject)
	assert.Equal(t, "NARRATION_AUDIO", cfg.NATS.AudioObjectStoreBucket)
	assert.Equal(t, "BOOK_DOCUMENTS", cfg.NATS.DocumentKVBucket)
	assert.Equal(t, ":8085", cfg.HTTP.ListenAddress)
	assert.Equal(t, "http://localhost:8000", cfg.TTS.BaseURL)
	assert.Equal(t, 300, cfg.TTS.TimeoutSeconds)
	assert.Equal(t, "http://localhost:8010", cfg.Metadata.BaseURL)
	assert.True(t, cfg.Music.Randomized)
	assert.InEpsilon(t, 0.3, cfg.Audio.BackgroundVolume, 0.001)
	assert.InEpsilon(t, 2.0, cfg.Audio.CrossfadeSeconds, 0.001)
	assert.Equal(t, 3, cfg.Audio.Workers)
	assert.Equal(t, "https://storage.example.com", cfg.Storage.PublicBaseURL)
	assert.Equal(t, "/var/log/narration-service", cfg.Paths.BaseLogsDir)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "narration.toml")
	require.NoError(t, os.WriteFile(path, []byte(testTOML), 0o600))

	cfg, err := config.LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "narration.jobs", cfg.NATS.NarrationSubject)
	assert.Equal(t, "https://storage.example.com", cfg.Storage.PublicBaseURL)
}

func TestLoadFile_Missing(t *testing.T) {
	t.Parallel()

	_, err := config.LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	require.Error(t, err)
}
