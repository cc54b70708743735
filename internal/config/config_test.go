// Package config_test tests the configuration loading for the orpheus-service.
package config_test

import (
	"testing"

	"github.com/book-expert/orpheus-service/internal/config"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	tomlData := `
[nats]
url = "nats://127.0.0.1:4222"
stream_name = "ORPHEUS_JOBS"
consumer_name = "orpheus-workers"
text_processed_subject = "text.processed"
audio_chunk_created_subject = "audio.chunk.created"
text_object_store_bucket = "TEXT_FILES"
audio_object_store_bucket = "AUDIO_FILES"

[engine]
api_url = "http://127.0.0.1:5005/v1/completions"
api_key = "dummy"
default_voice = "tara"
temperature = 0.6
top_p = 0.9
max_tokens = 8192
repetition_penalty = 1.1
timeout_seconds = 120

[codec]
base_url = "http://127.0.0.1:5006"
sample_rate = 24000
timeout_seconds = 30

[pipeline]
high_capacity = true
disable_batching = false
max_batch_chars = 2500
crossfade_ms = 100

[paths]
base_logs_dir = "/var/log/orpheus-service"
work_dir = "/tmp/orpheus-service"
`

	var cfg config.Config

	err := toml.Unmarshal([]byte(tomlData), &cfg)
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", cfg.NATS.URL)
	assert.Equal(t, "ORPHEUS_JOBS", cfg.NATS.StreamName)
	assert.Equal(t, "orpheus-workers", cfg.NATS.ConsumerName)
	assert.Equal(t, "text.processed", cfg.NATS.TextProcessedSubject)
	assert.Equal(t, "audio.chunk.created", cfg.NATS.AudioChunkCreatedSubject)
	assert.Equal(t, "TEXT_FILES", cfg.NATS.TextObjectStoreBucket)
	assert.Equal(t, "AUDIO_FILES", cfg.NATS.AudioObjectStoreBucket)

	assert.Equal(t, "http://127.0.0.1:5005/v1/completions", cfg.Engine.APIURL)
	assert.Equal(t, "tara", cfg.Engine.DefaultVoice)
	assert.InEpsilon(t, 0.6, cfg.Engine.Temperature, 0.001)
	assert.InEpsilon(t, 0.9, cfg.Engine.TopP, 0.001)
	assert.Equal(t, 8192, cfg.Engine.MaxTokens)
	assert.InEpsilon(t, 1.1, cfg.Engine.RepetitionPenalty, 0.001)
	assert.Equal(t, 120, cfg.Engine.TimeoutSeconds)

	assert.Equal(t, "http://127.0.0.1:5006", cfg.Codec.BaseURL)
	assert.Equal(t, 24000, cfg.Codec.SampleRate)

	assert.True(t, cfg.Pipeline.HighCapacity)
	assert.False(t, cfg.Pipeline.DisableBatching)
	assert.Equal(t, 2500, cfg.Pipeline.MaxBatchChars)
	assert.Equal(t, 100, cfg.Pipeline.CrossfadeMs)

	assert.Equal(t, "/var/log/orpheus-service", cfg.Paths.BaseLogsDir)
	assert.Equal(t, "/tmp/orpheus-service", cfg.Paths.WorkDir)
}
