// Package config provides the configuration structure for the orpheus-service.
package config

import (
	"fmt"

	"github.com/book-expert/configurator"
	"github.com/book-expert/logger"
)

// NATSConfig holds the configuration for NATS.
type NATSConfig struct {
	URL                      string `toml:"url"`
	StreamName               string `toml:"stream_name"`
	ConsumerName             string `toml:"consumer_name"`
	TextProcessedSubject     string `toml:"text_processed_subject"`
	AudioChunkCreatedSubject string `toml:"audio_chunk_created_subject"`
	TextObjectStoreBucket    string `toml:"text_object_store_bucket"`
	AudioObjectStoreBucket   string `toml:"audio_object_store_bucket"`
}

// EngineConfig holds the settings for the token generation API.
type EngineConfig struct {
	APIURL            string  `toml:"api_url"`
	APIKey            string  `toml:"api_key"`
	DefaultVoice      string  `toml:"default_voice"`
	Temperature       float64 `toml:"temperature"`
	TopP              float64 `toml:"top_p"`
	MaxTokens         int     `toml:"max_tokens"`
	RepetitionPenalty float64 `toml:"repetition_penalty"`
	TimeoutSeconds    int     `toml:"timeout_seconds"`
}

// CodecConfig holds the settings for the frame decoder service.
type CodecConfig struct {
	BaseURL        string `toml:"base_url"`
	SampleRate     int    `toml:"sample_rate"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// PipelineConfig holds the assembly pipeline settings.
type PipelineConfig struct {
	HighCapacity    bool `toml:"high_capacity"`
	DisableBatching bool `toml:"disable_batching"`
	MaxBatchChars   int  `toml:"max_batch_chars"`
	CrossfadeMs     int  `toml:"crossfade_ms"`
}

// PathsConfig holds the configuration for file paths.
type PathsConfig struct {
	BaseLogsDir string `toml:"base_logs_dir"`
	WorkDir     string `toml:"work_dir"`
}

// Config is the root configuration structure.
type Config struct {
	NATS     NATSConfig     `toml:"nats"`
	Engine   EngineConfig   `toml:"engine"`
	Codec    CodecConfig    `toml:"codec"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Paths    PathsConfig    `toml:"paths"`
}

// Load loads the configuration for the orpheus-service.
func Load(log *logger.Logger) (*Config, error) {
	var cfg Config

	err := configurator.Load(&cfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration from configurator: %w", err)
	}

	return &cfg, nil
}
