// Package core defines the shared interfaces and domain types for the
// orpheus-service streaming speech pipeline.
package core

import "context"

// ObjectStore defines the interface for interacting with a key-value blob store.
type ObjectStore interface {
	Download(ctx context.Context, key string) ([]byte, error)
	Upload(ctx context.Context, key string, data []byte) error
}

// TokenSource produces a lazy stream of raw token markers for a prompt.
// The returned channel is closed when generation finishes, whether it
// succeeded or not; transport retries are the source's own responsibility.
type TokenSource interface {
	Stream(ctx context.Context, text string, params GenerationParams) (<-chan string, error)
}

// FrameDecoder converts a fixed-size window of token ids into a chunk of
// 16-bit mono PCM. A (nil, nil) return means "not enough signal yet" and is
// not an error. Implementations must not retain or mutate the frame slice.
type FrameDecoder interface {
	Decode(ctx context.Context, frame []int, count int) ([]byte, error)
}

// GenerationParams holds the per-job generation knobs forwarded to the
// token source.
type GenerationParams struct {
	Voice             string
	Temperature       float64
	TopP              float64
	MaxTokens         int
	RepetitionPenalty float64
}
