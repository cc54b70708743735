package speech_test

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/audio"
	"github.com/book-expert/orpheus-service/internal/core"
	"github.com/book-expert/orpheus-service/internal/speech"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()

	log, err := logger.New(t.TempDir(), "speech-test.log")
	require.NoError(t, err)

	return log
}

// fakeSource emits a fixed number of well-formed audio tokens per stream.
type fakeSource struct {
	tokensPerStream int

	mu      sync.Mutex
	streams int
	texts   []string
}

func (f *fakeSource) Stream(
	_ context.Context,
	text string,
	_ core.GenerationParams,
) (<-chan string, error) {
	f.mu.Lock()
	f.streams++
	f.texts = append(f.texts, text)
	f.mu.Unlock()

	out := make(chan string, f.tokensPerStream)
	for i := range f.tokensPerStream {
		out <- fmt.Sprintf("<custom_token_%d>", 11+(i%7)*4096)
	}

	close(out)

	return out, nil
}

// fakeDecoder returns a constant PCM block for every complete frame.
type fakeDecoder struct {
	pcm []byte
}

func (f *fakeDecoder) Decode(_ context.Context, _ []int, _ int) ([]byte, error) {
	block := make([]byte, len(f.pcm))
	copy(block, f.pcm)

	return block, nil
}

func newSynthesizer(t *testing.T, source core.TokenSource, config speech.Config) *speech.Synthesizer {
	t.Helper()

	decoder := &fakeDecoder{pcm: make([]byte, 512)}

	return speech.New(source, decoder, config, testLogger(t))
}

func TestGenerateWritesPlayableFile(t *testing.T) {
	t.Parallel()

	source := &fakeSource{tokensPerStream: 35}
	synth := newSynthesizer(t, source, speech.Config{})
	outputPath := filepath.Join(t.TempDir(), "out.wav")

	result, err := synth.Generate(context.Background(), speech.Request{
		Text:       "Hello there, this is a synthesis test.",
		OutputPath: outputPath,
	})
	require.NoError(t, err)

	// 35 tokens yields three steady-state segments after the first chunk.
	assert.Len(t, result.Segments, 3)
	assert.Equal(t, 1, result.Batches)
	assert.Positive(t, result.AudioDuration)

	samples, params, err := audio.ReadFile(outputPath)
	require.NoError(t, err)
	assert.Equal(t, audio.DefaultSampleRate, params.SampleRate)
	assert.Len(t, samples, 3*512/2)
}

func TestGenerateInMemory(t *testing.T) {
	t.Parallel()

	source := &fakeSource{tokensPerStream: 14}
	synth := newSynthesizer(t, source, speech.Config{})

	result, err := synth.Generate(context.Background(), speech.Request{
		Text: "No file sink for this one.",
	})
	require.NoError(t, err)
	assert.Len(t, result.Segments, 1)
}

func TestGenerateRejectsEmptyText(t *testing.T) {
	t.Parallel()

	synth := newSynthesizer(t, &fakeSource{}, speech.Config{})

	_, err := synth.Generate(context.Background(), speech.Request{Text: "   "})
	require.ErrorIs(t, err, speech.ErrTextEmpty)
}

func TestGenerateReportsSilentStream(t *testing.T) {
	t.Parallel()

	// Six tokens never completes a first frame, so nothing is produced.
	source := &fakeSource{tokensPerStream: 6}
	synth := newSynthesizer(t, source, speech.Config{})

	_, err := synth.Generate(context.Background(), speech.Request{
		Text: "Too short to ever emit audio.",
	})
	require.ErrorIs(t, err, speech.ErrNoAudioGenerated)
}

func TestGenerateSilentStreamWithSinkReportsEmptyOutput(t *testing.T) {
	t.Parallel()

	// Six tokens produces no segments, leaving the sink header-only.
	source := &fakeSource{tokensPerStream: 6}
	synth := newSynthesizer(t, source, speech.Config{})
	outputPath := filepath.Join(t.TempDir(), "silent.wav")

	_, err := synth.Generate(context.Background(), speech.Request{
		Text:       "Too short to ever emit audio.",
		OutputPath: outputPath,
	})
	require.ErrorIs(t, err, speech.ErrEmptyOutput)
}

func TestGenerateBatchesLongText(t *testing.T) {
	t.Parallel()

	source := &fakeSource{tokensPerStream: 35}
	synth := newSynthesizer(t, source, speech.Config{MaxBatchChars: 60})
	outputPath := filepath.Join(t.TempDir(), "long.wav")

	longText := strings.Repeat("This sentence pads out the first batch nicely. ", 2) +
		"And this closing sentence lands in the second batch of the run."

	result, err := synth.Generate(context.Background(), speech.Request{
		Text:       longText,
		OutputPath: outputPath,
	})
	require.NoError(t, err)

	assert.Greater(t, result.Batches, 1)
	assert.Equal(t, result.Batches, source.streams)
	assert.Len(t, result.Segments, 3*result.Batches)

	samples, _, err := audio.ReadFile(outputPath)
	require.NoError(t, err)
	assert.NotEmpty(t, samples)

	// Temporary per-batch sinks are cleaned up after stitching.
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(outputPath), "*temp_batch*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestGenerateRequestLevelOverrides(t *testing.T) {
	t.Parallel()

	source := &fakeSource{tokensPerStream: 35}
	synth := newSynthesizer(t, source, speech.Config{})
	outputPath := filepath.Join(t.TempDir(), "override.wav")

	// Two 39-char sentences; the request budget of 60 forces one batch
	// each even though the configured default would keep them together.
	first := strings.Repeat("a", 38) + ". "
	second := strings.Repeat("b", 38) + "."

	result, err := synth.Generate(context.Background(), speech.Request{
		Text:          first + second,
		OutputPath:    outputPath,
		MaxBatchChars: 60,
		CrossfadeMs:   10,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Batches)
	assert.Equal(t, 2, source.streams)

	samples, _, err := audio.ReadFile(outputPath)
	require.NoError(t, err)

	// Each batch yields 768 samples; the 10ms request-level crossfade
	// overlaps 240 of them at 24kHz.
	assert.Len(t, samples, 768+768-240)
}

func TestGenerateDisableBatching(t *testing.T) {
	t.Parallel()

	source := &fakeSource{tokensPerStream: 35}
	synth := newSynthesizer(t, source, speech.Config{MaxBatchChars: 10})

	result, err := synth.Generate(context.Background(), speech.Request{
		Text:            "Plenty of characters here, but batching is off.",
		DisableBatching: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Batches)
	assert.Equal(t, 1, source.streams)
}
