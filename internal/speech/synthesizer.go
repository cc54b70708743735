// Package speech assembles the full text-to-audio flow: sentence batching,
// one streaming pipeline run per batch, and crossfade stitching of the
// per-batch sinks into the final output.
package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/audio"
	"github.com/book-expert/orpheus-service/internal/core"
	"github.com/book-expert/orpheus-service/internal/pipeline"
	"github.com/book-expert/orpheus-service/internal/text"
	"github.com/google/uuid"
)

// DefaultCrossfadeMs is the boundary blend applied between batch outputs.
const DefaultCrossfadeMs = 100

// Static errors. These are the recovered forms of pipeline faults; callers
// receive one of them plus a log trail instead of a crash.
var (
	ErrTextEmpty        = errors.New("text cannot be empty")
	ErrNoAudioGenerated = errors.New("no audio segments were generated")
	ErrEmptyOutput      = errors.New("output file contains no audio data")
)

// Config carries the synthesizer-wide settings.
type Config struct {
	// SampleRate of the codec's PCM output.
	SampleRate int

	// HighCapacity selects the larger segment queue tier.
	HighCapacity bool

	// DisableBatching turns off sentence batching for every request.
	DisableBatching bool

	// MaxBatchChars is the per-batch character budget for long inputs.
	MaxBatchChars int

	// CrossfadeMs is the blend duration between stitched batches.
	CrossfadeMs int
}

// Request describes one synthesis job.
type Request struct {
	// Text to synthesize.
	Text string

	// OutputPath is the optional WAV sink; empty keeps audio in memory.
	OutputPath string

	// DisableBatching forces a single pipeline run regardless of length.
	DisableBatching bool

	// MaxBatchChars overrides the configured batch budget when positive.
	MaxBatchChars int

	// CrossfadeMs overrides the configured boundary blend when positive.
	CrossfadeMs int

	// Generation carries the per-job knobs forwarded to the token source.
	Generation core.GenerationParams
}

// Result reports a completed synthesis.
type Result struct {
	Segments      [][]byte
	Batches       int
	AudioDuration time.Duration
	Elapsed       time.Duration
}

// RealtimeFactor reports generated-audio seconds per wall-clock second.
func (r *Result) RealtimeFactor() float64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return r.AudioDuration.Seconds() / r.Elapsed.Seconds()
}

// Synthesizer wires a token source and a frame decoder into the streaming
// pipeline.
type Synthesizer struct {
	source     core.TokenSource
	decoder    core.FrameDecoder
	normalizer *text.Normalizer
	config     Config
	log        *logger.Logger
}

// New creates a Synthesizer. Zero config fields fall back to the package
// defaults.
func New(
	source core.TokenSource,
	decoder core.FrameDecoder,
	config Config,
	log *logger.Logger,
) *Synthesizer {
	if config.SampleRate <= 0 {
		config.SampleRate = audio.DefaultSampleRate
	}

	if config.MaxBatchChars <= 0 {
		config.MaxBatchChars = text.DefaultMaxBatchChars
	}

	if config.CrossfadeMs <= 0 {
		config.CrossfadeMs = DefaultCrossfadeMs
	}

	return &Synthesizer{
		source:     source,
		decoder:    decoder,
		normalizer: text.NewNormalizer(),
		config:     config,
		log:        log,
	}
}

// Generate synthesizes req.Text to the configured sink and returns the
// produced segments. Inputs at or over the batch budget are split into
// sentence-aware batches, each run as an independent pipeline against its
// own temporary sink, then stitched with a crossfade.
func (s *Synthesizer) Generate(ctx context.Context, req Request) (*Result, error) {
	req.Text = s.normalizer.Normalize(req.Text)
	if req.Text == "" {
		return nil, ErrTextEmpty
	}

	startTime := time.Now()

	var (
		result *Result
		err    error
	)

	maxBatchChars := s.config.MaxBatchChars
	if req.MaxBatchChars > 0 {
		maxBatchChars = req.MaxBatchChars
	}

	batchingOff := req.DisableBatching || s.config.DisableBatching
	if batchingOff || len([]rune(req.Text)) < maxBatchChars {
		result, err = s.generateSingle(ctx, req)
	} else {
		result, err = s.generateBatched(ctx, req, maxBatchChars)
	}

	if err != nil {
		return nil, err
	}

	result.Elapsed = time.Since(startTime)

	if len(result.Segments) == 0 {
		s.log.Error("No audio segments generated after %.2fs", result.Elapsed.Seconds())

		return nil, s.classifyEmptyRun(req.OutputPath)
	}

	err = s.verifyOutput(req.OutputPath)
	if err != nil {
		return nil, err
	}

	s.log.Info("Generated %d segments in %d batch(es): %.2fs audio in %.2fs (%.2fx realtime)",
		len(result.Segments), result.Batches,
		result.AudioDuration.Seconds(), result.Elapsed.Seconds(),
		result.RealtimeFactor())

	return result, nil
}

func (s *Synthesizer) generateSingle(ctx context.Context, req Request) (*Result, error) {
	runResult, err := s.runBatch(ctx, req.Text, req.Generation, req.OutputPath)
	if err != nil {
		return nil, err
	}

	return &Result{
		Segments:      runResult.Segments,
		Batches:       1,
		AudioDuration: runResult.AudioDuration(),
		Elapsed:       0,
	}, nil
}

func (s *Synthesizer) generateBatched(
	ctx context.Context,
	req Request,
	maxBatchChars int,
) (*Result, error) {
	units := text.SplitSentences(req.Text)
	batches := text.GroupBatches(units, maxBatchChars)

	s.log.Info("Using sentence-based batching: %d chars split into %d unit(s), %d batch(es)",
		len([]rune(req.Text)), len(units), len(batches))

	result := &Result{
		Segments:      nil,
		Batches:       len(batches),
		AudioDuration: 0,
		Elapsed:       0,
	}

	var tempPaths []string

	defer func() { removeTempFiles(tempPaths, s.log) }()

	for i, batchText := range batches {
		s.log.Info("Processing batch %d/%d (%d characters)",
			i+1, len(batches), len([]rune(batchText)))

		sinkPath := ""
		if req.OutputPath != "" {
			sinkPath = tempBatchPath(req.OutputPath, i)
			tempPaths = append(tempPaths, sinkPath)
		}

		runResult, err := s.runBatch(ctx, batchText, req.Generation, sinkPath)
		if err != nil {
			return nil, err
		}

		result.Segments = append(result.Segments, runResult.Segments...)
		result.AudioDuration += runResult.AudioDuration()
	}

	crossfadeMs := s.config.CrossfadeMs
	if req.CrossfadeMs > 0 {
		crossfadeMs = req.CrossfadeMs
	}

	if req.OutputPath != "" && len(tempPaths) > 0 {
		err := audio.Stitch(tempPaths, req.OutputPath, crossfadeMs, s.log)
		if err != nil {
			return nil, fmt.Errorf("failed to stitch batch outputs: %w", err)
		}
	}

	return result, nil
}

// runBatch executes one producer/consumer pipeline for batchText, writing
// to sinkPath when provided.
func (s *Synthesizer) runBatch(
	ctx context.Context,
	batchText string,
	params core.GenerationParams,
	sinkPath string,
) (*pipeline.Result, error) {
	tokens, err := s.source.Stream(ctx, batchText, params)
	if err != nil {
		return nil, fmt.Errorf("failed to start token stream: %w", err)
	}

	var sink io.Writer

	var writer *audio.Writer

	if sinkPath != "" {
		writer, err = audio.NewWriter(sinkPath, s.config.SampleRate)
		if err != nil {
			return nil, err
		}

		sink = writer
	}

	runResult, runErr := pipeline.Run(ctx, tokens, s.decoder, sink, pipeline.Options{
		QueueCapacity: s.queueCapacity(),
		SampleRate:    s.config.SampleRate,
	}, s.log)

	if writer != nil {
		closeErr := writer.Close()
		if runErr == nil && closeErr != nil {
			runErr = closeErr
		}
	}

	if runErr != nil {
		return nil, fmt.Errorf("pipeline run failed: %w", runErr)
	}

	return runResult, nil
}

func (s *Synthesizer) queueCapacity() int {
	if s.config.HighCapacity {
		return pipeline.HighQueueCapacity
	}

	return pipeline.DefaultQueueCapacity
}

// classifyEmptyRun distinguishes a silently empty sink from plain source
// exhaustion; both are failures even though no call errored.
func (s *Synthesizer) classifyEmptyRun(outputPath string) error {
	if outputPath == "" {
		return ErrNoAudioGenerated
	}

	info, err := os.Stat(outputPath)
	if err == nil && info.Size() <= audio.HeaderSize {
		return fmt.Errorf("%w: '%s' holds %d bytes", ErrEmptyOutput, outputPath, info.Size())
	}

	return ErrNoAudioGenerated
}

// verifyOutput rejects a sink that exists but carries only a header.
func (s *Synthesizer) verifyOutput(outputPath string) error {
	if outputPath == "" {
		return nil
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return fmt.Errorf("output file '%s' was not created: %w", outputPath, err)
	}

	if info.Size() <= audio.HeaderSize {
		return fmt.Errorf("%w: '%s' holds %d bytes", ErrEmptyOutput, outputPath, info.Size())
	}

	return nil
}

func tempBatchPath(outputPath string, index int) string {
	ext := filepath.Ext(outputPath)
	base := strings.TrimSuffix(outputPath, ext)

	return fmt.Sprintf("%s_temp_batch_%d_%s.wav", base, index, uuid.NewString()[:8])
}

func removeTempFiles(paths []string, log *logger.Logger) {
	for _, path := range paths {
		err := os.Remove(path)
		if err != nil && !os.IsNotExist(err) {
			log.Warn("Could not remove temporary file '%s': %v", path, err)
		}
	}
}
