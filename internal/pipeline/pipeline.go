package pipeline

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/core"
)

const bytesPerSample = 2 // 16-bit mono PCM

// Options configures a single pipeline run.
type Options struct {
	// QueueCapacity bounds the producer/consumer handoff. Zero selects
	// DefaultQueueCapacity.
	QueueCapacity int

	// SampleRate is used only for duration accounting.
	SampleRate int
}

// Stats holds the per-run counters. Each run owns its own instance, so
// concurrent batch pipelines cannot corrupt each other's metrics.
type Stats struct {
	tokensSeen    atomic.Int64
	framesEmitted atomic.Int64
	bytesProduced atomic.Int64
}

// Result reports the outcome of one pipeline run.
type Result struct {
	Segments      [][]byte
	TokensSeen    int64
	FramesEmitted int64
	TotalBytes    int64
	Elapsed       time.Duration
	SampleRate    int
}

// AudioDuration derives the produced audio length from the byte count.
func (r *Result) AudioDuration() time.Duration {
	if r.SampleRate <= 0 {
		return 0
	}

	seconds := float64(r.TotalBytes) / float64(bytesPerSample*r.SampleRate)

	return time.Duration(seconds * float64(time.Second))
}

// RealtimeFactor reports generated-audio seconds per wall-clock second.
func (r *Result) RealtimeFactor() float64 {
	if r.Elapsed <= 0 {
		return 0
	}

	return r.AudioDuration().Seconds() / r.Elapsed.Seconds()
}

// Run executes one producer/consumer pair over a fresh bounded queue and
// returns the ordered segments. Producer faults are logged and converted
// into an orderly end of stream; the returned error reflects only consumer
// failures (sink writes, cancellation).
func Run(
	ctx context.Context,
	tokens <-chan string,
	decoder core.FrameDecoder,
	sink io.Writer,
	opts Options,
	log *logger.Logger,
) (*Result, error) {
	startTime := time.Now()

	var stats Stats

	queue := newSegmentQueue(opts.QueueCapacity)

	prod := &producer{decoder: decoder, queue: queue, stats: &stats, log: log}
	cons := &consumer{queue: queue, sink: sink, stats: &stats, log: log}

	// The producer gets a cancellable child context so a consumer failure
	// releases it from a blocked enqueue before the bounded join below.
	runCtx, cancelProducer := context.WithCancel(ctx)
	defer cancelProducer()

	producerExited := make(chan struct{})

	go func() {
		defer close(producerExited)
		prod.run(runCtx, tokens)
	}()

	segments, err := cons.run(ctx)

	cancelProducer()
	joinProducer(producerExited, log)

	result := &Result{
		Segments:      segments,
		TokensSeen:    stats.tokensSeen.Load(),
		FramesEmitted: stats.framesEmitted.Load(),
		TotalBytes:    stats.bytesProduced.Load(),
		Elapsed:       time.Since(startTime),
		SampleRate:    opts.SampleRate,
	}

	if err != nil {
		return result, err
	}

	if len(segments) > 0 {
		log.Info("Generated %d audio segments, %.2fs of audio in %.2fs (%.2fx realtime)",
			len(segments),
			result.AudioDuration().Seconds(),
			result.Elapsed.Seconds(),
			result.RealtimeFactor())
	}

	return result, nil
}
