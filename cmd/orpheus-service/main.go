// main package for the orpheus-service
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/codec"
	"github.com/book-expert/orpheus-service/internal/config"
	"github.com/book-expert/orpheus-service/internal/core"
	"github.com/book-expert/orpheus-service/internal/engine"
	"github.com/book-expert/orpheus-service/internal/objectstore"
	"github.com/book-expert/orpheus-service/internal/speech"
	"github.com/book-expert/orpheus-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const healthCheckTimeout = 5 * time.Second

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "orpheus-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return runService(cfg, finalLog)
}

func runService(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	textStore, err := objectstore.New(jetstreamContext, cfg.NATS.TextObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open text object store: %w", err)
	}

	audioStore, err := objectstore.New(jetstreamContext, cfg.NATS.AudioObjectStoreBucket)
	if err != nil {
		return fmt.Errorf("failed to open audio object store: %w", err)
	}

	synthesizer, err := buildSynthesizer(cfg, log)
	if err != nil {
		return err
	}

	natsWorker, err := worker.NewNatsWorker(
		natsConnection,
		cfg.NATS.TextProcessedSubject,
		textStore,
		audioStore,
		synthesizer,
		cfg.Paths.WorkDir,
		defaultParams(cfg),
		log,
	)
	if err != nil {
		return fmt.Errorf("failed to create worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.System("Orpheus-Service initialized. Listening for jobs on subject: %s",
		cfg.NATS.TextProcessedSubject)

	err = natsWorker.Run(ctx)
	if err != nil {
		return fmt.Errorf("worker terminated with error: %w", err)
	}

	log.System("Orpheus-Service shut down cleanly.")

	return nil
}

func buildSynthesizer(cfg *config.Config, log *logger.Logger) (*speech.Synthesizer, error) {
	engineTimeout := time.Duration(cfg.Engine.TimeoutSeconds) * time.Second
	codecTimeout := time.Duration(cfg.Codec.TimeoutSeconds) * time.Second

	tokenSource := engine.New(cfg.Engine.APIURL, cfg.Engine.APIKey, engineTimeout, log)
	frameDecoder := codec.New(cfg.Codec.BaseURL, codecTimeout)

	healthCtx, cancel := context.WithTimeout(context.Background(), healthCheckTimeout)
	defer cancel()

	err := frameDecoder.HealthCheck(healthCtx)
	if err != nil {
		log.Warn("Codec service health check failed, continuing anyway: %v", err)
	}

	return speech.New(tokenSource, frameDecoder, speech.Config{
		SampleRate:      cfg.Codec.SampleRate,
		HighCapacity:    cfg.Pipeline.HighCapacity,
		DisableBatching: cfg.Pipeline.DisableBatching,
		MaxBatchChars:   cfg.Pipeline.MaxBatchChars,
		CrossfadeMs:     cfg.Pipeline.CrossfadeMs,
	}, log), nil
}

func defaultParams(cfg *config.Config) core.GenerationParams {
	voice := cfg.Engine.DefaultVoice
	if voice == "" {
		voice = engine.DefaultVoice
	}

	return core.GenerationParams{
		Voice:             voice,
		Temperature:       cfg.Engine.Temperature,
		TopP:              cfg.Engine.TopP,
		MaxTokens:         cfg.Engine.MaxTokens,
		RepetitionPenalty: cfg.Engine.RepetitionPenalty,
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
