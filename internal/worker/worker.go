// Package worker provides a NATS worker that turns text-processed events
// into synthesized audio chunks.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/book-expert/events"
	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/core"
	"github.com/book-expert/orpheus-service/internal/engine"
	"github.com/book-expert/orpheus-service/internal/speech"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

const handleMessageTimeout = 10 * time.Minute

var (
	// ErrUnsupportedVoice indicates that the requested voice is not available.
	ErrUnsupportedVoice = errors.New("unsupported voice")
	// ErrTopPRange indicates that the TopP parameter is out of the valid range [0.0, 1.0].
	ErrTopPRange = errors.New("top_p must be between 0.0 and 1.0")
	// ErrRepetitionPenaltyRange indicates that the RepetitionPenalty parameter is below 1.0.
	ErrRepetitionPenaltyRange = errors.New("repetition penalty must be >= 1.0")
	// ErrTemperatureRange indicates that the Temperature parameter is negative.
	ErrTemperatureRange = errors.New("temperature must be >= 0.0")
)

// SpeechGenerator is the synthesis entry point the worker drives for each
// job.
type SpeechGenerator interface {
	Generate(ctx context.Context, req speech.Request) (*speech.Result, error)
}

// NatsWorker listens for synthesis jobs on a NATS subject and processes
// them.
type NatsWorker struct {
	natsConnection *nats.Conn
	subject        string
	textStore      core.ObjectStore
	audioStore     core.ObjectStore
	generator      SpeechGenerator
	workDir        string
	defaults       core.GenerationParams
	log            *logger.Logger
}

// NewNatsWorker creates a new instance of a NATS worker. Job parameters
// absent from an event fall back to defaults.
func NewNatsWorker(
	natsConnection *nats.Conn,
	subject string,
	textStore core.ObjectStore,
	audioStore core.ObjectStore,
	generator SpeechGenerator,
	workDir string,
	defaults core.GenerationParams,
	log *logger.Logger,
) (*NatsWorker, error) {
	err := os.MkdirAll(workDir, 0o750)
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory '%s': %w", workDir, err)
	}

	return &NatsWorker{
		natsConnection: natsConnection,
		subject:        subject,
		textStore:      textStore,
		audioStore:     audioStore,
		generator:      generator,
		workDir:        workDir,
		defaults:       defaults,
		log:            log,
	}, nil
}

// Run starts the worker and begins listening for messages.
func (w *NatsWorker) Run(ctx context.Context) error {
	sub, err := w.natsConnection.Subscribe(w.subject, w.handleMessage)
	if err != nil {
		return fmt.Errorf("failed to subscribe to subject %s: %w", w.subject, err)
	}

	<-ctx.Done()

	drainErr := sub.Drain()
	if drainErr != nil {
		return fmt.Errorf("failed to drain subscription: %w", drainErr)
	}

	return nil
}

func (w *NatsWorker) handleMessage(msg *nats.Msg) {
	ctx, cancel := context.WithTimeout(context.Background(), handleMessageTimeout)
	defer cancel()

	event, err := parseEvent(msg)
	if err != nil {
		w.log.Error("Failed to parse event: %v", err)

		return
	}

	audioKey, processErr := w.processJob(ctx, event)
	if processErr != nil {
		w.log.Error("Failed to process job for workflow %s: %v",
			event.Header.WorkflowID, processErr)

		return
	}

	replyEvent := &events.AudioChunkCreatedEvent{
		Header:     event.Header,
		AudioKey:   audioKey,
		PageNumber: event.PageNumber,
		TotalPages: event.TotalPages,
	}

	err = w.publishReplyEvent(msg, replyEvent)
	if err != nil {
		w.log.Error("Failed to publish reply event for workflow %s: %v",
			event.Header.WorkflowID, err)
	}
}

// processJob downloads the source text, synthesizes it to a scratch WAV and
// uploads the result under a fresh key.
func (w *NatsWorker) processJob(
	ctx context.Context,
	event *events.TextProcessedEvent,
) (string, error) {
	params := w.resolveParams(event)

	err := validateParams(params)
	if err != nil {
		return "", err
	}

	textData, err := w.textStore.Download(ctx, event.TextKey)
	if err != nil {
		return "", fmt.Errorf(
			"failed to download text data for key '%s': %w", event.TextKey, err,
		)
	}

	outputPath := filepath.Join(w.workDir, uuid.NewString()+".wav")
	defer removeQuietly(outputPath, w.log)

	result, err := w.generator.Generate(ctx, speech.Request{
		Text:            string(textData),
		OutputPath:      outputPath,
		DisableBatching: false,
		Generation:      params,
	})
	if err != nil {
		return "", fmt.Errorf("failed to synthesize text: %w", err)
	}

	w.log.Info("Workflow %s: synthesized %.2fs of audio at %.2fx realtime",
		event.Header.WorkflowID, result.AudioDuration.Seconds(), result.RealtimeFactor())

	audioData, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read synthesized audio: %w", err)
	}

	audioKey := uuid.NewString() + ".wav"

	err = w.audioStore.Upload(ctx, audioKey, audioData)
	if err != nil {
		return "", fmt.Errorf("failed to upload audio data for key '%s': %w", audioKey, err)
	}

	return audioKey, nil
}

// resolveParams merges the event's knobs over the worker defaults.
func (w *NatsWorker) resolveParams(event *events.TextProcessedEvent) core.GenerationParams {
	params := w.defaults

	if event.Voice != "" {
		params.Voice = event.Voice
	}

	if event.Temperature > 0 {
		params.Temperature = event.Temperature
	}

	if event.TopP > 0 {
		params.TopP = event.TopP
	}

	if event.RepetitionPenalty > 0 {
		params.RepetitionPenalty = event.RepetitionPenalty
	}

	return params
}

// publishReplyEvent marshals and responds with the AudioChunkCreatedEvent.
func (w *NatsWorker) publishReplyEvent(
	msg *nats.Msg,
	replyEvent *events.AudioChunkCreatedEvent,
) error {
	replyData, err := json.Marshal(replyEvent)
	if err != nil {
		return fmt.Errorf("failed to marshal reply event: %w", err)
	}

	err = msg.Respond(replyData)
	if err != nil {
		return fmt.Errorf("failed to publish reply event: %w", err)
	}

	return nil
}

func parseEvent(msg *nats.Msg) (*events.TextProcessedEvent, error) {
	var event events.TextProcessedEvent

	err := json.Unmarshal(msg.Data, &event)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &event, nil
}

// validateParams rejects jobs whose knobs would produce garbage audio or an
// engine-side error.
func validateParams(params core.GenerationParams) error {
	if !engine.IsVoiceAvailable(params.Voice) {
		return fmt.Errorf("%w: '%s'", ErrUnsupportedVoice, params.Voice)
	}

	if params.TopP < 0.0 || params.TopP > 1.0 {
		return fmt.Errorf("%w: got %f", ErrTopPRange, params.TopP)
	}

	if params.RepetitionPenalty < 1.0 {
		return fmt.Errorf("%w: got %f", ErrRepetitionPenaltyRange, params.RepetitionPenalty)
	}

	if params.Temperature < 0.0 {
		return fmt.Errorf("%w: got %f", ErrTemperatureRange, params.Temperature)
	}

	return nil
}

func removeQuietly(path string, log *logger.Logger) {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		log.Warn("Could not remove scratch file '%s': %v", path, err)
	}
}
