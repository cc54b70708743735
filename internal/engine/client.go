// Package engine provides the token source client for the Orpheus LLM
// endpoint. It turns one synchronous completion call into a lazy stream of
// custom token markers, handling its own retries and backoff so the
// pipeline downstream only ever sees a channel of tokens.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/core"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAuth        = "Authorization"
	contentTypeJSON   = "application/json"
)

// Prompt framing for the Orpheus model.
const (
	promptStartToken = "<|audio|>"
	promptEndToken   = "<|eot_id|>"
)

// Retry policy for the completion call.
const (
	maxAttempts     = 3
	backoffBase     = 2 * time.Second
	tokenChannelCap = 256
)

// Static errors.
var (
	ErrTextEmpty        = errors.New("text cannot be empty")
	ErrNonRetryable     = errors.New("non-retryable API error")
	ErrAllRetriesFailed = errors.New("token generation failed after all retries")
)

var tokenMarkerPattern = regexp.MustCompile(`<custom_token_\d+>`)

// Client calls the Orpheus completion endpoint and extracts audio token
// markers from its response.
type Client struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	log        *logger.Logger
}

// completionRequest is the inner generation payload.
type completionRequest struct {
	Prompt            string   `json:"prompt"`
	Temperature       float64  `json:"temperature"`
	TopP              float64  `json:"top_p"`
	MaxTokens         int      `json:"max_tokens"`
	RepetitionPenalty float64  `json:"repetition_penalty"`
	Stop              []string `json:"stop"`
	Stream            bool     `json:"stream"`
}

// completionEnvelope wraps the payload the way the serverless endpoint
// expects it.
type completionEnvelope struct {
	Input completionRequest `json:"input"`
}

// completionResponse mirrors the endpoint's nested response shape. Items
// carry either a nested generated_text or a bare text field.
type completionResponse struct {
	Output []completionItem `json:"output"`
}

type completionItem struct {
	Output *completionText `json:"output,omitempty"`
	Text   string          `json:"text,omitempty"`
}

type completionText struct {
	GeneratedText string `json:"generated_text"`
}

// New creates a token source client. The timeout applies per attempt, not
// across retries.
func New(apiURL, apiKey string, timeout time.Duration, log *logger.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		apiURL: apiURL,
		apiKey: apiKey,
		log:    log,
	}
}

// FormatPrompt frames text with the voice prefix and the model's special
// tokens, falling back to DefaultVoice for unknown voices.
func (c *Client) FormatPrompt(text, voice string) string {
	if !IsVoiceAvailable(voice) {
		c.log.Warn("Voice '%s' not recognized, using '%s' instead", voice, DefaultVoice)

		voice = DefaultVoice
	}

	return fmt.Sprintf("%s%s: %s%s", promptStartToken, voice, text, promptEndToken)
}

// Stream requests a completion for text and returns a channel of raw token
// markers. The channel is closed when extraction finishes or generation
// ultimately fails; failures are logged here and surface downstream only as
// an empty stream.
func (c *Client) Stream(
	ctx context.Context,
	text string,
	params core.GenerationParams,
) (<-chan string, error) {
	if text == "" {
		return nil, ErrTextEmpty
	}

	request := completionEnvelope{
		Input: completionRequest{
			Prompt:            c.FormatPrompt(text, params.Voice),
			Temperature:       params.Temperature,
			TopP:              params.TopP,
			MaxTokens:         params.MaxTokens,
			RepetitionPenalty: params.RepetitionPenalty,
			Stop:              []string{promptEndToken},
			Stream:            false,
		},
	}

	tokens := make(chan string, tokenChannelCap)

	go func() {
		defer close(tokens)

		startTime := time.Now()

		generated, err := c.completeWithRetry(ctx, request)
		if err != nil {
			c.log.Error("Token generation failed: %v", err)

			return
		}

		markers := tokenMarkerPattern.FindAllString(generated, -1)
		if len(markers) == 0 {
			c.log.Warn("LLM response contained no custom tokens")

			return
		}

		for _, marker := range markers {
			select {
			case tokens <- marker:
			case <-ctx.Done():
				return
			}
		}

		elapsed := time.Since(startTime).Seconds()
		if elapsed > 0 {
			c.log.Info("Token generation complete: %d tokens in %.2fs (%.1f tokens/sec)",
				len(markers), elapsed, float64(len(markers))/elapsed)
		}
	}()

	return tokens, nil
}

// completeWithRetry posts the completion request, retrying transient
// failures (5xx, timeouts, connection errors) with exponential backoff.
// Client-side HTTP errors are not retried.
func (c *Client) completeWithRetry(
	ctx context.Context,
	request completionEnvelope,
) (string, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", fmt.Errorf("failed to marshal completion request: %w", err)
	}

	var lastErr error

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		generated, attemptErr := c.completeOnce(ctx, body)
		if attemptErr == nil {
			return generated, nil
		}

		if errors.Is(attemptErr, ErrNonRetryable) {
			return "", attemptErr
		}

		lastErr = attemptErr

		if attempt < maxAttempts {
			wait := backoffBase << (attempt - 1)
			c.log.Warn("Completion attempt %d/%d failed: %v; retrying in %s",
				attempt, maxAttempts, attemptErr, wait)

			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", fmt.Errorf("completion cancelled: %w", ctx.Err())
			}
		}
	}

	return "", fmt.Errorf("%w: %w", ErrAllRetriesFailed, lastErr)
}

func (c *Client) completeOnce(ctx context.Context, body []byte) (string, error) {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.apiURL,
		bytes.NewReader(body),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create completion request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)

	if c.apiKey != "" {
		httpReq.Header.Set(headerAuth, "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("completion request to %s failed: %w", c.apiURL, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)

		if resp.StatusCode >= http.StatusInternalServerError {
			return "", fmt.Errorf("server error %s: %s", resp.Status, string(raw))
		}

		return "", fmt.Errorf("%w: %s: %s", ErrNonRetryable, resp.Status, string(raw))
	}

	var response completionResponse

	err = json.NewDecoder(resp.Body).Decode(&response)
	if err != nil {
		return "", fmt.Errorf("failed to decode completion response: %w", err)
	}

	return collectGeneratedText(response), nil
}

// collectGeneratedText concatenates whatever text fields the response
// carries; marker extraction downstream ignores everything else.
func collectGeneratedText(response completionResponse) string {
	var out bytes.Buffer

	for _, item := range response.Output {
		if item.Output != nil {
			out.WriteString(item.Output.GeneratedText)

			continue
		}

		out.WriteString(item.Text)
	}

	return out.String()
}
