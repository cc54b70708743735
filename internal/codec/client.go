// Package codec provides the HTTP client for the neural codec service that
// converts token frames into PCM audio.
package codec

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// API endpoints.
const (
	apiDecodeFrame = "/v1/decode/frame"
	apiHealth      = "/health"
)

// HTTP headers.
const (
	headerContentType = "Content-Type"
	headerAccept      = "Accept"
	contentTypeJSON   = "application/json"
	contentTypePCM    = "audio/pcm"
)

// Error messages.
const (
	errFmtUnexpectedContentType = "unexpected content type: expected audio/pcm, got %s"
	errFmtNonOKStatus           = "codec service returned non-OK status: %s, body: %s"
)

// ErrEmptyFrame is returned when a decode is requested with no tokens.
var ErrEmptyFrame = errors.New("frame cannot be empty")

// Client talks to the standalone codec HTTP service. It implements
// core.FrameDecoder: HTTP 204 maps to the (nil, nil) "not enough signal
// yet" result.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// frameRequest is the JSON payload for a single frame decode.
type frameRequest struct {
	// Frame holds the token id window, most recent last.
	Frame []int `json:"frame"`

	// Count is the total number of tokens seen so far, not the frame
	// length; the codec uses it to locate the frame in the stream.
	Count int `json:"count"`
}

// New creates a codec client for the service at baseURL.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Decode posts one token frame and returns the decoded PCM chunk. A 204
// response means the codec needs more signal and is not an error.
func (c *Client) Decode(ctx context.Context, frame []int, count int) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyFrame
	}

	body, err := json.Marshal(frameRequest{Frame: frame, Count: count})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal frame request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+apiDecodeFrame,
		bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create decode request: %w", err)
	}

	httpReq.Header.Set(headerContentType, contentTypeJSON)
	httpReq.Header.Set(headerAccept, contentTypePCM)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("decode request to %s failed: %w", c.baseURL, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)

		return nil, fmt.Errorf(errFmtNonOKStatus, resp.Status, string(raw))
	}

	contentType := resp.Header.Get(headerContentType)
	if contentType != contentTypePCM {
		return nil, fmt.Errorf(errFmtUnexpectedContentType, contentType)
	}

	pcm, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read PCM data: %w", err)
	}

	return pcm, nil
}

// HealthCheck verifies the codec service is reachable and healthy.
func (c *Client) HealthCheck(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodGet,
		c.baseURL+apiHealth,
		http.NoBody,
	)
	if err != nil {
		return fmt.Errorf("failed to create health check request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("health check failed for codec at %s: %w", c.baseURL, err)
	}

	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("codec health check failed with status: %s", resp.Status)
	}

	return nil
}
