// Package codec_test tests the codec service client.
package codec_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/book-expert/orpheus-service/internal/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_ReturnsPCM(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/v1/decode/frame", r.URL.Path)

			var req struct {
				Frame []int `json:"frame"`
				Count int   `json:"count"`
			}

			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7}, req.Frame)
			assert.Equal(t, 7, req.Count)

			w.Header().Set("Content-Type", "audio/pcm")
			_, _ = w.Write([]byte{0x01, 0x02, 0x03, 0x04})
		}))
	defer server.Close()

	client := codec.New(server.URL, 5*time.Second)

	pcm, err := client.Decode(context.Background(), []int{1, 2, 3, 4, 5, 6, 7}, 7)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04}, pcm)
}

func TestDecode_NoContentMeansNotEnoughSignal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
	defer server.Close()

	client := codec.New(server.URL, 5*time.Second)

	pcm, err := client.Decode(context.Background(), []int{1, 2, 3}, 3)
	require.NoError(t, err)
	assert.Nil(t, pcm)
}

func TestDecode_ErrorStatus(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "codec offline", http.StatusServiceUnavailable)
		}))
	defer server.Close()

	client := codec.New(server.URL, 5*time.Second)

	_, err := client.Decode(context.Background(), []int{1}, 1)
	require.Error(t, err)
}

func TestDecode_EmptyFrameRejected(t *testing.T) {
	t.Parallel()

	client := codec.New("http://127.0.0.1:0", time.Second)

	_, err := client.Decode(context.Background(), nil, 0)
	require.ErrorIs(t, err, codec.ErrEmptyFrame)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/health", r.URL.Path)
			w.WriteHeader(http.StatusOK)
		}))
	defer server.Close()

	client := codec.New(server.URL, time.Second)
	require.NoError(t, client.HealthCheck(context.Background()))
}
