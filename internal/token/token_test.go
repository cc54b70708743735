// Package token_test tests custom token marker decoding.
package token_test

import (
	"testing"

	"github.com/book-expert/orpheus-service/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseID_DecodesMarker(t *testing.T) {
	t.Parallel()

	id, ok := token.ParseID("<custom_token_100>", 0)
	require.True(t, ok)
	assert.Equal(t, 90, id)
}

func TestParseID_AppliesFramePositionOffset(t *testing.T) {
	t.Parallel()

	// index 1 within the frame shifts the id by one stride.
	id, ok := token.ParseID("<custom_token_4196>", 1)
	require.True(t, ok)
	assert.Equal(t, 90, id)

	// index 8 wraps back to frame position 1.
	id, ok = token.ParseID("<custom_token_4196>", 8)
	require.True(t, ok)
	assert.Equal(t, 90, id)
}

func TestParseID_TakesTrailingMarker(t *testing.T) {
	t.Parallel()

	id, ok := token.ParseID("noise<custom_token_11><custom_token_42>", 0)
	require.True(t, ok)
	assert.Equal(t, 32, id)
}

func TestParseID_RejectsNoise(t *testing.T) {
	t.Parallel()

	cases := []string{
		"",
		"plain text",
		"<custom_token_>",
		"<custom_token_abc>",
		"<custom_token_42",
		"custom_token_42>",
	}

	for _, input := range cases {
		_, ok := token.ParseID(input, 0)
		assert.False(t, ok, "input %q should not parse", input)
	}
}

func TestParseID_ControlTokensDecodeNonPositive(t *testing.T) {
	t.Parallel()

	// Small payloads decode to ids <= 0; callers drop these.
	id, ok := token.ParseID("<custom_token_10>", 0)
	require.True(t, ok)
	assert.LessOrEqual(t, id, 0)
}
