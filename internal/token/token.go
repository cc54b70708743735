// Package token decodes Orpheus custom token markers into codec ids.
//
// The model emits markers of the form <custom_token_N> interleaved with
// arbitrary noise. The numeric payload is offset by the token's position
// within its 7-token frame, so the same marker decodes differently
// depending on where in the stream it arrives.
package token

import (
	"strconv"
	"strings"
)

// CustomTokenPrefix is the lexical prefix of every valid audio token marker.
const CustomTokenPrefix = "<custom_token_"

const (
	frameSize = 7
	idOffset  = 10
	idStride  = 4096
)

// ParseID extracts the trailing custom token marker from text and decodes it
// into a codec id using the token's 0-based arrival index. The second return
// is false when text carries no well-formed marker.
//
// Ids less than or equal to zero are control/noise tokens; discarding them is
// the caller's policy, not a parse failure.
func ParseID(text string, index int) (int, bool) {
	trimmed := strings.TrimSpace(text)

	start := strings.LastIndex(trimmed, CustomTokenPrefix)
	if start == -1 {
		return 0, false
	}

	marker := trimmed[start:]
	if !strings.HasSuffix(marker, ">") {
		return 0, false
	}

	digits := marker[len(CustomTokenPrefix) : len(marker)-1]

	value, err := strconv.Atoi(digits)
	if err != nil {
		return 0, false
	}

	return value - idOffset - (index%frameSize)*idStride, true
}
