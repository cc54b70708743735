// Package pipeline implements the streaming token-to-audio assembly core:
// windowed frame batching, a bounded producer/consumer handoff with
// backpressure, and race-safe completion detection.
package pipeline

// Windowing policy constants.
const (
	// MinFirstFrames is the buffer length that triggers the very first
	// frame. A short window trades fidelity for time-to-first-audio.
	MinFirstFrames = 7

	// MinSteadyFrames is the minimum token count before steady-state
	// frames are emitted; the wider window gives the codec lookback.
	MinSteadyFrames = 28

	// FrameStride is the token cadence of steady-state frames.
	FrameStride = 7
)

// framer accumulates accepted token ids and decides when a frame is ready.
// It starts in the first-chunk phase and transitions to steady state exactly
// once, when the caller reports the first non-nil decode.
type framer struct {
	buffer            []int
	count             int
	firstChunkEmitted bool
}

// push appends an accepted token id to the rolling buffer.
func (f *framer) push(id int) {
	f.buffer = append(f.buffer, id)
	f.count++
}

// readyFrame returns the window to decode, or nil when no frame is due.
// The returned slice is a copy, so the decoder can never observe later
// buffer growth.
func (f *framer) readyFrame() []int {
	if !f.firstChunkEmitted {
		if f.count >= MinFirstFrames {
			return f.tail(MinFirstFrames)
		}

		return nil
	}

	if f.count%FrameStride == 0 && f.count >= MinSteadyFrames {
		return f.tail(MinSteadyFrames)
	}

	return nil
}

// markEmitted records that a frame produced audio. Until this happens the
// framer keeps retrying the short first window on every new token.
func (f *framer) markEmitted() {
	f.firstChunkEmitted = true
}

func (f *framer) tail(window int) []int {
	frame := make([]int, window)
	copy(frame, f.buffer[len(f.buffer)-window:])

	return frame
}
