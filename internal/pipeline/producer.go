package pipeline

import (
	"context"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/orpheus-service/internal/core"
	"github.com/book-expert/orpheus-service/internal/token"
)

const throughputLogInterval = 5 * time.Second

// producer drives the framer against a token stream, invokes the decoder
// for each ready frame, and hands finished segments to the queue.
type producer struct {
	decoder core.FrameDecoder
	queue   *segmentQueue
	stats   *Stats
	log     *logger.Logger
}

// run consumes tokens until the stream closes, an error occurs, or the
// context is cancelled. Whatever the exit path, the queue is finished so
// the consumer can never block forever. Decoder errors terminate production
// after logging; retries belong to the token source, not here.
func (p *producer) run(ctx context.Context, tokens <-chan string) {
	defer p.queue.finish(ctx)

	var windower framer

	startTime := time.Now()
	lastLogTime := startTime

	for {
		var (
			raw  string
			open bool
		)

		select {
		case <-ctx.Done():
			return
		case raw, open = <-tokens:
			if !open {
				return
			}
		}

		id, valid := token.ParseID(raw, windower.count)
		if !valid || id <= 0 {
			// Noise or control token; discard by policy.
			continue
		}

		windower.push(id)
		p.stats.tokensSeen.Add(1)

		if now := time.Now(); now.Sub(lastLogTime) > throughputLogInterval {
			elapsed := now.Sub(startTime).Seconds()
			if elapsed > 0 {
				p.log.Info("Token processing rate: %.1f tokens/second",
					float64(windower.count)/elapsed)
			}

			lastLogTime = now
		}

		frame := windower.readyFrame()
		if frame == nil {
			continue
		}

		pcm, err := p.decoder.Decode(ctx, frame, windower.count)
		if err != nil {
			p.log.Error("Frame decode failed at token %d: %v", windower.count, err)

			return
		}

		if len(pcm) == 0 {
			// Not enough signal yet; the phase does not advance.
			continue
		}

		windower.markEmitted()
		p.stats.framesEmitted.Add(1)

		if !p.queue.put(ctx, pcm) {
			return
		}
	}
}
