package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/book-expert/logger"
)

// Consumer cadence and buffering constants.
const (
	// pollTimeout bounds each queue read so transient empty states never
	// look like completion.
	pollTimeout = 100 * time.Millisecond

	// completionCheckInterval is how often an idle consumer re-evaluates
	// the done-and-empty condition and flushes a partial buffer.
	completionCheckInterval = time.Second

	// writeBufferHighWater flushes the sink buffer once it holds 1 MiB.
	writeBufferHighWater = 1 << 20

	// producerJoinTimeout bounds the wait for the producer goroutine
	// after completion is observed. Overrunning it is a liveness
	// problem worth reporting, not a correctness failure.
	producerJoinTimeout = 10 * time.Second
)

// consumer drains the segment queue into memory and, when a sink is
// configured, into the sink via a buffered writer with periodic flushes.
type consumer struct {
	queue *segmentQueue
	sink  io.Writer
	stats *Stats
	log   *logger.Logger
}

// run returns the segments in arrival order. It terminates when the
// sentinel arrives or when the producer is done and the queue is empty at a
// check point; both conditions are kept because the sentinel enqueue and
// the done flag are set independently.
func (c *consumer) run(ctx context.Context) ([][]byte, error) {
	var segments [][]byte

	writeBuffer := make([]byte, 0, writeBufferHighWater)
	lastCheckTime := time.Now()

drain:
	for {
		select {
		case <-ctx.Done():
			_ = c.flush(writeBuffer)

			return segments, fmt.Errorf("consumer cancelled: %w", ctx.Err())

		case segment := <-c.queue.segments:
			if segment == nil {
				c.log.Info("Received end-of-stream marker")

				break drain
			}

			segments = append(segments, segment)
			c.stats.bytesProduced.Add(int64(len(segment)))

			if c.sink == nil {
				continue
			}

			writeBuffer = append(writeBuffer, segment...)
			if len(writeBuffer) >= writeBufferHighWater {
				err := c.flush(writeBuffer)
				if err != nil {
					return segments, err
				}

				writeBuffer = writeBuffer[:0]
			}

		case <-time.After(pollTimeout):
			if time.Since(lastCheckTime) < completionCheckInterval {
				continue
			}

			lastCheckTime = time.Now()

			if c.queue.finished() {
				c.log.Info("Producer done and queue empty - finishing consumer")

				break drain
			}

			// Flush early so sink latency stays bounded even when
			// the buffer never reaches the high-water mark.
			if len(writeBuffer) > 0 {
				err := c.flush(writeBuffer)
				if err != nil {
					return segments, err
				}

				writeBuffer = writeBuffer[:0]
			}
		}
	}

	err := c.flush(writeBuffer)
	if err != nil {
		return segments, err
	}

	return segments, nil
}

func (c *consumer) flush(buffer []byte) error {
	if c.sink == nil || len(buffer) == 0 {
		return nil
	}

	_, err := c.sink.Write(buffer)
	if err != nil {
		return fmt.Errorf("failed to flush %d bytes to sink: %w", len(buffer), err)
	}

	return nil
}

// joinProducer bounds the wait for the producer goroutine. It runs on every
// exit path, including consumer errors, so the goroutine never outlives the
// pipeline unobserved.
func joinProducer(producerExited <-chan struct{}, log *logger.Logger) {
	select {
	case <-producerExited:
	case <-time.After(producerJoinTimeout):
		log.Warn("Producer did not exit within %s of stream completion",
			producerJoinTimeout)
	}
}
