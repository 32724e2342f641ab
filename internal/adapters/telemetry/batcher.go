// Package telemetry provides the OpenTelemetry tracer and the bridge that feeds
// span events to a renderer.
package telemetry

import (
	"errors"
	"sync"
	"time"
)

const (
	// DefaultSizeLimit is the buffered size that forces a flush.
	DefaultSizeLimit = 4096
	// DefaultTimeLimit is how long output may sit in the buffer.
	DefaultTimeLimit = 50 * time.Millisecond
)

var errBatcherClosed = errors.New("batch processor is closed")

// BatchProcessor coalesces small writes into larger chunks. A flush happens when
// the buffer reaches the size limit, when the oldest buffered byte is older than
// the time limit, or on Close. It is safe for concurrent use.
type BatchProcessor struct {
	sizeLimit int
	timeLimit time.Duration
	onFlush   func([]byte)

	mu     sync.Mutex
	buf    []byte
	timer  *time.Timer
	closed bool
}

// NewBatchProcessor returns a BatchProcessor. Non-positive limits use the defaults.
func NewBatchProcessor(sizeLimit int, timeLimit time.Duration, onFlush func([]byte)) *BatchProcessor {
	if sizeLimit <= 0 {
		sizeLimit = DefaultSizeLimit
	}
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	return &BatchProcessor{
		sizeLimit: sizeLimit,
		timeLimit: timeLimit,
		onFlush:   onFlush,
	}
}

// Write buffers p. The flush timer is armed by the first byte of a batch.
func (bp *BatchProcessor) Write(p []byte) (int, error) {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return 0, errBatcherClosed
	}

	if len(bp.buf) == 0 && len(p) > 0 {
		bp.armLocked()
	}
	bp.buf = append(bp.buf, p...)

	if len(bp.buf) >= bp.sizeLimit {
		bp.flushLocked()
	}
	return len(p), nil
}

// Flush hands any buffered data to the callback.
func (bp *BatchProcessor) Flush() {
	bp.mu.Lock()
	defer bp.mu.Unlock()
	bp.flushLocked()
}

// Close flushes and rejects further writes.
func (bp *BatchProcessor) Close() error {
	bp.mu.Lock()
	defer bp.mu.Unlock()

	if bp.closed {
		return nil
	}
	bp.closed = true
	bp.flushLocked()
	return nil
}

func (bp *BatchProcessor) armLocked() {
	if bp.timer == nil {
		bp.timer = time.AfterFunc(bp.timeLimit, bp.Flush)
		return
	}
	bp.timer.Reset(bp.timeLimit)
}

// flushLocked must be called with mu held. The callback runs under the lock so
// chunks arrive in write order.
func (bp *BatchProcessor) flushLocked() {
	if bp.timer != nil {
		bp.timer.Stop()
	}
	if len(bp.buf) == 0 {
		return
	}

	data := bp.buf
	bp.buf = nil
	if bp.onFlush != nil {
		bp.onFlush(data)
	}
}
