package process

import (
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default capacity for a stream's ring buffer.
const DefaultBufferSize = 256 * 1024

// RingBuffer is a thread-safe circular buffer used for fast in-memory tail
// access to a child's stdout/stderr, independent of the persisted log
// stream the supervisor writes line-by-line to the state store.
type RingBuffer struct {
	buffer   []byte
	capacity int

	writePos     atomic.Int64
	totalWritten atomic.Int64
	overflowed   atomic.Bool

	mu sync.Mutex
}

// NewRingBuffer creates a ring buffer with the given capacity, defaulting to
// DefaultBufferSize when capacity <= 0.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = DefaultBufferSize
	}
	return &RingBuffer{buffer: make([]byte, capacity), capacity: capacity}
}

// Write implements io.Writer. It never fails.
func (rb *RingBuffer) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rb.mu.Lock()
	defer rb.mu.Unlock()

	n := len(p)
	if n > rb.capacity {
		p = p[n-rb.capacity:]
		rb.overflowed.Store(true)
	}

	pos := int(rb.writePos.Load()) % rb.capacity
	if int(rb.totalWritten.Load())+len(p) > rb.capacity {
		rb.overflowed.Store(true)
	}

	written := len(p)
	firstPart := rb.capacity - pos
	if firstPart >= written {
		copy(rb.buffer[pos:], p)
	} else {
		copy(rb.buffer[pos:], p[:firstPart])
		copy(rb.buffer[0:], p[firstPart:])
	}

	rb.writePos.Add(int64(written))
	rb.totalWritten.Add(int64(written))

	return n, nil
}

// Overflowed reports whether this stream has ever written past capacity,
// i.e. whether the in-memory tail has lost its earliest bytes. The persisted
// log stream is unaffected; pumpOutput checks this once per line to surface
// a single truncation notice through add_log, since the ring buffer itself
// has no path to the log store.
func (rb *RingBuffer) Overflowed() bool {
	return rb.overflowed.Load()
}

// Snapshot returns a copy of the buffer's contents in chronological order
// and whether data has been lost to overflow.
func (rb *RingBuffer) Snapshot() (data []byte, truncated bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	total := rb.totalWritten.Load()
	if total == 0 {
		return nil, false
	}

	truncated = rb.overflowed.Load()

	if total <= int64(rb.capacity) {
		result := make([]byte, total)
		copy(result, rb.buffer[:total])
		return result, truncated
	}

	result := make([]byte, rb.capacity)
	pos := int(rb.writePos.Load()) % rb.capacity
	oldestLen := rb.capacity - pos
	copy(result[:oldestLen], rb.buffer[pos:])
	copy(result[oldestLen:], rb.buffer[:pos])

	return result, true
}
