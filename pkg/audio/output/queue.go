// ABOUTME: FIFO of in-flight buffers drained by pull-style device callbacks
// ABOUTME: Fires buffer completions once a chunk has been fully consumed
package output

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// Queue holds submitted buffers in order until a device callback has read them.
// Backends whose driver asks for samples (malgo, pulse, portaudio, oto) read
// from it; the engine side pushes whole chunks.
type Queue struct {
	mu      sync.Mutex
	pending []*audio.Buffer
	offset  int // Samples already read from pending[0]
	started bool

	onComplete CompletionFunc

	underruns atomic.Uint64
	completed atomic.Uint64
}

// NewQueue creates a queue that reports finished buffers to onComplete
func NewQueue(onComplete CompletionFunc) *Queue {
	return &Queue{
		onComplete: onComplete,
	}
}

// Push appends a buffer for playback
func (q *Queue) Push(buf *audio.Buffer) {
	q.mu.Lock()
	q.pending = append(q.pending, buf)
	q.started = true
	q.mu.Unlock()
}

// Contains reports whether buf is still waiting to be played
func (q *Queue) Contains(buf *audio.Buffer) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, p := range q.pending {
		if p == buf {
			return true
		}
	}
	return false
}

// Len returns the number of buffers not yet fully consumed
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Read fills dst with queued samples, zero-filling on underrun. It always
// returns len(dst) so a driver never stalls.
func (q *Queue) Read(dst []int16) int {
	var doneBuf [16]int
	done := doneBuf[:0]

	q.mu.Lock()
	n := 0
	for n < len(dst) && len(q.pending) > 0 {
		head := q.pending[0]
		c := copy(dst[n:], head.Samples[q.offset:])
		n += c
		q.offset += c

		if q.offset >= len(head.Samples) {
			q.pending[0] = nil
			q.pending = q.pending[1:]
			q.offset = 0
			done = append(done, head.ID)
		}
	}
	starved := n < len(dst) && q.started
	q.mu.Unlock()

	// Zero-fill remaining if underrun
	for i := n; i < len(dst); i++ {
		dst[i] = 0
	}
	if starved {
		q.underruns.Add(1)
	}

	q.complete(done)
	return len(dst)
}

// ReadBytes is Read for drivers that want little-endian 16-bit bytes
func (q *Queue) ReadBytes(p []byte) int {
	var scratch [1024]int16

	written := 0
	for written+1 < len(p) {
		n := (len(p) - written) / 2
		if n > len(scratch) {
			n = len(scratch)
		}
		q.Read(scratch[:n])
		written += audio.PutSamplesLE(p[written:], scratch[:n])
	}
	return written
}

// Reset drops every queued buffer and completes it, as a device reset does
func (q *Queue) Reset() {
	q.mu.Lock()
	done := make([]int, 0, len(q.pending))
	for _, buf := range q.pending {
		done = append(done, buf.ID)
	}
	q.pending = nil
	q.offset = 0
	q.started = false
	q.mu.Unlock()

	q.complete(done)
}

// Underruns returns how many reads found the queue empty after playback began
func (q *Queue) Underruns() uint64 {
	return q.underruns.Load()
}

// Completed returns the number of buffers completed so far
func (q *Queue) Completed() uint64 {
	return q.completed.Load()
}

func (q *Queue) complete(ids []int) {
	for _, id := range ids {
		q.completed.Add(1)
		if q.onComplete != nil {
			q.onComplete(id)
		}
	}
}

// queueSink implements the buffer half of Sink for queue-backed devices
type queueSink struct {
	format audio.Format
	queue  atomic.Pointer[Queue]
}

func (s *queueSink) open(format audio.Format, onComplete CompletionFunc) (*Queue, error) {
	if err := format.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	s.format = format
	q := NewQueue(onComplete)
	s.queue.Store(q)
	return q, nil
}

func (s *queueSink) Prepare(buf *audio.Buffer) error {
	if s.queue.Load() == nil {
		return ErrNotOpen
	}
	if len(buf.Samples) != s.format.BufferSamples {
		return fmt.Errorf("buffer %d has %d samples, device expects %d",
			buf.ID, len(buf.Samples), s.format.BufferSamples)
	}
	buf.Prepared = true
	return nil
}

func (s *queueSink) Unprepare(buf *audio.Buffer) error {
	q := s.queue.Load()
	if q == nil {
		return ErrNotOpen
	}
	if q.Contains(buf) {
		return fmt.Errorf("%w: buffer %d", ErrStillPlaying, buf.ID)
	}
	buf.Prepared = false
	return nil
}

func (s *queueSink) Submit(buf *audio.Buffer) error {
	q := s.queue.Load()
	if q == nil {
		return ErrNotOpen
	}
	if !buf.Prepared {
		return fmt.Errorf("%w: buffer %d", ErrNotPrepared, buf.ID)
	}
	q.Push(buf)
	return nil
}

// reset completes everything still queued and detaches the queue
func (s *queueSink) reset() {
	if q := s.queue.Swap(nil); q != nil {
		q.Reset()
	}
}

// Underruns returns the device starvation count, or 0 when closed
func (s *queueSink) Underruns() uint64 {
	if q := s.queue.Load(); q != nil {
		return q.Underruns()
	}
	return 0
}
