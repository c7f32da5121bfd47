// ABOUTME: Hand-driven output sink for engine and pool tests
// ABOUTME: Records submitted chunks and completes buffers only when told to
package engine

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
)

var errInjected = errors.New("injected failure")

// manualSink behaves like a device whose completions are driven by the test
type manualSink struct {
	mu         sync.Mutex
	onComplete output.CompletionFunc
	format     audio.Format
	open       bool
	queue      []*audio.Buffer
	chunks     [][]int16
	maxQueued  int
	accepted   int
	opens      int
	closes     int

	openErr      error
	prepareErr   error
	unprepareErr error
	rejectAfter  int // Submit fails once this many buffers were accepted; 0 never
}

func (s *manualSink) Open(format audio.Format, onComplete output.CompletionFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.format = format
	s.onComplete = onComplete
	s.open = true
	s.queue = nil
	s.chunks = nil
	s.accepted = 0
	s.opens++
	return nil
}

func (s *manualSink) Prepare(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prepareErr != nil {
		return s.prepareErr
	}
	buf.Prepared = true
	return nil
}

func (s *manualSink) Unprepare(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unprepareErr != nil {
		return s.unprepareErr
	}
	for _, q := range s.queue {
		if q == buf {
			return output.ErrStillPlaying
		}
	}
	buf.Prepared = false
	return nil
}

func (s *manualSink) Submit(buf *audio.Buffer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return output.ErrNotOpen
	}
	if !buf.Prepared {
		return output.ErrNotPrepared
	}
	if s.rejectAfter > 0 && s.accepted >= s.rejectAfter {
		return errInjected
	}
	s.accepted++
	s.queue = append(s.queue, buf)
	if len(s.queue) > s.maxQueued {
		s.maxQueued = len(s.queue)
	}
	chunk := make([]int16, len(buf.Samples))
	copy(chunk, buf.Samples)
	s.chunks = append(s.chunks, chunk)
	return nil
}

func (s *manualSink) Close() error {
	s.mu.Lock()
	s.open = false
	s.closes++
	s.mu.Unlock()
	s.Complete(-1)
	return nil
}

// Complete finishes the n oldest queued buffers (all of them if n < 0) in order
func (s *manualSink) Complete(n int) int {
	s.mu.Lock()
	if n < 0 || n > len(s.queue) {
		n = len(s.queue)
	}
	done := make([]*audio.Buffer, n)
	copy(done, s.queue[:n])
	s.queue = s.queue[n:]
	cb := s.onComplete
	s.mu.Unlock()

	if cb == nil {
		return 0
	}
	for _, buf := range done {
		cb(buf.ID)
	}
	return n
}

func (s *manualSink) set(fn func(s *manualSink)) {
	s.mu.Lock()
	fn(s)
	s.mu.Unlock()
}

func (s *manualSink) submitted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func (s *manualSink) queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *manualSink) chunk(i int) []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chunks[i]
}

// stream concatenates every submitted chunk
func (s *manualSink) stream() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int16
	for _, c := range s.chunks {
		out = append(out, c...)
	}
	return out
}

// waitSubmitted waits until at least n chunks were submitted
func waitSubmitted(t *testing.T, s *manualSink, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for s.submitted() < n {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d submitted buffers, got %d", n, s.submitted())
		}
		time.Sleep(time.Millisecond)
	}
}

// waitFor polls cond until it holds
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}
