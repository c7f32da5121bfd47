// ABOUTME: Fixed ring of PCM buffers shared with the output sink
// ABOUTME: Free-count and condition variable provide backpressure against the device
package engine

import (
	"fmt"
	"log"
	"sync"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
)

// BufferState tracks where a pool buffer is in its cycle
type BufferState int

const (
	BufferFree BufferState = iota
	BufferFilling
	BufferFilled
	BufferInFlight
)

func (s BufferState) String() string {
	switch s {
	case BufferFree:
		return "free"
	case BufferFilling:
		return "filling"
	case BufferFilled:
		return "filled"
	case BufferInFlight:
		return "in-flight"
	default:
		return fmt.Sprintf("BufferState(%d)", int(s))
	}
}

// PoolStats is a consistent view of the ring
type PoolStats struct {
	Size      int
	Free      int // free count, 0..Size
	Filling   int
	Filled    int
	InFlight  int
	Cursor    int
	Submitted uint64
	Completed uint64
	Spurious  uint64 // completions for buffers that were not in flight
}

// Pool is a ring of fixed-size buffers. The generation goroutine fills them in
// ring order; the sink's completion callback hands them back through Release.
type Pool struct {
	sink    output.Sink
	buffers []*audio.Buffer

	mu     sync.Mutex
	cond   *sync.Cond
	states []BufferState
	free   int
	cursor int
	closed bool

	submitted uint64
	completed uint64
	spurious  uint64
}

// NewPool allocates count buffers of samples each, all free
func NewPool(sink output.Sink, count, samples int) *Pool {
	p := &Pool{
		sink:    sink,
		buffers: make([]*audio.Buffer, count),
		states:  make([]BufferState, count),
		free:    count,
	}
	p.cond = sync.NewCond(&p.mu)

	for i := range p.buffers {
		p.buffers[i] = audio.NewBuffer(i, samples)
	}
	return p
}

// Size returns the ring depth
func (p *Pool) Size() int {
	return len(p.buffers)
}

// Acquire returns the buffer at the cursor, waiting until the device has
// released it. It returns ErrPoolClosed once Close has been called.
func (p *Pool) Acquire() (*audio.Buffer, error) {
	p.mu.Lock()
	for !p.closed && p.states[p.cursor] != BufferFree {
		p.cond.Wait()
	}
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}

	buf := p.buffers[p.cursor]
	p.states[buf.ID] = BufferFilling
	p.free--
	p.mu.Unlock()

	// A buffer coming back from the device still carries its old association
	if buf.Prepared {
		if err := p.sink.Unprepare(buf); err != nil {
			return nil, fmt.Errorf("%w: buffer %d: %v", ErrUnprepareFailed, buf.ID, err)
		}
	}

	return buf, nil
}

// Submit prepares a filled buffer and hands it to the sink, then advances the cursor
func (p *Pool) Submit(buf *audio.Buffer) error {
	p.mu.Lock()
	if p.states[buf.ID] != BufferFilling {
		state := p.states[buf.ID]
		p.mu.Unlock()
		return fmt.Errorf("%w: buffer %d is %v", ErrSinkRejected, buf.ID, state)
	}
	p.states[buf.ID] = BufferFilled
	p.mu.Unlock()

	if err := p.sink.Prepare(buf); err != nil {
		return fmt.Errorf("%w: buffer %d: %v", ErrPrepareFailed, buf.ID, err)
	}

	// In flight before the sink sees it: the completion may fire before Submit returns
	p.mu.Lock()
	p.states[buf.ID] = BufferInFlight
	p.mu.Unlock()

	if err := p.sink.Submit(buf); err != nil {
		p.mu.Lock()
		if p.states[buf.ID] == BufferInFlight {
			p.states[buf.ID] = BufferFilled
		}
		p.mu.Unlock()
		return fmt.Errorf("%w: buffer %d: %v", ErrSinkRejected, buf.ID, err)
	}

	p.mu.Lock()
	p.submitted++
	p.cursor = (p.cursor + 1) % len(p.buffers)
	p.mu.Unlock()
	return nil
}

// Release is the sink completion callback. It marks the buffer free and wakes one waiter.
func (p *Pool) Release(id int) {
	p.mu.Lock()
	if id < 0 || id >= len(p.states) || p.states[id] != BufferInFlight {
		p.spurious++
		p.mu.Unlock()
		log.Printf("Warning: completion for buffer %d which is not in flight", id)
		return
	}
	p.states[id] = BufferFree
	p.free++
	p.completed++
	p.cond.Signal()
	p.mu.Unlock()
}

// Close wakes a blocked Acquire and makes every later Acquire fail
func (p *Pool) Close() {
	p.mu.Lock()
	p.closed = true
	p.cond.Broadcast()
	p.mu.Unlock()
}

// Stats returns a snapshot of the ring
func (p *Pool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := PoolStats{
		Size:      len(p.buffers),
		Free:      p.free,
		Cursor:    p.cursor,
		Submitted: p.submitted,
		Completed: p.completed,
		Spurious:  p.spurious,
	}
	for _, s := range p.states {
		switch s {
		case BufferFilling:
			stats.Filling++
		case BufferFilled:
			stats.Filled++
		case BufferInFlight:
			stats.InFlight++
		}
	}
	return stats
}

// State returns the state of buffer id
func (p *Pool) State(id int) BufferState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.states[id]
}
