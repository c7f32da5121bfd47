// ABOUTME: Headless clocked output for running without a sound card
// ABOUTME: Completes buffers at real-time pace and optionally forwards the samples
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

// DefaultQueueDepth bounds how many buffers a clocked sink holds in flight
const DefaultQueueDepth = 64

// SampleWriter receives every chunk a clocked sink plays
type SampleWriter func(samples []int16) error

// Clocked is a software device. A worker goroutine takes submitted buffers
// in order, waits one buffer duration when paced, hands the samples to the
// writer and fires the completion.
type Clocked struct {
	name   string
	paced  bool
	depth  int
	writer SampleWriter
	closer func() error

	mu         sync.Mutex
	format     audio.Format
	onComplete CompletionFunc
	pending    chan *audio.Buffer
	inFlight   map[*audio.Buffer]struct{}
	writeErr   error
	done       chan struct{}
	wg         sync.WaitGroup
	open       bool
}

// NewNull creates a clocked sink that discards audio
func NewNull(paced bool) *Clocked {
	return NewClocked("null", paced, nil, nil)
}

// NewClocked creates a clocked sink. writer and closer may be nil.
func NewClocked(name string, paced bool, writer SampleWriter, closer func() error) *Clocked {
	return &Clocked{
		name:   name,
		paced:  paced,
		depth:  DefaultQueueDepth,
		writer: writer,
		closer: closer,
	}
}

// Open starts the worker goroutine
func (c *Clocked) Open(format audio.Format, onComplete CompletionFunc) error {
	if err := format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.open {
		return fmt.Errorf("%w: %s output already open", ErrOpenFailed, c.name)
	}

	c.format = format
	c.onComplete = onComplete
	c.pending = make(chan *audio.Buffer, c.depth)
	c.inFlight = make(map[*audio.Buffer]struct{})
	c.writeErr = nil
	c.done = make(chan struct{})
	c.open = true

	c.wg.Add(1)
	go c.run(c.pending, c.done)

	log.Printf("Audio output initialized: %dHz, %d channel(s), %d-sample chunks (%s, paced=%v)",
		format.SampleRate, format.Channels, format.BufferSamples, c.name, c.paced)

	return nil
}

func (c *Clocked) Prepare(buf *audio.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotOpen
	}
	if len(buf.Samples) != c.format.BufferSamples {
		return fmt.Errorf("buffer %d has %d samples, device expects %d",
			buf.ID, len(buf.Samples), c.format.BufferSamples)
	}
	buf.Prepared = true
	return nil
}

func (c *Clocked) Unprepare(buf *audio.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotOpen
	}
	if _, playing := c.inFlight[buf]; playing {
		return fmt.Errorf("%w: buffer %d", ErrStillPlaying, buf.ID)
	}
	buf.Prepared = false
	return nil
}

// Submit queues a prepared buffer. A failed write of an earlier buffer is reported here.
func (c *Clocked) Submit(buf *audio.Buffer) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.open {
		return ErrNotOpen
	}
	if c.writeErr != nil {
		return c.writeErr
	}
	if !buf.Prepared {
		return fmt.Errorf("%w: buffer %d", ErrNotPrepared, buf.ID)
	}

	select {
	case c.pending <- buf:
		c.inFlight[buf] = struct{}{}
		return nil
	default:
		return fmt.Errorf("%w: %d buffers in flight", ErrQueueFull, len(c.pending))
	}
}

// Close stops the worker after completing every queued buffer
func (c *Clocked) Close() error {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil
	}
	c.open = false
	close(c.done)
	c.mu.Unlock()

	c.wg.Wait()

	if c.closer != nil {
		if err := c.closer(); err != nil {
			return fmt.Errorf("failed to close %s output: %w", c.name, err)
		}
	}
	return nil
}

// Devices lists the single software device
func (c *Clocked) Devices() ([]Device, error) {
	return []Device{{ID: c.name, Name: fmt.Sprintf("%s (software)", c.name), Default: true}}, nil
}

func (c *Clocked) run(pending <-chan *audio.Buffer, done <-chan struct{}) {
	defer c.wg.Done()

	var ticker *time.Ticker
	if c.paced {
		ticker = time.NewTicker(c.format.BufferDuration())
		defer ticker.Stop()
	}

	for {
		select {
		case buf := <-pending:
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-done:
					c.finish(buf)
					c.drain(pending)
					return
				}
			}
			c.play(buf)
		case <-done:
			c.drain(pending)
			return
		}
	}
}

// play writes one buffer and completes it
func (c *Clocked) play(buf *audio.Buffer) {
	if c.writer != nil {
		if err := c.writer(buf.Samples); err != nil {
			log.Printf("Error writing to %s output: %v", c.name, err)
			c.mu.Lock()
			if c.writeErr == nil {
				c.writeErr = fmt.Errorf("%s write failed: %w", c.name, err)
			}
			c.mu.Unlock()
		}
	}
	c.finish(buf)
}

// drain completes everything still queued without playing it
func (c *Clocked) drain(pending <-chan *audio.Buffer) {
	for {
		select {
		case buf := <-pending:
			c.finish(buf)
		default:
			return
		}
	}
}

func (c *Clocked) finish(buf *audio.Buffer) {
	c.mu.Lock()
	delete(c.inFlight, buf)
	onComplete := c.onComplete
	c.mu.Unlock()

	if onComplete != nil {
		onComplete(buf.ID)
	}
}
