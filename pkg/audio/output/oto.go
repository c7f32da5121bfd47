// ABOUTME: Oto-based audio output implementation
// ABOUTME: Persistent oto player pulling chunks from the in-flight queue
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process; sinks share it and oto mixes their players
var (
	otoMu    sync.Mutex
	otoCtx   *oto.Context
	otoRate  int
	otoUsers int
)

// Oto output implementation using oto library
type Oto struct {
	queueSink
	player  *oto.Player
	latency time.Duration
	mu      sync.Mutex
}

// NewOto creates a new Oto output. latency sets oto's device buffer; zero keeps oto's default.
func NewOto(latency time.Duration) *Oto {
	return &Oto{latency: latency}
}

// Open initializes the output device
func (o *Oto) Open(format audio.Format, onComplete CompletionFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return fmt.Errorf("%w: oto output already open", ErrOpenFailed)
	}

	q, err := o.open(format, onComplete)
	if err != nil {
		return err
	}

	ctx, err := acquireOtoContext(format, o.latency)
	if err != nil {
		o.queue.Store(nil)
		return err
	}

	// Persistent player that reads from the queue
	o.player = ctx.NewPlayer(queueReader{q})
	o.player.SetBufferSize(format.BytesPerBuffer())
	o.player.Play()

	log.Printf("Audio output initialized: %dHz, %d channel(s), %d-sample chunks (oto)",
		format.SampleRate, format.Channels, format.BufferSamples)

	return nil
}

// Close releases output resources
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	var closeErr error
	if o.player != nil {
		o.player.Pause()
		if err := o.player.Close(); err != nil {
			closeErr = fmt.Errorf("failed to close oto player: %w", err)
		}
		o.player = nil
		releaseOtoContext()
	}
	o.reset()
	return closeErr
}

// Devices lists the single system default device oto plays to
func (o *Oto) Devices() ([]Device, error) {
	return []Device{{ID: "default", Name: "System default output", Default: true}}, nil
}

func acquireOtoContext(format audio.Format, latency time.Duration) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != format.SampleRate {
			return nil, fmt.Errorf("%w: oto context already running at %dHz", ErrOpenFailed, otoRate)
		}
		if otoUsers == 0 {
			if err := otoCtx.Resume(); err != nil {
				return nil, fmt.Errorf("%w: failed to resume oto context: %v", ErrOpenFailed, err)
			}
		}
		otoUsers++
		return otoCtx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   format.SampleRate,
		ChannelCount: format.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   latency,
	}

	ctx, readyChan, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create oto context: %v", ErrNoDevice, err)
	}
	<-readyChan

	otoCtx = ctx
	otoRate = format.SampleRate
	otoUsers = 1
	return ctx, nil
}

func releaseOtoContext() {
	otoMu.Lock()
	defer otoMu.Unlock()

	otoUsers--
	if otoUsers == 0 && otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			log.Printf("Warning: oto suspend error: %v", err)
		}
	}
}

// queueReader adapts Queue to the io.Reader oto players pull from
type queueReader struct {
	q *Queue
}

func (r queueReader) Read(p []byte) (int, error) {
	return r.q.ReadBytes(p), nil
}
