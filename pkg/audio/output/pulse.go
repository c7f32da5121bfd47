// ABOUTME: PulseAudio output implementation
// ABOUTME: Native-protocol pulse client pulling int16 chunks from the in-flight queue
package output

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/jfreymuth/pulse"
)

// Pulse output implementation talking to a PulseAudio/PipeWire server
type Pulse struct {
	queueSink
	sinkName string
	latency  time.Duration
	client   *pulse.Client
	stream   *pulse.PlaybackStream
	mu       sync.Mutex
}

// NewPulse creates a pulse output. An empty sinkName plays to the server default.
func NewPulse(sinkName string, latency time.Duration) *Pulse {
	return &Pulse{sinkName: sinkName, latency: latency}
}

// Open connects to the server and starts a mono playback stream
func (p *Pulse) Open(format audio.Format, onComplete CompletionFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("%w: pulse output already open", ErrOpenFailed)
	}

	q, err := p.open(format, onComplete)
	if err != nil {
		return err
	}

	client, err := pulse.NewClient(pulse.ClientApplicationName("tonestream"))
	if err != nil {
		p.queue.Store(nil)
		return fmt.Errorf("%w: failed to connect to pulse server: %v", ErrNoDevice, err)
	}

	opts := []pulse.PlaybackOption{
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(format.SampleRate),
	}
	if p.latency > 0 {
		opts = append(opts, pulse.PlaybackLatency(p.latency.Seconds()))
	}

	if p.sinkName != "" {
		sink, err := client.SinkByID(p.sinkName)
		if err != nil {
			client.Close()
			p.queue.Store(nil)
			return fmt.Errorf("%w: pulse sink %q: %v", ErrNoDevice, p.sinkName, err)
		}
		opts = append(opts, pulse.PlaybackSink(sink))
	}

	reader := pulse.Int16Reader(func(out []int16) (int, error) {
		return q.Read(out), nil
	})

	stream, err := client.NewPlayback(reader, opts...)
	if err != nil {
		client.Close()
		p.queue.Store(nil)
		return fmt.Errorf("%w: failed to create playback stream: %v", ErrOpenFailed, err)
	}

	stream.Start()

	p.client = client
	p.stream = stream

	log.Printf("Audio output initialized: %dHz, %d channel(s), %d-sample chunks (pulse)",
		format.SampleRate, format.Channels, format.BufferSamples)

	return nil
}

// Close stops the stream and disconnects from the server
func (p *Pulse) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var closeErr error
	if p.stream != nil {
		p.stream.Stop()
		if err := p.stream.Error(); err != nil {
			closeErr = fmt.Errorf("pulse stream error: %w", err)
		}
		p.stream.Close()
		p.stream = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
	p.reset()
	return closeErr
}

// Devices lists the server's sinks
func (p *Pulse) Devices() ([]Device, error) {
	client, err := pulse.NewClient(pulse.ClientApplicationName("tonestream"))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to connect to pulse server: %v", ErrNoDevice, err)
	}
	defer client.Close()

	sinks, err := client.ListSinks()
	if err != nil {
		return nil, fmt.Errorf("failed to list pulse sinks: %w", err)
	}

	var defaultID string
	if def, err := client.DefaultSink(); err == nil {
		defaultID = def.ID()
	}

	devices := make([]Device, 0, len(sinks))
	for _, s := range sinks {
		devices = append(devices, Device{
			ID:      s.ID(),
			Name:    s.Name(),
			Default: s.ID() == defaultID,
		})
	}
	return devices, nil
}
