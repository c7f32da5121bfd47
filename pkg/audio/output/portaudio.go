//go:build portaudio

// ABOUTME: PortAudio output implementation
// ABOUTME: Cross-platform audio output using a PortAudio stream callback
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/gordonklaus/portaudio"
)

// PortAudio output implementation
type PortAudio struct {
	queueSink
	stream *portaudio.Stream
	mu     sync.Mutex
}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Sink {
	return &PortAudio{}
}

// Open initializes PortAudio and starts a mono int16 stream
func (p *PortAudio) Open(format audio.Format, onComplete CompletionFunc) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return fmt.Errorf("%w: portaudio output already open", ErrOpenFailed)
	}

	q, err := p.open(format, onComplete)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		p.queue.Store(nil)
		return fmt.Errorf("%w: failed to initialize portaudio: %v", ErrNoDevice, err)
	}

	stream, err := portaudio.OpenDefaultStream(0, format.Channels, float64(format.SampleRate), format.BufferSamples,
		func(out []int16) {
			q.Read(out)
		})
	if err != nil {
		portaudio.Terminate()
		p.queue.Store(nil)
		return fmt.Errorf("%w: failed to open stream: %v", ErrOpenFailed, err)
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		p.queue.Store(nil)
		return fmt.Errorf("%w: failed to start stream: %v", ErrOpenFailed, err)
	}

	p.stream = stream
	return nil
}

// Close releases resources
func (p *PortAudio) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		p.reset()
		return nil
	}

	stopErr := p.stream.Stop()
	closeErr := p.stream.Close()
	p.stream = nil
	p.reset()

	if err := portaudio.Terminate(); err != nil {
		return err
	}
	if stopErr != nil {
		return stopErr
	}
	return closeErr
}

// Devices lists PortAudio devices with output channels
func (p *PortAudio) Devices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("%w: failed to initialize portaudio: %v", ErrNoDevice, err)
	}
	defer portaudio.Terminate()

	infos, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	var defaultName string
	if def, err := portaudio.DefaultOutputDevice(); err == nil {
		defaultName = def.Name
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxOutputChannels == 0 {
			continue
		}
		devices = append(devices, Device{
			ID:      fmt.Sprintf("%d", i),
			Name:    info.Name,
			Default: info.Name == defaultName,
		})
	}
	return devices, nil
}
