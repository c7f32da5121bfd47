//go:build !portaudio

// ABOUTME: PortAudio stub when library not available
// ABOUTME: Provides compile-time placeholder when PortAudio not installed
package output

import (
	"fmt"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

var errPortAudioDisabled = fmt.Errorf("%w: PortAudio support not enabled (build with -tags portaudio)", ErrNoDevice)

// PortAudio output implementation (stub)
type PortAudio struct{}

// NewPortAudio creates a new PortAudio output
func NewPortAudio() Sink {
	return &PortAudio{}
}

// Open initializes PortAudio
func (p *PortAudio) Open(format audio.Format, onComplete CompletionFunc) error {
	return errPortAudioDisabled
}

func (p *PortAudio) Prepare(buf *audio.Buffer) error   { return ErrNotOpen }
func (p *PortAudio) Unprepare(buf *audio.Buffer) error { return ErrNotOpen }
func (p *PortAudio) Submit(buf *audio.Buffer) error    { return ErrNotOpen }

// Close releases resources
func (p *PortAudio) Close() error {
	return nil
}

// Devices lists PortAudio devices
func (p *PortAudio) Devices() ([]Device, error) {
	return nil, errPortAudioDisabled
}
