// ABOUTME: Audio output sink contract
// ABOUTME: Chunked submit/complete interface shared by every playback backend
package output

import (
	"errors"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
)

var (
	// ErrNoDevice means no playback device or audio server is available
	ErrNoDevice = errors.New("no audio output device")

	// ErrOpenFailed means a device exists but rejected the requested format
	ErrOpenFailed = errors.New("audio output open failed")

	// ErrNotOpen is returned by buffer operations on a closed sink
	ErrNotOpen = errors.New("audio output not open")

	// ErrStillPlaying is returned when unpreparing a buffer the device still owns
	ErrStillPlaying = errors.New("buffer still playing")

	// ErrNotPrepared is returned when submitting a buffer that was never prepared
	ErrNotPrepared = errors.New("buffer not prepared")

	// ErrQueueFull is returned when more buffers are submitted than the sink can hold
	ErrQueueFull = errors.New("output queue full")
)

// CompletionFunc is invoked exactly once per submitted buffer when the
// device has finished with it. It may run on any goroutine, including a
// driver callback, and must return quickly.
type CompletionFunc func(bufferID int)

// Sink is a chunked audio output device
type Sink interface {
	// Open acquires the device for the given format. Completions for every
	// buffer submitted afterwards are delivered to onComplete.
	Open(format audio.Format, onComplete CompletionFunc) error

	// Prepare associates a filled buffer with device transfer state
	Prepare(buf *audio.Buffer) error

	// Unprepare releases a completed buffer's device transfer state before reuse
	Unprepare(buf *audio.Buffer) error

	// Submit hands a prepared buffer to the device for asynchronous playback.
	// The sink borrows buf.Samples until the completion fires.
	Submit(buf *audio.Buffer) error

	// Close stops playback, completes any buffers still queued and releases the device
	Close() error
}

// Device describes a playback device for listings
type Device struct {
	ID      string
	Name    string
	Default bool
}

// Enumerator is implemented by sinks that can list their devices
type Enumerator interface {
	Devices() ([]Device, error)
}
