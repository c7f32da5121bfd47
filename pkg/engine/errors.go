// ABOUTME: Engine error taxonomy
// ABOUTME: Start-time device errors and fatal run-time buffer errors
package engine

import (
	"errors"

	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

var (
	// Start-time errors, returned synchronously by Start
	ErrNoDevice   = output.ErrNoDevice
	ErrOpenFailed = output.ErrOpenFailed

	// Run-time errors; each moves the engine to Faulted
	ErrPrepareFailed   = errors.New("buffer prepare failed")
	ErrUnprepareFailed = errors.New("buffer unprepare failed")
	ErrSinkRejected    = errors.New("sink rejected buffer")

	// Caller errors; the playback state is left unchanged
	ErrCapacityExceeded = synth.ErrCapacityExceeded

	// ErrPoolClosed is returned by Acquire once the pool has been shut down
	ErrPoolClosed = errors.New("buffer pool closed")

	// ErrInvalidState is returned for lifecycle calls in the wrong state
	ErrInvalidState = errors.New("invalid engine state")
)

// IsFatal reports whether err stops a running engine
func IsFatal(err error) bool {
	return errors.Is(err, ErrPrepareFailed) ||
		errors.Is(err, ErrUnprepareFailed) ||
		errors.Is(err, ErrSinkRejected)
}
