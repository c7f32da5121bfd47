// ABOUTME: WAV file output
// ABOUTME: Records the engine stream to a 16-bit mono wave file
package output

import (
	"fmt"
	"sync"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/arl/blip/wave"
)

// WAV records every played chunk to a wave file through a clocked device
type WAV struct {
	*Clocked
	path   string
	mu     sync.Mutex
	writer *wave.Writer
}

// NewWAV creates a recorder for path. Unpaced recording renders as fast as the engine can.
func NewWAV(path string, paced bool) *WAV {
	w := &WAV{path: path}
	w.Clocked = NewClocked("wav", paced, w.write, w.finalize)
	return w
}

// Open creates the file and starts the device clock
func (w *WAV) Open(format audio.Format, onComplete CompletionFunc) error {
	if w.path == "" {
		return fmt.Errorf("%w: no wav output path", ErrOpenFailed)
	}

	w.mu.Lock()
	if w.writer != nil {
		w.mu.Unlock()
		return fmt.Errorf("%w: wav output already open", ErrOpenFailed)
	}
	writer, err := wave.NewFile(w.path, format.SampleRate)
	if err != nil {
		w.mu.Unlock()
		return fmt.Errorf("%w: failed to create %s: %v", ErrOpenFailed, w.path, err)
	}
	w.writer = writer
	w.mu.Unlock()

	if err := w.Clocked.Open(format, onComplete); err != nil {
		_ = w.finalize()
		return err
	}
	return nil
}

// SampleCount returns how many samples have been recorded so far
func (w *WAV) SampleCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.writer == nil {
		return 0
	}
	return w.writer.SampleCount()
}

func (w *WAV) write(samples []int16) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return ErrNotOpen
	}
	_, err := w.writer.Write(samples)
	return err
}

// finalize writes the wave header and closes the file
func (w *WAV) finalize() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer == nil {
		return nil
	}
	err := w.writer.Close()
	w.writer = nil
	return err
}
