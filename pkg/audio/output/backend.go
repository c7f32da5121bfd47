// ABOUTME: Output backend selection
// ABOUTME: Builds sinks by name and lists their devices
package output

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Backend names accepted by New
const (
	BackendOto       = "oto"
	BackendMalgo     = "malgo"
	BackendPulse     = "pulse"
	BackendPortAudio = "portaudio"
	BackendWAV       = "wav"
	BackendNull      = "null"
)

// Options configures backend construction
type Options struct {
	Device  string        // Device or sink name (malgo, pulse); empty = default
	WAVPath string        // Output file for the wav backend
	Paced   bool          // Clocked backends complete buffers in real time
	Latency time.Duration // Device-side buffering hint (oto, pulse)
}

// Backends returns the known backend names
func Backends() []string {
	names := []string{BackendOto, BackendMalgo, BackendPulse, BackendPortAudio, BackendWAV, BackendNull}
	sort.Strings(names)
	return names
}

// New creates the named sink
func New(backend string, opts Options) (Sink, error) {
	switch strings.ToLower(backend) {
	case BackendOto, "":
		return NewOto(opts.Latency), nil
	case BackendMalgo:
		return NewMalgo(opts.Device), nil
	case BackendPulse:
		return NewPulse(opts.Device, opts.Latency), nil
	case BackendPortAudio:
		return NewPortAudio(), nil
	case BackendWAV:
		if opts.WAVPath == "" {
			return nil, fmt.Errorf("wav backend requires an output path")
		}
		return NewWAV(opts.WAVPath, opts.Paced), nil
	case BackendNull:
		return NewNull(opts.Paced), nil
	default:
		return nil, fmt.Errorf("unknown output backend %q (supported: %s)", backend, strings.Join(Backends(), ", "))
	}
}

// ListDevices returns the devices a backend can play to
func ListDevices(backend string, opts Options) ([]Device, error) {
	sink, err := New(backend, opts)
	if err != nil {
		return nil, err
	}
	enum, ok := sink.(Enumerator)
	if !ok {
		return nil, fmt.Errorf("backend %q cannot list devices", backend)
	}
	return enum.Devices()
}
