// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Uses miniaudio via malgo with a data callback draining the in-flight queue
package output

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/gen2brain/malgo"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	queueSink
	deviceName string
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	mu         sync.Mutex
}

// NewMalgo creates a new Malgo output. An empty deviceName selects the default device.
func NewMalgo(deviceName string) *Malgo {
	return &Malgo{deviceName: deviceName}
}

// Open initializes the output device with the engine format
func (m *Malgo) Open(format audio.Format, onComplete CompletionFunc) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return fmt.Errorf("%w: malgo output already open", ErrOpenFailed)
	}

	q, err := m.open(format, onComplete)
	if err != nil {
		return err
	}

	if err := m.openDevice(format, q); err != nil {
		m.queue.Store(nil)
		m.freeContext()
		return err
	}

	log.Printf("Audio output initialized: %dHz, %d channel(s), %d-sample chunks (malgo)",
		format.SampleRate, format.Channels, format.BufferSamples)

	return nil
}

// openDevice creates the miniaudio context and device (must hold m.mu)
func (m *Malgo) openDevice(format audio.Format, q *Queue) error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize malgo context: %v", ErrNoDevice, err)
	}
	m.malgoCtx = ctx

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return fmt.Errorf("%w: failed to list playback devices: %v", ErrNoDevice, err)
	}
	if len(infos) == 0 {
		return fmt.Errorf("%w: no playback devices found", ErrNoDevice)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(format.Channels)
	deviceConfig.SampleRate = uint32(format.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(format.BufferSamples)
	deviceConfig.Alsa.NoMMap = 1

	if m.deviceName != "" {
		info, ok := findMalgoDevice(infos, m.deviceName)
		if !ok {
			return fmt.Errorf("%w: playback device %q not found", ErrNoDevice, m.deviceName)
		}
		deviceConfig.Playback.DeviceID = info.ID.Pointer()
	}

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(pOutputSample, pInputSamples []byte, frameCount uint32) {
			n := int(frameCount) * format.Channels * 2
			if n > len(pOutputSample) {
				n = len(pOutputSample)
			}
			q.ReadBytes(pOutputSample[:n])
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		return fmt.Errorf("%w: failed to initialize playback device: %v", ErrOpenFailed, err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("%w: failed to start device: %v", ErrOpenFailed, err)
	}

	m.device = device
	return nil
}

// Close releases output resources
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
	m.reset()
	m.freeContext()
	return nil
}

// freeContext releases the miniaudio context (must hold m.mu)
func (m *Malgo) freeContext() {
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// Devices lists miniaudio playback devices
func (m *Malgo) Devices() ([]Device, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to initialize malgo context: %v", ErrNoDevice, err)
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Playback)
	if err != nil {
		return nil, fmt.Errorf("failed to list playback devices: %w", err)
	}

	devices := make([]Device, 0, len(infos))
	for _, info := range infos {
		devices = append(devices, Device{
			ID:      info.ID.String(),
			Name:    info.Name(),
			Default: info.IsDefault != 0,
		})
	}
	return devices, nil
}

func findMalgoDevice(infos []malgo.DeviceInfo, name string) (malgo.DeviceInfo, bool) {
	for _, info := range infos {
		if strings.EqualFold(info.Name(), name) || info.ID.String() == name {
			return info, true
		}
	}
	return malgo.DeviceInfo{}, false
}
