// ABOUTME: Audio type definitions
// ABOUTME: Defines the fixed stream format, PCM chunks and sample conversion
package audio

import (
	"fmt"
	"math"
	"time"
)

const (
	// Fixed stream format
	SampleRate = 44100
	Channels   = 1
	BitDepth   = 16

	// Chunk geometry
	DefaultBufferSamples = 256
	LargeBufferSamples   = 512
	DefaultBufferCount   = 8

	// 16-bit full scale
	MaxSample = math.MaxInt16 // 32767
	MinSample = math.MinInt16 // -32768
)

// Format describes the PCM stream handed to a sink
type Format struct {
	SampleRate    int
	Channels      int
	BitDepth      int
	BufferSamples int // samples per chunk
}

// DefaultFormat returns the engine's fixed format with the given chunk size
func DefaultFormat(bufferSamples int) Format {
	if bufferSamples == 0 {
		bufferSamples = DefaultBufferSamples
	}
	return Format{
		SampleRate:    SampleRate,
		Channels:      Channels,
		BitDepth:      BitDepth,
		BufferSamples: bufferSamples,
	}
}

// Validate rejects anything other than 44.1kHz mono 16-bit with a supported chunk size
func (f Format) Validate() error {
	if f.SampleRate != SampleRate {
		return fmt.Errorf("unsupported sample rate: %d (only %d)", f.SampleRate, SampleRate)
	}
	if f.Channels != Channels {
		return fmt.Errorf("unsupported channel count: %d (mono only)", f.Channels)
	}
	if f.BitDepth != BitDepth {
		return fmt.Errorf("unsupported bit depth: %d (16-bit only)", f.BitDepth)
	}
	if f.BufferSamples != DefaultBufferSamples && f.BufferSamples != LargeBufferSamples {
		return fmt.Errorf("unsupported buffer size: %d samples (supported: %d, %d)",
			f.BufferSamples, DefaultBufferSamples, LargeBufferSamples)
	}
	return nil
}

// BufferDuration returns how long one chunk takes to play
func (f Format) BufferDuration() time.Duration {
	return time.Duration(f.BufferSamples) * time.Second / time.Duration(f.SampleRate)
}

// BytesPerBuffer returns the size of one chunk in bytes
func (f Format) BytesPerBuffer() int {
	return f.BufferSamples * f.Channels * (f.BitDepth / 8)
}

// Buffer is one fixed-length chunk of 16-bit PCM
type Buffer struct {
	ID      int     // Position in the pool ring
	Samples []int16 // PCM samples, mono

	// Prepared is set by a sink while the chunk is associated with
	// device-side transfer state and cleared again by Unprepare.
	Prepared bool
}

// NewBuffer allocates a zeroed chunk
func NewBuffer(id, samples int) *Buffer {
	return &Buffer{
		ID:      id,
		Samples: make([]int16, samples),
	}
}

// FloatToSample converts an amplitude in [-1,1] to 16-bit PCM, clamping overshoot
func FloatToSample(v float64) int16 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * MaxSample)
}

// SampleToFloat converts 16-bit PCM back to an amplitude in [-1,1]
func SampleToFloat(s int16) float64 {
	if s == MinSample {
		return -1
	}
	return float64(s) / MaxSample
}

// PutSamplesLE writes samples as little-endian bytes into dst and returns the byte count
func PutSamplesLE(dst []byte, samples []int16) int {
	n := len(samples)
	if len(dst)/2 < n {
		n = len(dst) / 2
	}
	for i := 0; i < n; i++ {
		dst[i*2] = byte(samples[i])
		dst[i*2+1] = byte(uint16(samples[i]) >> 8)
	}
	return n * 2
}
