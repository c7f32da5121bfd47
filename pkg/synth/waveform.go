// ABOUTME: Waveform synthesis for the tone engine
// ABOUTME: Evaluates sine, square and triangle tones and mixes them additively
package synth

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Waveform selects the periodic function used for every active tone
type Waveform int32

const (
	Sine Waveform = iota
	Square
	Triangle
)

// ErrInvalidWaveform is returned for waveform values outside the closed set
var ErrInvalidWaveform = errors.New("invalid waveform")

func (w Waveform) String() string {
	switch w {
	case Sine:
		return "sine"
	case Square:
		return "square"
	case Triangle:
		return "triangle"
	default:
		return fmt.Sprintf("Waveform(%d)", int32(w))
	}
}

// Valid reports whether w is one of Sine, Square or Triangle
func (w Waveform) Valid() bool {
	return w >= Sine && w <= Triangle
}

// Next cycles Sine -> Square -> Triangle -> Sine
func (w Waveform) Next() Waveform {
	return (w + 1) % (Triangle + 1)
}

// ParseWaveform accepts the names produced by String and their short forms
func ParseWaveform(s string) (Waveform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sine", "sin":
		return Sine, nil
	case "square", "sqr", "sqa":
		return Square, nil
	case "triangle", "tri":
		return Triangle, nil
	default:
		return Sine, fmt.Errorf("%w: %q", ErrInvalidWaveform, s)
	}
}

// MarshalText lets Waveform round-trip through JSON and YAML as its name
func (w Waveform) MarshalText() ([]byte, error) {
	if !w.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidWaveform, int32(w))
	}
	return []byte(w.String()), nil
}

func (w *Waveform) UnmarshalText(text []byte) error {
	parsed, err := ParseWaveform(string(text))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}

// AngularFrequency converts Hz to radians per second
func AngularFrequency(hz float64) float64 {
	return 2 * math.Pi * hz
}

// Sample evaluates one waveform at time t (seconds) for angular frequency omega.
// The result is always in [-1, 1].
func Sample(w Waveform, omega, t float64) float64 {
	s := math.Sin(omega * t)

	switch w {
	case Sine:
		return s
	case Square:
		// Zero counts as positive
		if s >= 0 {
			return 1
		}
		return -1
	case Triangle:
		return math.Asin(s) * (2 / math.Pi)
	default:
		return 0
	}
}

// Mix sums the per-tone amplitudes of every frequency at time t.
// Each tone is synthesized on its own; the sum is not renormalized, so
// n simultaneous tones can peak at n.
func Mix(w Waveform, tones []float64, t float64) float64 {
	var sum float64
	for _, hz := range tones {
		sum += Sample(w, AngularFrequency(hz), t)
	}
	return sum
}

// Voice is a tone with its angular frequency precomputed for a fill cycle
type Voice struct {
	Omega float64
}

// Voices precomputes angular frequencies for tones, reusing dst when it has room
func Voices(dst []Voice, tones []float64) []Voice {
	dst = dst[:0]
	for _, hz := range tones {
		dst = append(dst, Voice{Omega: AngularFrequency(hz)})
	}
	return dst
}

// MixVoices is Mix over precomputed voices
func MixVoices(w Waveform, voices []Voice, t float64) float64 {
	var sum float64
	for _, v := range voices {
		sum += Sample(w, v.Omega, t)
	}
	return sum
}
