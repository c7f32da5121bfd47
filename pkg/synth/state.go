// ABOUTME: Playback state shared between callers and the generation goroutine
// ABOUTME: Lock-free per-field atomics for the active tone set, waveform and gain
package synth

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"sync/atomic"
)

// MaxTones is the default bound on simultaneously sounding tones
const MaxTones = 32

// DefaultGain matches the quiet level a fresh engine starts at
const DefaultGain = 0.2

var (
	// ErrCapacityExceeded is returned when a chord has more tones than the state allows
	ErrCapacityExceeded = errors.New("too many simultaneous tones")

	// ErrInvalidFrequency is returned for negative, NaN or infinite frequencies
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// MuteMode controls what Mute silences
type MuteMode int

const (
	// MuteBoth clears the tone set and zeroes gain
	MuteBoth MuteMode = iota
	// MuteGainOnly zeroes gain and keeps the tone set
	MuteGainOnly
	// MuteClearTones clears the tone set and keeps gain
	MuteClearTones
)

func (m MuteMode) String() string {
	switch m {
	case MuteBoth:
		return "both"
	case MuteGainOnly:
		return "gain"
	case MuteClearTones:
		return "tones"
	default:
		return fmt.Sprintf("MuteMode(%d)", int(m))
	}
}

// ParseMuteMode parses "both", "gain" or "tones"
func ParseMuteMode(s string) (MuteMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "both":
		return MuteBoth, nil
	case "gain", "gain-only", "gainonly":
		return MuteGainOnly, nil
	case "tones", "clear-tones", "cleartones":
		return MuteClearTones, nil
	default:
		return MuteBoth, fmt.Errorf("unknown mute mode %q (want both, gain or tones)", s)
	}
}

// Snapshot is what one fill cycle renders
type Snapshot struct {
	Tones    []float64
	Waveform Waveform
	Gain     float64
}

// Silent reports whether the snapshot renders only zeros
func (s Snapshot) Silent() bool {
	return len(s.Tones) == 0 || s.Gain == 0
}

// State is the playback description read by the engine once per buffer.
//
// Every field is an independent atomic. The tone set is swapped as a whole,
// so a reader never sees half of an old chord and half of a new one, but a
// reader may see a new gain together with an old waveform if a setter runs
// between the reads.
type State struct {
	tones    atomic.Pointer[[]float64]
	waveform atomic.Int32
	gain     atomic.Uint64

	maxTones int
	muteMode MuteMode
}

// NewState creates a silent state. maxTones <= 0 selects MaxTones.
func NewState(maxTones int, muteMode MuteMode) *State {
	if maxTones <= 0 {
		maxTones = MaxTones
	}
	s := &State{
		maxTones: maxTones,
		muteMode: muteMode,
	}
	empty := []float64{}
	s.tones.Store(&empty)
	s.waveform.Store(int32(Sine))
	s.gain.Store(math.Float64bits(DefaultGain))
	return s
}

// MaxTones returns the chord capacity
func (s *State) MaxTones() int {
	return s.maxTones
}

// MuteMode returns how Mute behaves
func (s *State) MuteMode() MuteMode {
	return s.muteMode
}

// SetTone replaces the active set with a single frequency.
// A frequency of zero is a silent tone.
func (s *State) SetTone(frequency float64, w Waveform, gain float64) error {
	return s.SetChord([]float64{frequency}, w, gain)
}

// SetChord replaces the active set with freqs. On error the previous state is kept.
func (s *State) SetChord(freqs []float64, w Waveform, gain float64) error {
	if len(freqs) > s.maxTones {
		return fmt.Errorf("%w: %d tones requested, capacity %d", ErrCapacityExceeded, len(freqs), s.maxTones)
	}
	if !w.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidWaveform, int32(w))
	}
	for _, f := range freqs {
		if err := checkFrequency(f); err != nil {
			return err
		}
	}

	tones := make([]float64, len(freqs))
	copy(tones, freqs)

	s.waveform.Store(int32(w))
	s.gain.Store(math.Float64bits(clampGain(gain)))
	s.tones.Store(&tones)
	return nil
}

// SetGain changes only the gain, clamped to [0,1]
func (s *State) SetGain(gain float64) {
	s.gain.Store(math.Float64bits(clampGain(gain)))
}

// SetWaveform changes only the waveform
func (s *State) SetWaveform(w Waveform) error {
	if !w.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidWaveform, int32(w))
	}
	s.waveform.Store(int32(w))
	return nil
}

// Mute silences output from the next fill cycle on, per the state's MuteMode.
// Calling it repeatedly has the same effect as calling it once.
func (s *State) Mute() {
	if s.muteMode == MuteBoth || s.muteMode == MuteGainOnly {
		s.gain.Store(math.Float64bits(0))
	}
	if s.muteMode == MuteBoth || s.muteMode == MuteClearTones {
		empty := []float64{}
		s.tones.Store(&empty)
	}
}

// Tones returns a copy of the active frequencies
func (s *State) Tones() []float64 {
	cur := *s.tones.Load()
	out := make([]float64, len(cur))
	copy(out, cur)
	return out
}

// Waveform returns the current waveform
func (s *State) Waveform() Waveform {
	return Waveform(s.waveform.Load())
}

// Gain returns the current gain
func (s *State) Gain() float64 {
	return math.Float64frombits(s.gain.Load())
}

// Snapshot reads every field once. The tone slice is shared and must not be modified.
func (s *State) Snapshot() Snapshot {
	return Snapshot{
		Tones:    *s.tones.Load(),
		Waveform: Waveform(s.waveform.Load()),
		Gain:     math.Float64frombits(s.gain.Load()),
	}
}

func checkFrequency(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) || f < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidFrequency, f)
	}
	return nil
}

func clampGain(g float64) float64 {
	if math.IsNaN(g) || g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}
