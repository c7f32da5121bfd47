// ABOUTME: Waveform synthesis package
// ABOUTME: Pure tone functions and the concurrently shared playback state
// Package synth turns a description of what should be sounding into
// amplitudes.
//
// Sample evaluates a single tone; Mix sums independently synthesized tones
// (additive synthesis). State holds the active tone set, waveform and gain,
// and is safe to update from any goroutine while an engine reads it.
//
// Example:
//
//	st := synth.NewState(synth.MaxTones, synth.MuteBoth)
//	err := st.SetChord([]float64{440, 554.37, 659.25}, synth.Triangle, 0.2)
//	snap := st.Snapshot()
//	v := synth.Mix(snap.Waveform, snap.Tones, 0.001) * snap.Gain
package synth
