// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Format, Buffer types and sample conversion functions
// Package audio provides the fixed PCM format and chunk type used by the
// tonestream engine and its output sinks.
//
// The engine produces 44.1kHz mono 16-bit PCM in fixed-size chunks:
//   - Format: describes the stream (sample rate, channels, bit depth, chunk size)
//   - Buffer: one chunk of int16 samples with its ring position
//
// Conversion helpers move between float amplitudes in [-1,1] and int16 PCM:
//
//	s := audio.FloatToSample(0.5) // 16383
//	v := audio.SampleToFloat(s)
package audio
