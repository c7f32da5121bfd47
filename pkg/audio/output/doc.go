// ABOUTME: Audio output package for playing PCM chunks
// ABOUTME: Provides the Sink contract and oto, malgo, pulse, PortAudio, WAV and null backends
// Package output provides chunked audio playback devices.
//
// A Sink takes fixed-size int16 buffers, plays them asynchronously in the
// order submitted, and reports each one back through a completion callback
// once the device no longer needs it.
//
// Supported backends:
//   - oto: ebitengine/oto persistent player (default)
//   - malgo: miniaudio device callback, with device selection
//   - pulse: native PulseAudio protocol client
//   - portaudio: PortAudio stream (build with -tags portaudio)
//   - wav: records the stream to a file
//   - null: discards audio at real-time pace
//
// Example:
//
//	sink, err := output.New("malgo", output.Options{})
//	err = sink.Open(audio.DefaultFormat(256), func(id int) { pool.Release(id) })
//	err = sink.Prepare(buf)
//	err = sink.Submit(buf)
package output
