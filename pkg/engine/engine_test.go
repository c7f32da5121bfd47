// ABOUTME: Tests for the streaming engine
// ABOUTME: Covers rendering, phase continuity, backpressure, lifecycle and faults
package engine

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

func startEngine(t *testing.T, sink output.Sink, cfg Config) *Engine {
	t.Helper()
	eng := New(sink, cfg)
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(func() { eng.Stop() })
	return eng
}

// expected renders sample n the same way the engine does
func expected(w synth.Waveform, tones []float64, gain float64, n int) int16 {
	t := float64(n) / audio.SampleRate
	return audio.FloatToSample(synth.Mix(w, tones, t) * gain)
}

func within(a, b int16, tol int) bool {
	d := int(a) - int(b)
	return d >= -tol && d <= tol
}

func TestEngineSineScenario(t *testing.T) {
	sink := &manualSink{}
	eng := New(sink, Config{})
	if err := eng.SetTone(440, synth.Sine, 0.2); err != nil {
		t.Fatalf("set tone: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	waitSubmitted(t, sink, 8)
	stream := sink.stream()

	if stream[0] != 0 {
		t.Errorf("first sample = %d, want 0", stream[0])
	}

	peak := int16(0)
	for n, got := range stream {
		want := expected(synth.Sine, []float64{440}, 0.2, n)
		if !within(got, want, 1) {
			t.Fatalf("sample %d = %d, want %d", n, got, want)
		}
		if got > peak {
			peak = got
		}
	}

	// 8 x 256 samples covers more than 20 periods of 440 Hz
	wantPeak := audio.FloatToSample(0.2)
	if !within(peak, wantPeak, 5) {
		t.Errorf("peak = %d, want about %d", peak, wantPeak)
	}
}

func TestEngineFullScaleSine(t *testing.T) {
	sink := &manualSink{}
	eng := New(sink, Config{BufferSamples: 256})
	if err := eng.SetTone(440, synth.Sine, 1.0); err != nil {
		t.Fatalf("set tone: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	waitSubmitted(t, sink, 1)
	buf := sink.chunk(0)
	if len(buf) != 256 {
		t.Fatalf("chunk length = %d, want 256", len(buf))
	}
	if buf[0] != 0 {
		t.Errorf("sample[0] = %d, want 0", buf[0])
	}
	want := audio.FloatToSample(math.Sin(2 * math.Pi * 440 * 25 / audio.SampleRate))
	if !within(buf[25], want, 1) {
		t.Errorf("sample[25] = %d, want %d", buf[25], want)
	}
}

func TestEngineSquareScenario(t *testing.T) {
	sink := &manualSink{}
	eng := New(sink, Config{})
	if err := eng.SetTone(1000, synth.Square, 0.5); err != nil {
		t.Fatalf("set tone: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	waitSubmitted(t, sink, 8)

	level := audio.FloatToSample(0.5)
	var pos, neg int
	for n, got := range sink.stream() {
		switch got {
		case level:
			pos++
		case -level:
			neg++
		default:
			t.Fatalf("sample %d = %d, want +/-%d", n, got, level)
		}
	}
	if pos == 0 || neg == 0 {
		t.Errorf("square never alternated: %d positive, %d negative", pos, neg)
	}
	if got := sink.chunk(0)[0]; got != level {
		t.Errorf("first sample = %d, want %d (zero counts as positive)", got, level)
	}
}

func TestEngineTwoToneScenario(t *testing.T) {
	tones := []float64{440, 554.37}

	sink := &manualSink{}
	eng := New(sink, Config{})
	if err := eng.SetChord(tones, synth.Sine, 0.2); err != nil {
		t.Fatalf("set chord: %v", err)
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	waitSubmitted(t, sink, 8)

	limit := audio.FloatToSample(0.4)
	differsFromSum := false
	for n, got := range sink.stream() {
		want := expected(synth.Sine, tones, 0.2, n)
		if !within(got, want, 1) {
			t.Fatalf("sample %d = %d, want %d", n, got, want)
		}
		if got > limit || got < -limit {
			t.Fatalf("sample %d = %d exceeds two-tone bound %d", n, got, limit)
		}
		if !within(got, expected(synth.Sine, []float64{440 + 554.37}, 0.2, n), 1) {
			differsFromSum = true
		}
	}
	if !differsFromSum {
		t.Error("two tones rendered like a single tone at the summed frequency")
	}
}

func TestEnginePhaseContinuity(t *testing.T) {
	for _, samples := range []int{audio.DefaultBufferSamples, audio.LargeBufferSamples} {
		t.Run(fmt.Sprintf("%d", samples), func(t *testing.T) {
			sink := &manualSink{}
			eng := New(sink, Config{BufferSamples: samples})
			eng.SetTone(440, synth.Sine, 0.2)
			if err := eng.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			defer eng.Stop()

			// Cycle the ring twice so buffers are reused
			waitSubmitted(t, sink, 8)
			for i := 0; i < 16; i++ {
				sink.Complete(1)
				waitSubmitted(t, sink, 9+i)
			}

			stream := sink.stream()
			if len(stream) != 24*samples {
				t.Fatalf("stream has %d samples, want %d", len(stream), 24*samples)
			}

			// Largest step of a 440 Hz sine at gain 0.2, plus rounding
			maxStep := 0.2*32767*2*math.Pi*440/audio.SampleRate + 2
			for n := 1; n < len(stream); n++ {
				step := math.Abs(float64(stream[n]) - float64(stream[n-1]))
				if step > maxStep {
					t.Fatalf("discontinuity at sample %d (buffer seam %v): step %v > %v",
						n, n%samples == 0, step, maxStep)
				}
			}

			for seam := samples; seam < len(stream); seam += samples {
				want := expected(synth.Sine, []float64{440}, 0.2, seam)
				if !within(stream[seam], want, 1) {
					t.Fatalf("sample after seam %d = %d, want %d", seam, stream[seam], want)
				}
			}

			if got, want := eng.PhaseTime(), float64(len(stream))/audio.SampleRate; got < want {
				t.Errorf("phase time = %v, want at least %v", got, want)
			}
		})
	}
}

func TestEngineAtMostNInFlight(t *testing.T) {
	sink := &manualSink{}
	eng := startEngine(t, sink, Config{})
	eng.SetTone(440, synth.Sine, 0.2)

	waitSubmitted(t, sink, audio.DefaultBufferCount)
	time.Sleep(50 * time.Millisecond)

	if got := sink.submitted(); got != audio.DefaultBufferCount {
		t.Fatalf("submitted %d buffers without completions, want %d", got, audio.DefaultBufferCount)
	}

	st := eng.Status()
	if st.Pool.Free != 0 || st.Pool.InFlight != audio.DefaultBufferCount {
		t.Errorf("pool = %+v, want 0 free and %d in flight", st.Pool, audio.DefaultBufferCount)
	}
	if st.State != StateRunning {
		t.Errorf("state = %v, want running", st.State)
	}
}

func TestEngineOneCompletionReleasesOneFill(t *testing.T) {
	sink := &manualSink{}
	startEngine(t, sink, Config{})

	waitSubmitted(t, sink, 8)
	for i := 1; i <= 5; i++ {
		sink.Complete(1)
		waitSubmitted(t, sink, 8+i)
		time.Sleep(10 * time.Millisecond)
		if got := sink.submitted(); got != 8+i {
			t.Fatalf("after %d completions submitted = %d, want %d", i, got, 8+i)
		}
	}

	sink.mu.Lock()
	maxQueued := sink.maxQueued
	sink.mu.Unlock()
	if maxQueued > 8 {
		t.Errorf("sink held %d buffers at once, want at most 8", maxQueued)
	}
}

func TestEngineSilentWithoutTones(t *testing.T) {
	sink := &manualSink{}
	startEngine(t, sink, Config{})

	waitSubmitted(t, sink, 8)
	for n, v := range sink.stream() {
		if v != 0 {
			t.Fatalf("sample %d = %d, want silence", n, v)
		}
	}
}

func TestEngineChangesApplyAtNextBuffer(t *testing.T) {
	sink := &manualSink{}
	eng := New(sink, Config{})
	eng.SetTone(440, synth.Sine, 0.2)
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	// All 8 buffers were rendered before the change; the next fill sees it
	waitSubmitted(t, sink, 8)
	if err := eng.SetTone(1000, synth.Square, 0.5); err != nil {
		t.Fatalf("set tone: %v", err)
	}
	sink.Complete(1)
	waitSubmitted(t, sink, 9)

	level := audio.FloatToSample(0.5)
	for i, v := range sink.chunk(8) {
		if v != level && v != -level {
			t.Fatalf("sample %d of next buffer = %d, want +/-%d", i, v, level)
		}
	}
}

func TestEngineMute(t *testing.T) {
	for _, mode := range []synth.MuteMode{synth.MuteBoth, synth.MuteGainOnly, synth.MuteClearTones} {
		t.Run(mode.String(), func(t *testing.T) {
			sink := &manualSink{}
			eng := New(sink, Config{MuteMode: mode})
			eng.SetChord([]float64{440, 554.37, 659.25}, synth.Triangle, 0.3)
			if err := eng.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			defer eng.Stop()

			waitSubmitted(t, sink, 8)
			eng.Mute()
			eng.Mute()

			for i := 0; i < 3; i++ {
				sink.Complete(1)
				waitSubmitted(t, sink, 9+i)
				for n, v := range sink.chunk(8 + i) {
					if v != 0 {
						t.Fatalf("buffer %d sample %d = %d after mute, want 0", 8+i, n, v)
					}
				}
			}
		})
	}
}

func TestEngineMixedFieldUpdate(t *testing.T) {
	// Fields update independently: a buffer may see a new gain with the old waveform
	sink := &manualSink{}
	eng := New(sink, Config{})
	eng.SetTone(1000, synth.Square, 0.5)
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	waitSubmitted(t, sink, 8)
	eng.SetGain(0.25)
	sink.Complete(1)
	waitSubmitted(t, sink, 9)
	eng.SetWaveform(synth.Sine)

	level := audio.FloatToSample(0.25)
	for n, v := range sink.chunk(8) {
		if v != level && v != -level {
			t.Fatalf("sample %d = %d, want square at new gain +/-%d", n, v, level)
		}
	}
}

func TestEngineChordCapacity(t *testing.T) {
	sink := &manualSink{}
	eng := startEngine(t, sink, Config{MaxTones: 4})

	if err := eng.SetChord([]float64{440, 550, 660, 770}, synth.Sine, 0.1); err != nil {
		t.Fatalf("chord at capacity: %v", err)
	}
	err := eng.SetChord([]float64{440, 550, 660, 770, 880}, synth.Square, 0.9)
	if !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("chord over capacity = %v, want ErrCapacityExceeded", err)
	}

	snap := eng.Playback().Snapshot()
	want := synth.Snapshot{Tones: []float64{440, 550, 660, 770}, Waveform: synth.Sine, Gain: 0.1}
	if diff := cmp.Diff(want, snap); diff != "" {
		t.Errorf("state changed by rejected chord (-want +got):\n%s", diff)
	}
}

func TestEngineLifecycleTransitions(t *testing.T) {
	var mu sync.Mutex
	var got []string
	record := func(from, to State) {
		mu.Lock()
		got = append(got, from.String()+"->"+to.String())
		mu.Unlock()
	}

	sink := &manualSink{}
	eng := New(sink, Config{OnStateChange: record})
	if eng.State() != StateStopped {
		t.Fatalf("new engine state = %v, want stopped", eng.State())
	}
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if err := eng.Stop(); err != nil {
		t.Errorf("second stop: %v", err)
	}

	want := []string{
		"stopped->starting",
		"starting->running",
		"running->stopping",
		"stopping->stopped",
	}
	mu.Lock()
	defer mu.Unlock()
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("transitions (-want +got):\n%s", diff)
	}
	if sink.opens != 1 || sink.closes != 1 {
		t.Errorf("sink opened %d and closed %d times, want 1 each", sink.opens, sink.closes)
	}
}

func TestEngineStartWhileRunning(t *testing.T) {
	eng := startEngine(t, &manualSink{}, Config{})
	if err := eng.Start(); !errors.Is(err, ErrInvalidState) {
		t.Errorf("second start = %v, want ErrInvalidState", err)
	}
}

func TestEngineStartErrors(t *testing.T) {
	tests := []struct {
		name    string
		openErr error
		cfg     Config
		want    error
	}{
		{"no device", fmt.Errorf("probe: %w", output.ErrNoDevice), Config{}, ErrNoDevice},
		{"open failed", fmt.Errorf("%w: busy", output.ErrOpenFailed), Config{}, ErrOpenFailed},
		{"unclassified", errInjected, Config{}, ErrOpenFailed},
		{"bad buffer size", nil, Config{BufferSamples: 300}, ErrOpenFailed},
		{"bad sample rate", nil, Config{SampleRate: 48000}, ErrOpenFailed},
		{"single buffer", nil, Config{BufferCount: 1}, ErrOpenFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &manualSink{openErr: tt.openErr}
			eng := New(sink, tt.cfg)
			err := eng.Start()
			if !errors.Is(err, tt.want) {
				t.Errorf("start = %v, want %v", err, tt.want)
			}
			if eng.State() != StateStopped {
				t.Errorf("state after failed start = %v, want stopped", eng.State())
			}
			if sink.opens != 0 {
				t.Errorf("sink opened %d times", sink.opens)
			}
		})
	}
}

func TestEngineFaults(t *testing.T) {
	tests := []struct {
		name  string
		setup func(s *manualSink)
		after func(t *testing.T, s *manualSink) // drives the engine into the failure
		want  error
	}{
		{
			name:  "sink rejects",
			setup: func(s *manualSink) { s.rejectAfter = 3 },
			after: func(t *testing.T, s *manualSink) {},
			want:  ErrSinkRejected,
		},
		{
			name:  "prepare fails",
			setup: func(s *manualSink) { s.prepareErr = errInjected },
			after: func(t *testing.T, s *manualSink) {},
			want:  ErrPrepareFailed,
		},
		{
			name:  "unprepare fails",
			setup: func(s *manualSink) {},
			after: func(t *testing.T, s *manualSink) {
				waitSubmitted(t, s, 8)
				s.set(func(s *manualSink) { s.unprepareErr = errInjected })
				s.Complete(1)
			},
			want: ErrUnprepareFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &manualSink{}
			tt.setup(sink)

			errc := make(chan error, 1)
			eng := New(sink, Config{OnError: func(err error) { errc <- err }})
			eng.SetTone(440, synth.Sine, 0.2)
			if err := eng.Start(); err != nil {
				t.Fatalf("start: %v", err)
			}
			defer eng.Stop()

			tt.after(t, sink)

			select {
			case err := <-errc:
				if !errors.Is(err, tt.want) {
					t.Errorf("OnError got %v, want %v", err, tt.want)
				}
			case <-time.After(2 * time.Second):
				t.Fatal("engine did not report a fault")
			}

			waitFor(t, "faulted state", func() bool { return eng.State() == StateFaulted })
			if !errors.Is(eng.Err(), tt.want) {
				t.Errorf("Err() = %v, want %v", eng.Err(), tt.want)
			}
			if !IsFatal(eng.Err()) {
				t.Errorf("IsFatal(%v) = false", eng.Err())
			}

			// Production has stopped
			n := sink.submitted()
			sink.Complete(-1)
			time.Sleep(20 * time.Millisecond)
			if got := sink.submitted(); got != n {
				t.Errorf("faulted engine submitted %d more buffers", got-n)
			}
		})
	}
}

func TestEngineRestartAfterFault(t *testing.T) {
	sink := &manualSink{rejectAfter: 2}
	eng := New(sink, Config{})
	eng.SetTone(440, synth.Sine, 0.2)
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	waitFor(t, "fault", func() bool { return eng.State() == StateFaulted })

	sink.set(func(s *manualSink) { s.rejectAfter = 0 })
	if err := eng.Start(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if eng.Err() != nil {
		t.Errorf("Err() after restart = %v, want nil", eng.Err())
	}
	if eng.State() != StateRunning {
		t.Errorf("state after restart = %v, want running", eng.State())
	}

	// Phase time restarts and the tone survives the restart
	waitSubmitted(t, sink, 8)
	if got := sink.chunk(0)[0]; got != 0 {
		t.Errorf("first sample after restart = %d, want 0", got)
	}
	if got := sink.chunk(0)[10]; got == 0 {
		t.Error("tone did not survive restart")
	}
	if sink.closes != 1 || sink.opens != 2 {
		t.Errorf("sink opened %d, closed %d times; want 2 and 1", sink.opens, sink.closes)
	}
}

func TestEngineRestartFromErrorCallback(t *testing.T) {
	type result struct {
		stop, start error
	}
	results := make(chan result, 1)

	sink := &manualSink{rejectAfter: 2}
	var eng *Engine
	eng = New(sink, Config{OnError: func(err error) {
		var r result
		r.stop = eng.Stop()
		sink.set(func(s *manualSink) { s.rejectAfter = 0 })
		r.start = eng.Start()
		results <- r
	}})
	eng.SetTone(440, synth.Sine, 0.2)
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer eng.Stop()

	select {
	case r := <-results:
		if r.stop != nil {
			t.Errorf("Stop from OnError: %v", r.stop)
		}
		if r.start != nil {
			t.Errorf("Start from OnError: %v", r.start)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop/Start from OnError did not return (state %v)", eng.State())
	}

	if eng.State() != StateRunning {
		t.Errorf("state = %v, want running", eng.State())
	}
	waitSubmitted(t, sink, 8)
	if sink.opens != 2 {
		t.Errorf("sink opened %d times, want 2", sink.opens)
	}
}

func TestEngineStopFromErrorCallback(t *testing.T) {
	stopped := make(chan error, 1)

	sink := &manualSink{prepareErr: errInjected}
	var eng *Engine
	eng = New(sink, Config{OnError: func(err error) { stopped <- eng.Stop() }})
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	select {
	case err := <-stopped:
		if err != nil {
			t.Errorf("Stop from OnError: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Stop from OnError did not return (state %v)", eng.State())
	}
	if eng.State() != StateStopped {
		t.Errorf("state = %v, want stopped", eng.State())
	}
	if !errors.Is(eng.Err(), ErrPrepareFailed) {
		t.Errorf("Err() = %v, want %v", eng.Err(), ErrPrepareFailed)
	}
}

func TestEngineRestart(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, eng *Engine, s *manualSink)
	}{
		{
			name:  "from stopped",
			setup: func(t *testing.T, eng *Engine, s *manualSink) {},
		},
		{
			name: "from running",
			setup: func(t *testing.T, eng *Engine, s *manualSink) {
				if err := eng.Start(); err != nil {
					t.Fatalf("start: %v", err)
				}
				waitSubmitted(t, s, 8)
			},
		},
		{
			name: "from faulted",
			setup: func(t *testing.T, eng *Engine, s *manualSink) {
				s.set(func(s *manualSink) { s.rejectAfter = 1 })
				if err := eng.Start(); err != nil {
					t.Fatalf("start: %v", err)
				}
				waitFor(t, "fault", func() bool { return eng.State() == StateFaulted })
				s.set(func(s *manualSink) { s.rejectAfter = 0 })
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &manualSink{}
			eng := New(sink, Config{})
			eng.SetTone(440, synth.Sine, 0.2)
			defer eng.Stop()

			tt.setup(t, eng, sink)

			if err := eng.Restart(); err != nil {
				t.Fatalf("restart: %v", err)
			}
			if eng.State() != StateRunning {
				t.Errorf("state = %v, want running", eng.State())
			}
			if eng.Err() != nil {
				t.Errorf("Err() = %v, want nil", eng.Err())
			}
			waitSubmitted(t, sink, 8)
		})
	}
}

func TestEngineStopFromFault(t *testing.T) {
	sink := &manualSink{prepareErr: errInjected}
	eng := New(sink, Config{})
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, "fault", func() bool { return eng.State() == StateFaulted })

	if err := eng.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if eng.State() != StateStopped {
		t.Errorf("state = %v, want stopped", eng.State())
	}
	if sink.closes != 1 {
		t.Errorf("sink closed %d times, want 1", sink.closes)
	}
}

func TestEngineStopWhileBlocked(t *testing.T) {
	sink := &manualSink{}
	eng := New(sink, Config{})
	eng.SetTone(440, synth.Sine, 0.2)
	if err := eng.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Every buffer is with the device; the generation goroutine waits in Acquire
	waitSubmitted(t, sink, 8)

	done := make(chan error, 1)
	go func() { done <- eng.Stop() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("stop: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stop hung while the engine was blocked on the pool")
	}

	if eng.State() != StateStopped {
		t.Errorf("state = %v, want stopped", eng.State())
	}
	if q := sink.queued(); q != 0 {
		t.Errorf("%d buffers still queued after stop", q)
	}
	if st := eng.Status(); st.Pool.InFlight != 0 {
		t.Errorf("pool after stop = %+v, want nothing in flight", st.Pool)
	}
}

func TestEngineWithNullSink(t *testing.T) {
	eng := startEngine(t, output.NewNull(false), Config{})
	eng.SetChord([]float64{261.63, 329.63, 392.00}, synth.Triangle, 0.2)

	waitFor(t, "rendered audio", func() bool { return eng.Status().Samples > 100*audio.DefaultBufferSamples })

	st := eng.Status()
	if st.State != StateRunning || st.Err != nil {
		t.Errorf("status = %+v, want running without error", st)
	}
	if st.Pool.Spurious != 0 {
		t.Errorf("spurious completions = %d", st.Pool.Spurious)
	}
	if st.ID == "" || st.ID != eng.ID() {
		t.Errorf("status ID = %q, engine ID = %q", st.ID, eng.ID())
	}

	if err := eng.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if st := eng.Status(); st.Pool.InFlight != 0 {
		t.Errorf("pool after stop = %+v", st.Pool)
	}
}

func TestEngineWithPacedNullSink(t *testing.T) {
	eng := startEngine(t, output.NewNull(true), Config{})
	eng.SetTone(440, synth.Sine, 0.2)

	time.Sleep(100 * time.Millisecond)
	eng.Stop()

	// Paced output cannot run far ahead of real time: 8 buffers of slack
	elapsed := eng.PhaseTime()
	limit := 0.100 + 8*audio.DefaultFormat(audio.DefaultBufferSamples).BufferDuration().Seconds() + 0.1
	if elapsed > limit {
		t.Errorf("rendered %.3fs of audio in 100ms, more than %.3fs", elapsed, limit)
	}
	if elapsed == 0 {
		t.Error("paced engine rendered nothing")
	}
}

func TestStateStrings(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateStopped, "stopped"},
		{StateStarting, "starting"},
		{StateRunning, "running"},
		{StateStopping, "stopping"},
		{StateFaulted, "faulted"},
		{State(42), "State(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", int32(tt.state), got, tt.want)
		}
	}
}
