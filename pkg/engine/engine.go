// ABOUTME: Streaming engine that renders the playback state into the buffer pool
// ABOUTME: Owns the generation goroutine and the Stopped/Running/Faulted lifecycle
package engine

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

// State is the engine lifecycle state
type State int32

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateStopping
	StateFaulted
)

func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateFaulted:
		return "faulted"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Config holds engine parameters. Zero values select the defaults.
type Config struct {
	SampleRate    int // must be 44100
	BufferSamples int // 256 or 512
	BufferCount   int // ring depth, default 8
	MaxTones      int // chord capacity, default synth.MaxTones
	MuteMode      synth.MuteMode

	// OnError is called from the generation goroutine when the engine faults,
	// after that goroutine has finished producing. It may call Stop or Start.
	OnError func(err error)

	// OnStateChange is called after every lifecycle transition
	OnStateChange func(from, to State)
}

func (c Config) withDefaults() Config {
	if c.SampleRate == 0 {
		c.SampleRate = audio.SampleRate
	}
	if c.BufferSamples == 0 {
		c.BufferSamples = audio.DefaultBufferSamples
	}
	if c.BufferCount == 0 {
		c.BufferCount = audio.DefaultBufferCount
	}
	if c.MaxTones == 0 {
		c.MaxTones = synth.MaxTones
	}
	return c
}

// Status is a diagnostic snapshot of the engine
type Status struct {
	ID        string
	State     State
	PhaseTime float64 // seconds of audio rendered since Start
	Samples   uint64
	Pool      PoolStats
	Err       error
}

// Engine continuously renders the playback state into fixed-size buffers and
// feeds them to a sink, blocking whenever every buffer is with the device.
type Engine struct {
	id       string
	sink     output.Sink
	cfg      Config
	format   audio.Format
	playback *synth.State

	// mu serializes Start and Stop
	mu       sync.Mutex
	done     chan struct{}
	sinkOpen bool

	state   atomic.Int32
	running atomic.Bool
	samples atomic.Uint64
	pool    atomic.Pointer[Pool]

	errMu   sync.Mutex
	lastErr error
}

// New creates a stopped engine writing to sink
func New(sink output.Sink, cfg Config) *Engine {
	cfg = cfg.withDefaults()
	return &Engine{
		id:       uuid.New().String(),
		sink:     sink,
		cfg:      cfg,
		format:   audio.DefaultFormat(cfg.BufferSamples),
		playback: synth.NewState(cfg.MaxTones, cfg.MuteMode),
	}
}

// ID returns the engine's unique identifier
func (e *Engine) ID() string {
	return e.id
}

func (e *Engine) shortID() string {
	return e.id[:8]
}

// Format returns the stream format handed to the sink
func (e *Engine) Format() audio.Format {
	return e.format
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) transition(from, to State) bool {
	if !e.state.CompareAndSwap(int32(from), int32(to)) {
		return false
	}
	if e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(from, to)
	}
	return true
}

// Start opens the sink and begins rendering. It is valid from Stopped and
// from Faulted; device errors are returned here and leave the engine Stopped.
func (e *Engine) Start() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case StateStopped:
	case StateFaulted:
		e.teardown()
		e.transition(StateFaulted, StateStopped)
	default:
		return fmt.Errorf("%w: start while %v", ErrInvalidState, e.State())
	}

	if e.cfg.SampleRate != audio.SampleRate {
		return fmt.Errorf("%w: unsupported sample rate %d", ErrOpenFailed, e.cfg.SampleRate)
	}
	if err := e.format.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrOpenFailed, err)
	}
	if e.cfg.BufferCount < 2 {
		return fmt.Errorf("%w: need at least 2 buffers, got %d", ErrOpenFailed, e.cfg.BufferCount)
	}

	e.transition(StateStopped, StateStarting)

	pool := NewPool(e.sink, e.cfg.BufferCount, e.cfg.BufferSamples)
	if err := e.sink.Open(e.format, pool.Release); err != nil {
		e.transition(StateStarting, StateStopped)
		if !errors.Is(err, ErrNoDevice) && !errors.Is(err, ErrOpenFailed) {
			err = fmt.Errorf("%w: %v", ErrOpenFailed, err)
		}
		log.Printf("Engine %s: failed to open output: %v", e.shortID(), err)
		return err
	}
	e.sinkOpen = true

	e.pool.Store(pool)
	e.samples.Store(0)
	e.setErr(nil)
	e.running.Store(true)
	e.done = make(chan struct{})

	go e.run(pool, e.done)

	// The goroutine may already have faulted; that state wins
	e.transition(StateStarting, StateRunning)

	log.Printf("Engine %s: started (%d buffers x %d samples, %v per buffer)",
		e.shortID(), e.cfg.BufferCount, e.cfg.BufferSamples, e.format.BufferDuration())
	return nil
}

// Stop halts rendering, waits for the generation goroutine and closes the sink.
// Stopping a stopped engine is a no-op.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	switch e.State() {
	case StateStopped:
		return nil
	case StateRunning:
		if e.transition(StateRunning, StateStopping) {
			err := e.teardown()
			e.transition(StateStopping, StateStopped)
			log.Printf("Engine %s: stopped after %d samples", e.shortID(), e.samples.Load())
			return err
		}
	}

	// Faulted, possibly just now
	err := e.teardown()
	e.transition(StateFaulted, StateStopped)
	log.Printf("Engine %s: stopped from fault", e.shortID())
	return err
}

// Restart stops the engine if needed and starts it again. It is how a
// faulted engine is recovered.
func (e *Engine) Restart() error {
	if err := e.Stop(); err != nil {
		log.Printf("Engine %s: error stopping for restart: %v", e.shortID(), err)
	}
	return e.Start()
}

// teardown ends the generation goroutine and closes the sink. Called with mu held.
func (e *Engine) teardown() error {
	e.running.Store(false)
	if pool := e.pool.Load(); pool != nil {
		pool.Close()
	}
	if e.done != nil {
		<-e.done
		e.done = nil
	}

	if !e.sinkOpen {
		return nil
	}
	e.sinkOpen = false
	if err := e.sink.Close(); err != nil {
		return fmt.Errorf("failed to close output: %w", err)
	}
	return nil
}

// run is the generation goroutine. It is the only writer of the sample counter.
// Fault callbacks fire after done is closed so they may call Stop or Start.
func (e *Engine) run(pool *Pool, done chan struct{}) {
	err := e.generate(pool)
	if err == nil {
		close(done)
		return
	}

	from, changed := e.markFaulted(err)
	close(done)

	if changed && e.cfg.OnStateChange != nil {
		e.cfg.OnStateChange(from, StateFaulted)
	}
	log.Printf("Engine %s: fault: %v", e.shortID(), err)
	if e.cfg.OnError != nil {
		e.cfg.OnError(err)
	}
}

// generate renders buffers until the engine stops or a sink call fails
func (e *Engine) generate(pool *Pool) error {
	var voices []synth.Voice
	for e.running.Load() {
		buf, err := pool.Acquire()
		if err != nil {
			if errors.Is(err, ErrPoolClosed) {
				return nil
			}
			return err
		}
		if !e.running.Load() {
			return nil
		}

		voices = e.render(buf.Samples, voices)

		if err := pool.Submit(buf); err != nil {
			return err
		}
	}
	return nil
}

// render fills out from one snapshot of the playback state, advancing phase time
// by len(out) samples
func (e *Engine) render(out []int16, voices []synth.Voice) []synth.Voice {
	snap := e.playback.Snapshot()
	n := e.samples.Load()

	if snap.Silent() {
		clear(out)
	} else {
		voices = synth.Voices(voices, snap.Tones)
		rate := float64(e.cfg.SampleRate)
		for i := range out {
			t := float64(n+uint64(i)) / rate
			out[i] = audio.FloatToSample(synth.MixVoices(snap.Waveform, voices, t) * snap.Gain)
		}
	}

	e.samples.Add(uint64(len(out)))
	return voices
}

// markFaulted records err and moves a starting or running engine to Faulted.
// A concurrent Stop that already left Running wins.
func (e *Engine) markFaulted(err error) (State, bool) {
	e.setErr(err)
	e.running.Store(false)
	for _, from := range []State{StateRunning, StateStarting} {
		if e.state.CompareAndSwap(int32(from), int32(StateFaulted)) {
			return from, true
		}
	}
	return e.State(), false
}

func (e *Engine) setErr(err error) {
	e.errMu.Lock()
	e.lastErr = err
	e.errMu.Unlock()
}

// Err returns the error that faulted the engine, or nil
func (e *Engine) Err() error {
	e.errMu.Lock()
	defer e.errMu.Unlock()
	return e.lastErr
}

// PhaseTime returns the global phase time in seconds
func (e *Engine) PhaseTime() float64 {
	return float64(e.samples.Load()) / float64(e.cfg.SampleRate)
}

// Status returns a diagnostic snapshot
func (e *Engine) Status() Status {
	st := Status{
		ID:        e.id,
		State:     e.State(),
		Samples:   e.samples.Load(),
		PhaseTime: e.PhaseTime(),
		Err:       e.Err(),
	}
	if pool := e.pool.Load(); pool != nil {
		st.Pool = pool.Stats()
	} else {
		st.Pool = PoolStats{Size: e.cfg.BufferCount, Free: e.cfg.BufferCount}
	}
	return st
}

// Playback returns the shared playback state. It survives restarts.
func (e *Engine) Playback() *synth.State {
	return e.playback
}

// Snapshot returns the playback state the next buffer would render
func (e *Engine) Snapshot() synth.Snapshot {
	return e.playback.Snapshot()
}

// SetTone replaces the active tones with a single frequency
func (e *Engine) SetTone(frequency float64, w synth.Waveform, gain float64) error {
	return e.playback.SetTone(frequency, w, gain)
}

// SetChord replaces the active tones; ErrCapacityExceeded leaves them unchanged
func (e *Engine) SetChord(freqs []float64, w synth.Waveform, gain float64) error {
	return e.playback.SetChord(freqs, w, gain)
}

// SetGain sets the output gain
func (e *Engine) SetGain(gain float64) {
	e.playback.SetGain(gain)
}

// SetWaveform sets the waveform for all tones
func (e *Engine) SetWaveform(w synth.Waveform) error {
	return e.playback.SetWaveform(w)
}

// Mute silences output from the next buffer on
func (e *Engine) Mute() {
	e.playback.Mute()
}
