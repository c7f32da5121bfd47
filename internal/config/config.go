// ABOUTME: YAML configuration for the tonestream binary
// ABOUTME: Defaults, file loading, validation and conversion to engine/output settings
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/engine"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

type Config struct {
	Engine struct {
		SampleRate    int     `yaml:"sample_rate"`
		BufferSamples int     `yaml:"buffer_samples"`
		BufferCount   int     `yaml:"buffer_count"`
		MaxTones      int     `yaml:"max_tones"`
		MuteMode      string  `yaml:"mute_mode"`
		Gain          float64 `yaml:"gain"`
		Waveform      string  `yaml:"waveform"`
	} `yaml:"engine"`

	Output struct {
		Backend   string `yaml:"backend"`
		Device    string `yaml:"device"`
		WAVPath   string `yaml:"wav_path"`
		Paced     bool   `yaml:"paced"`
		LatencyMs int    `yaml:"latency_ms"`
	} `yaml:"output"`

	Control struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		MDNS    bool   `yaml:"mdns"`
		Name    string `yaml:"name"`
	} `yaml:"control"`

	LogFile string `yaml:"log_file"`
	TUI     bool   `yaml:"tui"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	var c Config

	c.Engine.SampleRate = audio.SampleRate
	c.Engine.BufferSamples = audio.DefaultBufferSamples
	c.Engine.BufferCount = audio.DefaultBufferCount
	c.Engine.MaxTones = synth.MaxTones
	c.Engine.MuteMode = synth.MuteBoth.String()
	c.Engine.Gain = synth.DefaultGain
	c.Engine.Waveform = synth.Sine.String()

	c.Output.Backend = output.BackendOto
	c.Output.Paced = true
	c.Output.LatencyMs = 50

	c.Control.Port = 8937
	c.Control.MDNS = true
	c.Control.Name = "tonestream"

	c.LogFile = "tonestream.log"
	c.TUI = true

	return &c
}

// Load reads filename over the defaults. Keys missing from the file keep their default.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filename, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", filename, err)
	}
	return config, nil
}

// Save writes the configuration as YAML
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return os.WriteFile(filename, data, 0o644)
}

// Validate checks every field against what the engine and backends accept
func (c *Config) Validate() error {
	if c.Engine.SampleRate != audio.SampleRate {
		return fmt.Errorf("engine.sample_rate must be %d, got %d", audio.SampleRate, c.Engine.SampleRate)
	}
	if err := audio.DefaultFormat(c.Engine.BufferSamples).Validate(); err != nil {
		return fmt.Errorf("engine.buffer_samples: %w", err)
	}
	if c.Engine.BufferCount < 2 || c.Engine.BufferCount > 64 {
		return fmt.Errorf("engine.buffer_count must be 2..64, got %d", c.Engine.BufferCount)
	}
	if c.Engine.MaxTones < 1 {
		return fmt.Errorf("engine.max_tones must be positive, got %d", c.Engine.MaxTones)
	}
	if _, err := synth.ParseMuteMode(c.Engine.MuteMode); err != nil {
		return fmt.Errorf("engine.mute_mode: %w", err)
	}
	if _, err := synth.ParseWaveform(c.Engine.Waveform); err != nil {
		return fmt.Errorf("engine.waveform: %w", err)
	}
	if c.Engine.Gain < 0 || c.Engine.Gain > 1 {
		return fmt.Errorf("engine.gain must be 0..1, got %v", c.Engine.Gain)
	}

	known := false
	for _, b := range output.Backends() {
		if c.Output.Backend == b {
			known = true
		}
	}
	if !known {
		return fmt.Errorf("output.backend %q unknown (have %v)", c.Output.Backend, output.Backends())
	}
	if c.Output.Backend == output.BackendWAV && c.Output.WAVPath == "" {
		return fmt.Errorf("output.wav_path is required for the wav backend")
	}
	if c.Output.LatencyMs < 0 {
		return fmt.Errorf("output.latency_ms must not be negative, got %d", c.Output.LatencyMs)
	}

	if c.Control.Enabled && (c.Control.Port < 1 || c.Control.Port > 65535) {
		return fmt.Errorf("control.port must be 1..65535, got %d", c.Control.Port)
	}
	return nil
}

// EngineConfig converts the engine section. Callbacks are left for the caller.
func (c *Config) EngineConfig() engine.Config {
	mode, _ := synth.ParseMuteMode(c.Engine.MuteMode)
	return engine.Config{
		SampleRate:    c.Engine.SampleRate,
		BufferSamples: c.Engine.BufferSamples,
		BufferCount:   c.Engine.BufferCount,
		MaxTones:      c.Engine.MaxTones,
		MuteMode:      mode,
	}
}

// InitialWaveform returns the configured starting waveform
func (c *Config) InitialWaveform() synth.Waveform {
	w, err := synth.ParseWaveform(c.Engine.Waveform)
	if err != nil {
		return synth.Sine
	}
	return w
}

// OutputOptions converts the output section
func (c *Config) OutputOptions() output.Options {
	return output.Options{
		Device:  c.Output.Device,
		WAVPath: c.Output.WAVPath,
		Paced:   c.Output.Paced,
		Latency: time.Duration(c.Output.LatencyMs) * time.Millisecond,
	}
}
