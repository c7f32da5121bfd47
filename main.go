// ABOUTME: Entry point for the tonestream keyboard synth
// ABOUTME: Parses config and CLI flags, starts the engine, TUI and remote control
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/Resonate-Protocol/tonestream/internal/config"
	"github.com/Resonate-Protocol/tonestream/internal/control"
	"github.com/Resonate-Protocol/tonestream/internal/discovery"
	"github.com/Resonate-Protocol/tonestream/internal/ui"
	"github.com/Resonate-Protocol/tonestream/internal/version"
	"github.com/Resonate-Protocol/tonestream/pkg/audio"
	"github.com/Resonate-Protocol/tonestream/pkg/audio/output"
	"github.com/Resonate-Protocol/tonestream/pkg/engine"
	"github.com/Resonate-Protocol/tonestream/pkg/synth"
)

var (
	configFile    = flag.String("config", "", "YAML config file (flags override it)")
	backend       = flag.String("backend", "", "Output backend: "+strings.Join(output.Backends(), ", "))
	device        = flag.String("device", "", "Output device or sink name (malgo, pulse)")
	wavPath       = flag.String("wav", "", "Record to this .wav file (selects the wav backend)")
	bufferSamples = flag.Int("buffer-samples", 0, "Samples per buffer: 256 or 512")
	bufferCount   = flag.Int("buffers", 0, "Number of buffers in the ring")
	muteMode      = flag.String("mute-mode", "", "What mute silences: both, gain or tones")
	waveform      = flag.String("waveform", "", "Initial waveform: sine, square or triangle")
	gain          = flag.Float64("gain", -1, "Initial gain 0..1")
	freq          = flag.Float64("freq", 0, "Start playing this frequency in Hz")
	chord         = flag.String("chord", "", fmt.Sprintf("Start playing these comma-separated frequencies (at most %d by default)", synth.MaxTones))
	duration      = flag.Duration("duration", 0, "Stop after this long (0 = until quit)")
	logFile       = flag.String("log-file", "", "Log file path")
	noTUI         = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
	controlPort   = flag.Int("port", 0, "Enable remote control on this port")
	noMDNS        = flag.Bool("no-mdns", false, "Disable mDNS advertisement of remote control")
	name          = flag.String("name", "", "Friendly name for remote control and mDNS")
	debug         = flag.Bool("debug", false, "Enable debug logging")
	listDevices   = flag.Bool("list-devices", false, "List output devices for the backend and exit")
	showVersion   = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := loadConfig()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}

	if *listDevices {
		printDevices(cfg)
		return
	}

	// Set up logging
	f, err := os.OpenFile(cfg.LogFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if cfg.TUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		// Streaming logs mode: log to both stdout and file
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	log.Printf("Starting %s (backend: %s, %d buffers x %d samples)",
		version.String(), cfg.Output.Backend, cfg.Engine.BufferCount, cfg.Engine.BufferSamples)

	sink, err := output.New(cfg.Output.Backend, cfg.OutputOptions())
	if err != nil {
		log.Fatalf("Failed to create output: %v", err)
	}

	// Engine and control callbacks may fire before the TUI exists
	var refresher ui.Refresher
	refreshTUI := refresher.Refresh

	ecfg := cfg.EngineConfig()
	ecfg.OnError = func(err error) {
		log.Printf("Engine error: %v", err)
		refreshTUI()
	}
	ecfg.OnStateChange = func(from, to engine.State) {
		if *debug {
			log.Printf("[DEBUG] Engine state: %v -> %v", from, to)
		}
	}

	eng := engine.New(sink, ecfg)
	if err := applyInitialState(eng, cfg); err != nil {
		log.Fatalf("Invalid initial tone: %v", err)
	}

	if err := eng.Start(); err != nil {
		if errors.Is(err, engine.ErrNoDevice) {
			log.Fatalf("No audio output device available (try -backend null or -wav out.wav): %v", err)
		}
		log.Fatalf("Failed to start engine: %v", err)
	}

	// Remote control
	var ctrlServer *control.Server
	var mdnsMgr *discovery.Manager
	if cfg.Control.Enabled {
		ctrlServer = control.NewServer(eng, control.Config{
			Port:     cfg.Control.Port,
			Name:     cfg.Control.Name,
			Debug:    *debug,
			OnChange: refreshTUI,
		})
		if err := ctrlServer.Start(); err != nil {
			log.Printf("Failed to start control server: %v", err)
			ctrlServer = nil
		}

		if ctrlServer != nil && cfg.Control.MDNS {
			mdnsMgr = discovery.NewManager(discovery.Config{
				ServiceName: cfg.Control.Name,
				Port:        cfg.Control.Port,
				Path:        control.Path,
			})
			if err := mdnsMgr.Advertise(); err != nil {
				log.Printf("Failed to start mDNS advertisement: %v", err)
			}
		}
	}

	// Handle shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	var timeout <-chan time.Time
	if *duration > 0 {
		timeout = time.After(*duration)
	}

	if cfg.TUI {
		tui := ui.New(eng, version.String())
		refresher.Attach(tui)
		go func() {
			select {
			case <-sigChan:
			case <-timeout:
			}
			tui.Stop()
		}()
		if err := tui.Run(); err != nil {
			log.Printf("TUI error: %v", err)
		}
	} else {
		log.Printf("TUI disabled - press Ctrl-C to stop")
		select {
		case sig := <-sigChan:
			log.Printf("Received %v signal, shutting down", sig)
		case <-timeout:
			log.Printf("Duration elapsed, shutting down")
		}
	}

	if ctrlServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := ctrlServer.Stop(ctx); err != nil {
			log.Printf("Error stopping control server: %v", err)
		}
		cancel()
	}
	if mdnsMgr != nil {
		mdnsMgr.Stop()
	}

	if err := eng.Stop(); err != nil {
		log.Printf("Error stopping engine: %v", err)
	}
	if err := eng.Err(); err != nil {
		log.Printf("Engine had faulted: %v", err)
	}

	log.Printf("Stopped after %.1fs of audio", eng.PhaseTime())
}

// loadConfig reads the config file, if any, and applies explicitly set flags
func loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "backend":
			cfg.Output.Backend = *backend
		case "device":
			cfg.Output.Device = *device
		case "wav":
			cfg.Output.Backend = output.BackendWAV
			cfg.Output.WAVPath = *wavPath
		case "buffer-samples":
			cfg.Engine.BufferSamples = *bufferSamples
		case "buffers":
			cfg.Engine.BufferCount = *bufferCount
		case "mute-mode":
			cfg.Engine.MuteMode = *muteMode
		case "waveform":
			cfg.Engine.Waveform = *waveform
		case "gain":
			cfg.Engine.Gain = *gain
		case "log-file":
			cfg.LogFile = *logFile
		case "no-tui":
			cfg.TUI = !*noTUI
		case "port":
			cfg.Control.Enabled = true
			cfg.Control.Port = *controlPort
		case "no-mdns":
			cfg.Control.MDNS = !*noMDNS
		case "name":
			cfg.Control.Name = *name
		}
	})

	if cfg.Control.Name == "" || cfg.Control.Name == "tonestream" {
		if hostname, err := os.Hostname(); err == nil {
			cfg.Control.Name = fmt.Sprintf("%s-tonestream", hostname)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyInitialState sets the configured waveform and gain and any tone given on the command line
func applyInitialState(eng *engine.Engine, cfg *config.Config) error {
	w := cfg.InitialWaveform()
	if err := eng.SetWaveform(w); err != nil {
		return err
	}
	eng.SetGain(cfg.Engine.Gain)

	switch {
	case *chord != "":
		freqs, err := parseFrequencies(*chord)
		if err != nil {
			return err
		}
		return eng.SetChord(freqs, w, cfg.Engine.Gain)
	case *freq > 0:
		return eng.SetTone(*freq, w, cfg.Engine.Gain)
	}
	return nil
}

func parseFrequencies(s string) ([]float64, error) {
	var freqs []float64
	for _, part := range strings.Split(s, ",") {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return nil, fmt.Errorf("bad frequency %q: %w", part, err)
		}
		freqs = append(freqs, f)
	}
	return freqs, nil
}

func printDevices(cfg *config.Config) {
	devices, err := output.ListDevices(cfg.Output.Backend, cfg.OutputOptions())
	if err != nil {
		log.Fatalf("Failed to list %s devices: %v", cfg.Output.Backend, err)
	}

	fmt.Printf("%s output devices:\n", cfg.Output.Backend)
	for _, d := range devices {
		marker := " "
		if d.Default {
			marker = "*"
		}
		fmt.Printf(" %s %s (%s)\n", marker, d.Name, d.ID)
	}
	fmt.Printf("Format: %d Hz, %d channel, %d-bit, %d samples per buffer\n",
		audio.SampleRate, audio.Channels, audio.BitDepth, cfg.Engine.BufferSamples)
}
