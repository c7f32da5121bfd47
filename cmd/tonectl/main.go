// ABOUTME: Remote-control CLI for tonestream engines
// ABOUTME: Browses for engines over mDNS and sends one command
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Resonate-Protocol/tonestream/internal/control"
	"github.com/Resonate-Protocol/tonestream/internal/discovery"
)

var (
	addr     = flag.String("addr", "", "Engine address host:port (default: first engine found via mDNS)")
	browse   = flag.Duration("browse", 3*time.Second, "How long to browse for engines")
	waveform = flag.String("waveform", "", "Waveform for tone/chord (default: keep current)")
	gain     = flag.Float64("gain", -1, "Gain for tone/chord (default: keep current)")
	verbose  = flag.Bool("v", false, "Log connection details")
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: tonectl [flags] <command> [args]

Commands:
  list                 browse for engines
  status               print engine status
  tone <hz>            play one frequency
  chord <hz,hz,...>    play several frequencies
  gain <0..1>          set gain
  waveform <name>      sine, square or triangle
  mute                 silence the engine
  restart              stop and start the engine, clearing a fault

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if !*verbose {
		log.SetOutput(io.Discard)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	if err := execute(args); err != nil {
		fmt.Fprintf(os.Stderr, "tonectl: %v\n", err)
		os.Exit(1)
	}
}

func execute(args []string) error {
	if args[0] == "list" {
		return list(*browse)
	}

	target := *addr
	if target == "" {
		services, err := discovery.Discover(*browse)
		if err != nil || len(services) == 0 {
			return fmt.Errorf("no engine found via mDNS (use -addr host:port)")
		}
		target = services[0].Addr()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return session(ctx, target, args)
}

func list(timeout time.Duration) error {
	services, err := discovery.Discover(timeout)
	if err != nil {
		return fmt.Errorf("browse failed: %w", err)
	}
	if len(services) == 0 {
		fmt.Println("No engines found")
		return nil
	}
	for _, svc := range services {
		fmt.Printf("%-30s %-22s %s\n", svc.Name, svc.Addr(), svc.Version)
	}
	return nil
}

// session connects to target, runs one command and closes the connection
func session(ctx context.Context, target string, args []string) error {
	hostname, _ := os.Hostname()
	client, err := control.Dial(ctx, target, fmt.Sprintf("%s-tonectl", hostname))
	if err != nil {
		return fmt.Errorf("connect to %s: %w", target, err)
	}
	defer client.Close()

	if err := run(client, args[0], args[1:]); err != nil {
		return fmt.Errorf("%s: %w", args[0], err)
	}
	return nil
}

func run(client *control.Client, command string, args []string) error {
	switch command {
	case "status":
		st, err := client.Status()
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(st, "", "  ")
		fmt.Println(string(out))
		return nil
	case "tone":
		if len(args) != 1 {
			return fmt.Errorf("usage: tone <hz>")
		}
		f, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad frequency %q", args[0])
		}
		return client.Tone(f, *waveform, *gain)
	case "chord":
		if len(args) != 1 {
			return fmt.Errorf("usage: chord <hz,hz,...>")
		}
		var freqs []float64
		for _, part := range strings.Split(args[0], ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
			if err != nil {
				return fmt.Errorf("bad frequency %q", part)
			}
			freqs = append(freqs, f)
		}
		return client.Chord(freqs, *waveform, *gain)
	case "gain":
		if len(args) != 1 {
			return fmt.Errorf("usage: gain <0..1>")
		}
		g, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("bad gain %q", args[0])
		}
		return client.Gain(g)
	case "waveform":
		if len(args) != 1 {
			return fmt.Errorf("usage: waveform <sine|square|triangle>")
		}
		return client.Waveform(args[0])
	case "mute":
		return client.Mute()
	case "restart":
		return client.Restart()
	default:
		return fmt.Errorf("unknown command %q", command)
	}
}
