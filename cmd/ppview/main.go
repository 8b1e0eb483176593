// Command ppview plays a synthetic paint preview.
//
// With -png it loads the preview, waits for the first viewport to be fully
// tiled and writes a snapshot. Otherwise it starts an interactive player in
// the terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"image/color"
	"image/png"
	"io"
	"os"
	"time"

	"github.com/gogpu/preview"
	"github.com/gogpu/preview/compositor"
	"github.com/gogpu/preview/internal/logging"
	"github.com/gogpu/preview/surface"
)

type config struct {
	width   int
	height  int
	output  string
	delay   time.Duration
	workers int
	debug   bool
	logFile string
}

func main() {
	var cfg config
	flag.IntVar(&cfg.width, "width", 800, "snapshot width in pixels")
	flag.IntVar(&cfg.height, "height", 600, "snapshot height in pixels")
	flag.StringVar(&cfg.output, "png", "", "write a snapshot to this file instead of starting the player")
	flag.DurationVar(&cfg.delay, "delay", 20*time.Millisecond, "simulated tile render latency")
	flag.IntVar(&cfg.workers, "workers", 4, "concurrent tile renders")
	flag.BoolVar(&cfg.debug, "debug", false, "draw the frame debug overlay")
	flag.StringVar(&cfg.logFile, "log", "", "log file for the interactive player")
	flag.Parse()

	if err := run(context.Background(), cfg); err != nil {
		logging.New("ppview").Error("ppview failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config) error {
	interactive := cfg.output == ""
	if interactive {
		// The terminal belongs to the player; log to a file or nowhere.
		var w io.Writer = io.Discard
		if cfg.logFile != "" {
			f, err := os.Create(cfg.logFile)
			if err != nil {
				return fmt.Errorf("ppview: open log: %w", err)
			}
			defer f.Close()
			w = f
		}
		logging.Init(w)
	}
	preview.SetLogger(logging.New("preview"))

	mem, err := compositor.NewMemory(demoDocument(), compositor.WithRenderDelay(cfg.delay))
	if err != nil {
		return err
	}
	src := compositor.NewAsync(mem, cfg.workers)
	composer := surface.NewComposer(surface.Options{
		Background:  color.RGBA{R: 0x30, G: 0x30, B: 0x30, A: 0xff},
		Placeholder: color.RGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff},
		Debug:       cfg.debug,
	})

	if interactive {
		return runInteractive(ctx, src, composer)
	}
	return snapshot(ctx, src, composer, cfg)
}

func snapshot(ctx context.Context, src preview.Source, composer *surface.Composer, cfg config) error {
	log := logging.New("snapshot")
	start := time.Now()

	p, err := preview.Load(ctx, src, cfg.width, cfg.height,
		preview.WithSurfaceFactory(composer.NewSurface),
		preview.WithFirstPaintPolicy(preview.FirstPaintRequiredTiles))
	if err != nil {
		return err
	}
	defer p.Close()

	if err := waitForTiles(ctx, p, 10*time.Second); err != nil {
		return err
	}

	img := composer.Snapshot(p.Root().ID(), cfg.width, cfg.height)
	f, err := os.Create(cfg.output)
	if err != nil {
		return fmt.Errorf("ppview: create snapshot: %w", err)
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("ppview: encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("ppview: write snapshot: %w", err)
	}
	log.Info("snapshot written",
		"path", cfg.output,
		"size", fmt.Sprintf("%dx%d", cfg.width, cfg.height),
		"elapsed", time.Since(start).Round(time.Millisecond))
	return nil
}

// waitForTiles drains tile completions on the calling goroutine until every
// visible frame is fully tiled.
func waitForTiles(ctx context.Context, p *preview.Player, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	for !p.RequiredTilesLoaded() {
		select {
		case <-p.Ready():
			p.RunPending()
		case <-ctx.Done():
			return fmt.Errorf("ppview: waiting for tiles: %w", ctx.Err())
		}
	}
	return nil
}
