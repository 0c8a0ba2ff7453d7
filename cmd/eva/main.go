package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/petems/eva/internal/app"
	"github.com/petems/eva/internal/audio"
	"github.com/petems/eva/internal/config"
	"github.com/petems/eva/internal/inject"
	"github.com/petems/eva/internal/logging"
	"github.com/petems/eva/internal/metrics"
	"github.com/petems/eva/internal/permissions"
	"github.com/petems/eva/internal/tray"
	"github.com/petems/eva/internal/vad"
	"github.com/petems/eva/internal/whisper"
)

var (
	// Version is set via ldflags at build time
	Version = "dev"
	// Commit is set via ldflags at build time
	Commit = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run returns the process exit code. Failures return instead of exiting so
// deferred cleanup releases the device and the model.
func run(args []string) int {
	fs := flag.NewFlagSet("eva", flag.ContinueOnError)
	configPath := fs.String("config", config.Path(), "path to the YAML configuration file")
	listDevices := fs.Bool("list-devices", false, "print input devices and exit")
	logLevel := fs.String("log-level", "", "override log level (trace, debug, info, warn, error)")
	showVersion := fs.Bool("version", false, "print version and exit")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if *showVersion {
		fmt.Printf("eva %s (%s)\n", Version, Commit)
		return 0
	}

	// Load config from XDG/Library/AppData
	cfg, err := config.Load(*configPath)
	if err != nil {
		// Use default logger if config fails to load
		log := logging.New()
		log.Error().Err(err).Msg("Failed to load config")
		return 1
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	// Initialize logger with configured level
	log := logging.NewWithLevel(cfg.LogLevel)

	fmt.Println("Listing input devices...")
	devices, err := audio.ListDevices()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to enumerate input devices")
	}
	audio.WriteDevices(os.Stdout, devices, err)
	if *listDevices {
		return 0
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsureMicrophone(); err != nil {
		log.Error().Err(err).Msg("Required permissions not granted")
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize audio capture
	capture, err := audio.New(cfg.Audio, log)
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize audio")
		return 1
	}
	defer capture.Close()

	// Transcription is optional; detection runs without it.
	var recognizer vad.Recognizer
	rec, err := whisper.New(ctx, cfg.Whisper, cfg.Audio.SampleRate, cfg.Audio.Channels, log)
	switch {
	case err == nil:
		defer rec.Close()
		recognizer = rec
		log.Info().Str("model", rec.Model()).Msg("Transcription enabled")
	case errors.Is(err, whisper.ErrUnavailable):
		log.Warn().Err(err).Msg("Transcription unavailable, running detection only")
	default:
		log.Error().Err(err).Msg("Failed to initialize whisper")
		return 1
	}

	var status app.StatusUpdater
	var trayUI *tray.UI
	if cfg.Tray.Enabled {
		trayUI = tray.New(cfg, *configPath, nil, Version, log) // App reference set below
		status = trayUI
	}

	application, err := app.New(app.Config{
		Capture:    capture,
		Recognizer: recognizer,
		VAD:        vad.ParamsFromConfig(cfg.VAD),
		Injector: inject.NewClipboard(inject.Options{
			Capitalize:  cfg.Output.Capitalize,
			AppendSpace: cfg.Output.AppendSpace,
		}),
		Clipboard:     cfg.Output.Clipboard,
		Metrics:       metrics.New(),
		MetricsAddr:   cfg.Metrics.Listen,
		Logger:        log,
		StatusUpdater: status,
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to initialize app")
		return 1
	}

	log.Info().Str("version", Version).Msg("eva starting...")

	if trayUI == nil {
		err = application.Run(ctx)
	} else {
		// Tray UI - MUST run on main thread
		trayUI.SetController(application)
		done := make(chan error, 1)
		trayUI.Run(func() {
			done <- application.Run(ctx)
			trayUI.Quit()
		}, stop)
		err = <-done
	}

	if err != nil {
		log.Error().Err(err).Msg("Capture failed")
		return 1
	}
	return 0
}
