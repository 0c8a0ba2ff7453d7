package app

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	evbus "github.com/asaskevich/EventBus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/petems/eva/internal/audio"
	"github.com/petems/eva/internal/inject"
	"github.com/petems/eva/internal/metrics"
	"github.com/petems/eva/internal/vad"
)

// TopicEvent carries every vad.Event on the bus.
const TopicEvent = "vad:event"

// statsInterval is how often capture queue statistics are published.
const statsInterval = 5 * time.Second

// StatusUpdater is an interface for updating status (e.g., tray icon)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

// Capture is the audio source the app drives.
type Capture interface {
	Start(ctx context.Context) error
	Read() ([]int16, error)
	Config() audio.Config
	QueueDepth() (current, highWater int)
	Overruns() int64
	Close() error
}

type formatSetter interface {
	SetInputFormat(sampleRate, channels uint)
}

type Config struct {
	Capture       Capture
	Recognizer    vad.Recognizer   // Optional - nil runs detection only
	VAD           vad.Params
	Injector      inject.Injector  // Optional - receives transcripts when clipboard output is on
	Clipboard     bool
	Metrics       *metrics.Metrics // Optional
	MetricsAddr   string
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater // Optional - can be nil
}

type App struct {
	capture Capture
	rec     vad.Recognizer
	seg     *vad.Segmenter
	inj     inject.Injector
	metrics *metrics.Metrics
	addr    string
	log     zerolog.Logger
	status  StatusUpdater
	bus     evbus.Bus

	clipboard atomic.Bool
}

// New wires the segmenter and subscribes the event sinks.
func New(cfg Config) (*App, error) {
	rec := cfg.Recognizer
	if rec != nil && cfg.Metrics != nil {
		rec = &timedRecognizer{Recognizer: rec, metrics: cfg.Metrics}
	}

	a := &App{
		capture: cfg.Capture,
		rec:     cfg.Recognizer,
		seg:     vad.New(cfg.VAD, rec),
		inj:     cfg.Injector,
		metrics: cfg.Metrics,
		addr:    cfg.MetricsAddr,
		log:     cfg.Logger,
		status:  cfg.StatusUpdater,
		bus:     evbus.New(),
	}
	a.clipboard.Store(cfg.Clipboard)

	errs := []error{a.bus.Subscribe(TopicEvent, a.logEvent)}
	if a.metrics != nil {
		errs = append(errs, a.bus.Subscribe(TopicEvent, a.countEvent))
	}
	if a.status != nil {
		errs = append(errs, a.bus.Subscribe(TopicEvent, a.updateStatus))
	}
	if a.inj != nil {
		errs = append(errs, a.bus.SubscribeAsync(TopicEvent, a.injectTranscript, true))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("app: subscribe sinks: %w", err)
	}
	return a, nil
}

// Subscribe registers fn for every segmenter event. fn runs on the capture
// goroutine and must not block.
func (a *App) Subscribe(fn func(vad.Event)) error {
	return a.bus.Subscribe(TopicEvent, fn)
}

// SetClipboard turns transcript copying on or off while running.
func (a *App) SetClipboard(enabled bool) {
	a.clipboard.Store(enabled)
}

// Transcribing reports whether segments reach a recognizer.
func (a *App) Transcribing() bool {
	return a.seg.Transcribing()
}

// Run starts capture and segments audio until ctx is cancelled or capture
// fails. A capture start failure is returned without running anything.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)

	// Cancelling gctx stops the capture backend and wakes a blocked Read.
	if err := a.capture.Start(gctx); err != nil {
		return err
	}
	defer a.capture.Close()

	// Tell the recognizer what capture actually negotiated.
	if f, ok := a.rec.(formatSetter); ok {
		c := a.capture.Config()
		f.SetInputFormat(c.SampleRate, c.Channels)
	}

	if a.status != nil {
		a.status.SetIdle()
	}
	a.log.Info().Msg("Running... press Ctrl+C to quit")

	g.Go(func() error {
		// The pipeline ending stops everything else.
		defer cancel()
		err := a.seg.Run(gctx, &meteredSource{src: a.capture, metrics: a.metrics}, a.publish)
		if err != nil {
			return fmt.Errorf("capture pipeline: %w", err)
		}
		return nil
	})

	if a.metrics != nil {
		g.Go(func() error {
			a.publishStats(gctx)
			return nil
		})
		if a.addr != "" {
			g.Go(func() error {
				return a.metrics.Serve(gctx, a.addr, a.log)
			})
		}
	}

	err := g.Wait()
	a.bus.WaitAsync()
	a.log.Info().Msg("Exiting")
	return err
}

func (a *App) publish(ev vad.Event) {
	a.bus.Publish(TopicEvent, ev)
}

func (a *App) publishStats(ctx context.Context) {
	ticker := time.NewTicker(statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			depth, high := a.capture.QueueDepth()
			a.metrics.RecordQueue(depth, high, a.capture.Overruns())
		}
	}
}

// Event sinks

func (a *App) logEvent(ev vad.Event) {
	switch ev.Type {
	case vad.SpeechDetected:
		a.log.Info().Float64("dbfs", ev.Level).Int("block", ev.Block).Msg("Speech detected")
	case vad.SegmentClosed:
		a.log.Debug().Int("block", ev.Block).Msg("Segment closed")
	case vad.Transcript:
		a.log.Info().Str("text", ev.Text).Msg("Transcription")
	case vad.NoSpeech:
		a.log.Info().Msg("Transcription: (no speech recognised)")
	case vad.TranscriptionFailed:
		a.log.Error().Err(ev.Err).Msg("Transcription failed")
	}
}

func (a *App) countEvent(ev vad.Event) {
	switch ev.Type {
	case vad.SpeechDetected:
		a.metrics.SpeechDetected.Inc()
	case vad.SegmentClosed:
		a.metrics.SegmentsClosed.Inc()
	}
}

func (a *App) updateStatus(ev vad.Event) {
	switch ev.Type {
	case vad.SpeechDetected:
		a.status.SetRecording()
	case vad.SegmentClosed:
		if a.seg.Transcribing() {
			a.status.SetProcessing()
		} else {
			a.status.SetIdle()
		}
	case vad.Transcript, vad.NoSpeech:
		a.status.SetIdle()
	case vad.TranscriptionFailed:
		a.status.SetError()
	}
}

func (a *App) injectTranscript(ev vad.Event) {
	if ev.Type != vad.Transcript || !a.clipboard.Load() {
		return
	}
	if err := a.inj.Inject(ev.Text); err != nil {
		a.log.Error().Err(err).Msg("Inject error")
		return
	}
	a.log.Debug().Str("text", ev.Text).Msg("Copied to clipboard")
}
