package audio

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/eva/internal/config"
)

// Capture owns exactly one Backend and is the only capture API the rest of
// eva uses. Read must only be called from one goroutine at a time.
type Capture struct {
	backend   Backend
	requested Config
	log       zerolog.Logger

	closeOnce sync.Once
	closeErr  error
}

// New builds a capture for the configured mode on the current platform.
func New(cfg config.AudioConfig, log zerolog.Logger) (*Capture, error) {
	c, err := FromConfig(cfg)
	if err != nil {
		return nil, err
	}
	return newCapture(newBackend(c, log), c, log), nil
}

func newCapture(b Backend, requested Config, log zerolog.Logger) *Capture {
	return &Capture{
		backend:   b,
		requested: requested,
		log:       log,
	}
}

// Start opens the device. Any failure is fatal to the capture pipeline and
// wraps ErrDeviceInit.
func (c *Capture) Start(ctx context.Context) error {
	if err := c.backend.Start(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrDeviceInit, err)
	}

	got := c.backend.Config()
	if got.SampleRate != c.requested.SampleRate {
		c.log.Warn().
			Uint("requested", c.requested.SampleRate).
			Uint("actual", got.SampleRate).
			Msgf("Sample rate adjusted to %d Hz", got.SampleRate)
	}
	if got.FramesPerBuffer != c.requested.FramesPerBuffer {
		c.log.Warn().
			Uint("requested", c.requested.FramesPerBuffer).
			Uint("actual", got.FramesPerBuffer).
			Msg("Frames per buffer adjusted")
	}

	c.log.Info().
		Str("device", got.Device).
		Str("mode", string(got.Mode)).
		Uint("sample_rate", got.SampleRate).
		Uint("channels", got.Channels).
		Uint("frames_per_buffer", got.FramesPerBuffer).
		Msg("Audio capture started")
	return nil
}

// Read blocks for the next block. io.EOF means capture has stopped.
func (c *Capture) Read() ([]int16, error) {
	return c.backend.Read()
}

// Config returns the negotiated parameters; valid after Start.
func (c *Capture) Config() Config {
	return c.backend.Config()
}

// QueueDepth reports pending blocks for callback backends, zeros otherwise.
func (c *Capture) QueueDepth() (current, highWater int) {
	if q, ok := c.backend.(interface{ QueueDepth() (int, int) }); ok {
		return q.QueueDepth()
	}
	return 0, 0
}

// Overruns reports recovered overruns for blocking backends.
func (c *Capture) Overruns() int64 {
	if o, ok := c.backend.(interface{ Overruns() int64 }); ok {
		return o.Overruns()
	}
	return 0
}

// Close stops capture and releases the device. It is safe to call while a
// Read is blocked on another goroutine, and more than once.
func (c *Capture) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.backend.Close()
	})
	return c.closeErr
}
