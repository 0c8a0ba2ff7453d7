package audio

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/petems/eva/internal/config"
)

var (
	// ErrDeviceOpen is returned when the driver fails to open or configure a device.
	ErrDeviceOpen = errors.New("audio: device open failed")
	// ErrBufferAllocation is returned when hardware buffers can't be allocated.
	ErrBufferAllocation = errors.New("audio: buffer allocation failed")
	// ErrOverrun is returned by pull-style reads when overrun recovery failed.
	ErrOverrun = errors.New("audio: overrun")
	// ErrUnsupportedPlatform is returned by every capture call on builds without a driver.
	ErrUnsupportedPlatform = errors.New("audio: capture not supported on this platform")
	// ErrDeviceInit wraps any failure to start capture.
	ErrDeviceInit = errors.New("audio: device initialization failed")
)

// Backend is a platform capture driver exposed as a blocking block stream.
type Backend interface {
	// Start opens the device and begins capture. Calling Start on a started
	// backend is a no-op. Cancelling ctx stops the backend.
	Start(ctx context.Context) error
	// Read blocks until the next block is available. It returns io.EOF once the
	// backend has stopped and nothing is left to deliver.
	Read() ([]int16, error)
	// Config reports the negotiated capture parameters.
	Config() Config
	// Close stops capture and releases the device. No callbacks run after
	// Close returns.
	Close() error
}

// Device represents an audio input device
type Device struct {
	ID       string
	Name     string
	HostAPI  string
	Channels int
	Default  bool
}

// Mode selects the capture backend.
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeCallback Mode = "callback" // push-style
	ModeBlocking Mode = "blocking" // pull-style
)

// Resolve maps ModeAuto to the preferred mode for goos.
func (m Mode) Resolve(goos string) Mode {
	if m != ModeAuto && m != "" {
		return m
	}
	if goos == "linux" {
		return ModeBlocking
	}
	return ModeCallback
}

// Config holds the capture parameters. Backends may adjust SampleRate and
// FramesPerBuffer during Start.
type Config struct {
	SampleRate      uint
	Channels        uint
	FramesPerBuffer uint
	Device          string
	Mode            Mode
}

// BlockSamples is the number of interleaved samples in one full block.
func (c Config) BlockSamples() int {
	return int(c.FramesPerBuffer * c.Channels)
}

// FromConfig validates the audio config section and converts it.
func FromConfig(c config.AudioConfig) (Config, error) {
	cfg := Config{
		SampleRate:      c.SampleRate,
		Channels:        c.Channels,
		FramesPerBuffer: c.FramesPerBuffer,
		Device:          c.Device,
		Mode:            Mode(c.Mode),
	}
	if cfg.SampleRate == 0 || cfg.Channels == 0 || cfg.FramesPerBuffer == 0 {
		return cfg, fmt.Errorf("audio: invalid config %+v", cfg)
	}
	switch cfg.Mode {
	case "", ModeAuto:
		cfg.Mode = ModeAuto.Resolve(runtime.GOOS)
	case ModeCallback, ModeBlocking:
	default:
		return cfg, fmt.Errorf("audio: unknown mode %q", c.Mode)
	}
	return cfg, nil
}

// stream is the part of a driver stream the backends drive.
type stream interface {
	Start() error
	Stop() error
	Close() error
}

// blockingStream reads FramesPerBuffer frames into a buffer owned by the
// driver. Recover restarts the stream after an overrun.
type blockingStream interface {
	stream
	Read() error
	Recover() error
}
