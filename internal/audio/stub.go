//go:build !cgo

package audio

import (
	"context"

	"github.com/rs/zerolog"
)

// stubBackend keeps eva buildable without a native audio driver.
type stubBackend struct {
	cfg Config
}

func newBackend(cfg Config, _ zerolog.Logger) Backend {
	return &stubBackend{cfg: cfg}
}

func (s *stubBackend) Start(context.Context) error { return ErrUnsupportedPlatform }

func (s *stubBackend) Read() ([]int16, error) { return nil, ErrUnsupportedPlatform }

func (s *stubBackend) Config() Config { return s.cfg }

func (s *stubBackend) Close() error { return nil }

// ListDevices reports no devices on builds without a native driver.
func ListDevices() ([]Device, error) {
	return nil, nil
}
