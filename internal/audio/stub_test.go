//go:build !cgo

package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestStubBackendIsUnsupported(t *testing.T) {
	c := newCapture(newBackend(testConfig(), zerolog.Nop()), testConfig(), zerolog.Nop())
	defer c.Close()

	err := c.Start(context.Background())
	if !errors.Is(err, ErrUnsupportedPlatform) || !errors.Is(err, ErrDeviceInit) {
		t.Fatalf("expected unsupported platform device init error, got %v", err)
	}
	if _, err := c.Read(); !errors.Is(err, ErrUnsupportedPlatform) {
		t.Fatalf("expected ErrUnsupportedPlatform from Read, got %v", err)
	}
}

func TestStubListDevices(t *testing.T) {
	devices, err := ListDevices()
	if err != nil || len(devices) != 0 {
		t.Fatalf("expected no devices and no error, got %v %v", devices, err)
	}
}
