//go:build cgo

package audio

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/gordonklaus/portaudio"
	"github.com/rs/zerolog"
)

func newBackend(cfg Config, log zerolog.Logger) Backend {
	if cfg.Mode == ModeCallback {
		return newPushBackend(cfg, func(c Config, deliver func([]int16)) (stream, Config, error) {
			return openCallbackStream(c, deliver, log)
		}, log)
	}
	return newPullBackend(cfg, func(c Config) (blockingStream, []int16, Config, error) {
		return openBlockingStream(c, log)
	}, log)
}

// paStream owns one PortAudio stream plus the library reference taken for it.
type paStream struct {
	*portaudio.Stream
}

func (s paStream) Close() error {
	err := s.Stream.Close()
	if terr := portaudio.Terminate(); err == nil {
		err = terr
	}
	return err
}

// Recover restarts the stream, clearing the driver's overflow state.
func (s paStream) Recover() error {
	if err := s.Stream.Stop(); err != nil {
		return err
	}
	return s.Stream.Start()
}

func openCallbackStream(cfg Config, deliver func([]int16), log zerolog.Logger) (stream, Config, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, cfg, fmt.Errorf("%w: initialize PortAudio: %v", ErrDeviceOpen, err)
	}

	callback := func(in []int16) {
		deliver(in)
	}

	params, cfg, err := streamParams(cfg, log, callback)
	if err != nil {
		portaudio.Terminate()
		return nil, cfg, err
	}
	params.Input.Latency = latencyFor(cfg)

	st, err := portaudio.OpenStream(params, callback)
	if err != nil {
		portaudio.Terminate()
		return nil, cfg, classify("open callback stream", err)
	}

	return paStream{st}, negotiated(st, cfg), nil
}

func openBlockingStream(cfg Config, log zerolog.Logger) (blockingStream, []int16, Config, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, nil, cfg, fmt.Errorf("%w: initialize PortAudio: %v", ErrDeviceOpen, err)
	}

	buf := make([]int16, cfg.BlockSamples())
	params, cfg, err := streamParams(cfg, log, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, nil, cfg, err
	}

	st, err := portaudio.OpenStream(params, buf)
	if err != nil {
		portaudio.Terminate()
		return nil, nil, cfg, classify("open blocking stream", err)
	}

	return paStream{st}, buf, negotiated(st, cfg), nil
}

// streamParams resolves the device and negotiates the sample rate. An
// unsupported rate falls back to the device default, which is reported in
// the returned config.
func streamParams(cfg Config, log zerolog.Logger, arg interface{}) (portaudio.StreamParameters, Config, error) {
	device, err := findDevice(cfg.Device)
	if err != nil {
		return portaudio.StreamParameters{}, cfg, err
	}
	if device.MaxInputChannels < int(cfg.Channels) {
		return portaudio.StreamParameters{}, cfg, fmt.Errorf("%w: %s has %d input channels, need %d",
			ErrDeviceOpen, device.Name, device.MaxInputChannels, cfg.Channels)
	}

	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Device:   device,
			Channels: int(cfg.Channels),
			Latency:  device.DefaultLowInputLatency,
		},
		SampleRate:      float64(cfg.SampleRate),
		FramesPerBuffer: int(cfg.FramesPerBuffer),
	}

	if err := portaudio.IsFormatSupported(params, arg); err != nil {
		fallback := uint(device.DefaultSampleRate)
		log.Warn().
			Err(err).
			Uint("requested", cfg.SampleRate).
			Uint("fallback", fallback).
			Str("device", device.Name).
			Msg("Requested sample rate not supported")
		params.SampleRate = device.DefaultSampleRate
		cfg.SampleRate = fallback
	}

	return params, cfg, nil
}

func negotiated(st *portaudio.Stream, cfg Config) Config {
	if info := st.Info(); info != nil && info.SampleRate > 0 {
		cfg.SampleRate = uint(info.SampleRate)
	}
	return cfg
}

func findDevice(id string) (*portaudio.DeviceInfo, error) {
	if id == "" || id == "default" {
		device, err := portaudio.DefaultInputDevice()
		if err != nil {
			return nil, fmt.Errorf("%w: default input device: %v", ErrDeviceOpen, err)
		}
		return device, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("%w: enumerate devices: %v", ErrDeviceOpen, err)
	}
	for i, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		if strconv.Itoa(i) == id || d.Name == id {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: device not found: %s", ErrDeviceOpen, id)
}

func classify(op string, err error) error {
	if errors.Is(err, portaudio.InsufficientMemory) {
		return fmt.Errorf("%w: %s: %v", ErrBufferAllocation, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrDeviceOpen, op, err)
}

// ListDevices enumerates input-capable devices. IDs are PortAudio device
// indexes and can be used as the audio.device config value.
func ListDevices() ([]Device, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize PortAudio: %w", err)
	}
	defer portaudio.Terminate()

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("failed to list devices: %w", err)
	}

	defaultDevice, _ := portaudio.DefaultInputDevice()

	result := make([]Device, 0, len(devices))
	for i, d := range devices {
		if d.MaxInputChannels == 0 {
			continue
		}
		dev := Device{
			ID:       strconv.Itoa(i),
			Name:     d.Name,
			Channels: d.MaxInputChannels,
		}
		dev.HostAPI = hostAPIName(d)
		if defaultDevice != nil && d.Name == defaultDevice.Name && hostAPIName(d) == hostAPIName(defaultDevice) {
			dev.Default = true
		}
		result = append(result, dev)
	}

	return result, nil
}

func hostAPIName(d *portaudio.DeviceInfo) string {
	if d.HostApi == nil {
		return ""
	}
	return d.HostApi.Name
}
