package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
)

// blockingOpener opens a driver stream whose Read fills buf with one block.
type blockingOpener func(cfg Config) (st blockingStream, buf []int16, negotiated Config, err error)

// pullBackend reads straight from a blocking driver stream on the caller's
// goroutine. Reads and Close are serialized so the stream is never released
// during a read.
type pullBackend struct {
	open blockingOpener
	log  zerolog.Logger

	mu           sync.Mutex
	cfg          Config
	stream       blockingStream
	buf          []int16
	started      bool
	stopOnCancel func() bool

	stopped  atomic.Bool
	overruns atomic.Int64
}

func newPullBackend(cfg Config, open blockingOpener, log zerolog.Logger) *pullBackend {
	return &pullBackend{
		open: open,
		cfg:  cfg,
		log:  log,
	}
}

func (b *pullBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	st, buf, cfg, err := b.open(b.cfg)
	if err != nil {
		return err
	}
	if err := st.Start(); err != nil {
		st.Close()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceOpen, err)
	}

	b.stream = st
	b.buf = buf
	b.cfg = cfg
	b.started = true
	b.stopOnCancel = context.AfterFunc(ctx, func() { b.stopped.Store(true) })

	b.log.Debug().
		Uint("sample_rate", cfg.SampleRate).
		Uint("frames_per_buffer", cfg.FramesPerBuffer).
		Msg("Blocking capture started")
	return nil
}

func (b *pullBackend) Read() ([]int16, error) {
	if b.stopped.Load() {
		return nil, io.EOF
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stream == nil {
		return nil, io.EOF
	}

	if err := b.stream.Read(); err != nil {
		b.overruns.Add(1)
		b.log.Warn().Err(err).Msg("Capture overrun, recovering")

		if rerr := b.stream.Recover(); rerr != nil {
			return nil, fmt.Errorf("%w: recovery failed: %v (read: %v)", ErrOverrun, rerr, err)
		}
		if err := b.stream.Read(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrOverrun, err)
		}
	}

	block := make([]int16, len(b.buf))
	copy(block, b.buf)
	return block, nil
}

func (b *pullBackend) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Overruns reports how many reads needed recovery.
func (b *pullBackend) Overruns() int64 {
	return b.overruns.Load()
}

func (b *pullBackend) Close() error {
	b.stopped.Store(true)

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopOnCancel != nil {
		b.stopOnCancel()
		b.stopOnCancel = nil
	}
	if b.stream == nil {
		return nil
	}

	st := b.stream
	b.stream = nil
	err := st.Stop()
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	return err
}
