package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// hardwareBuffers is the number of driver buffers kept in flight by the
// callback backend.
const hardwareBuffers = 3

// callbackOpener opens a driver stream that calls deliver from its own
// audio thread with each captured buffer. It returns the negotiated config.
type callbackOpener func(cfg Config, deliver func([]int16)) (stream, Config, error)

// pushBackend adapts a callback-driven driver to blocking reads.
type pushBackend struct {
	open  callbackOpener
	queue *blockQueue
	log   zerolog.Logger

	mu           sync.Mutex
	cfg          Config
	stream       stream
	started      bool
	stopOnCancel func() bool
}

func newPushBackend(cfg Config, open callbackOpener, log zerolog.Logger) *pushBackend {
	return &pushBackend{
		open:  open,
		queue: newBlockQueue(),
		cfg:   cfg,
		log:   log,
	}
}

func (b *pushBackend) Start(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.started {
		return nil
	}

	st, cfg, err := b.open(b.cfg, b.queue.deliver)
	if err != nil {
		return err
	}

	// Accept deliveries before the driver starts calling back.
	b.queue.open()
	if err := st.Start(); err != nil {
		b.queue.stop()
		st.Close()
		return fmt.Errorf("%w: start stream: %v", ErrDeviceOpen, err)
	}

	b.stream = st
	b.cfg = cfg
	b.started = true
	b.stopOnCancel = context.AfterFunc(ctx, b.queue.stop)

	b.log.Debug().
		Uint("sample_rate", cfg.SampleRate).
		Uint("frames_per_buffer", cfg.FramesPerBuffer).
		Int("buffers", hardwareBuffers).
		Msg("Callback capture started")
	return nil
}

func (b *pushBackend) Read() ([]int16, error) {
	block, ok := b.queue.pop()
	if !ok {
		return nil, io.EOF
	}
	return block, nil
}

func (b *pushBackend) Config() Config {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// QueueDepth reports the pending block count and its high-water mark.
func (b *pushBackend) QueueDepth() (current, highWater int) {
	return b.queue.depth()
}

func (b *pushBackend) Close() error {
	// Wake any reader first; it must not wait on a stream being torn down.
	b.queue.stop()

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

	// Stop returns only after the last callback has finished.
	err := st.Stop()
	if cerr := st.Close(); err == nil {
		err = cerr
	}
	return err
}

// latencyFor sizes the driver latency to hold hardwareBuffers blocks.
func latencyFor(cfg Config) time.Duration {
	if cfg.SampleRate == 0 {
		return 0
	}
	return time.Duration(hardwareBuffers) * time.Duration(cfg.FramesPerBuffer) * time.Second / time.Duration(cfg.SampleRate)
}
