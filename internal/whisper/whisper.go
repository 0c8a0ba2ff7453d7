package whisper

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"

	"github.com/petems/eva/internal/audio"
	"github.com/petems/eva/internal/config"
)

// SampleRate is the only rate whisper.cpp accepts.
const SampleRate = 16000

// ErrUnavailable means no recognizer could be set up. Callers keep running in
// detection-only mode.
var ErrUnavailable = errors.New("whisper: transcription unavailable")

// engine runs one inference over 16 kHz mono samples.
type engine interface {
	Transcribe(samples []float32) (string, error)
	Close() error
}

// Recognizer accumulates segment audio and transcribes it on Flush. A
// Recognizer without an engine is unavailable and ignores everything.
//
// Fed audio is kept as mono at the capture rate and resampled once per
// segment, so block boundaries never drop fractional samples.
type Recognizer struct {
	mu         sync.Mutex
	engine     engine
	model      string
	sampleRate int
	channels   int
	pending    []float32 // mono at sampleRate
	converted  []float32 // 16 kHz audio from before a format change
	log        zerolog.Logger
}

// New loads the configured model, downloading it first when allowed.
// sampleRate and channels describe the blocks that will be fed. Any failure
// wraps ErrUnavailable.
func New(ctx context.Context, cfg config.WhisperConfig, sampleRate, channels uint, log zerolog.Logger) (*Recognizer, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("%w: disabled in config", ErrUnavailable)
	}

	modelPath, err := ensureModel(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	eng, err := newEngine(modelPath, cfg.Language, cfg.Threads)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	return newRecognizer(eng, modelPath, int(sampleRate), int(channels), log), nil
}

func newRecognizer(eng engine, model string, sampleRate, channels int, log zerolog.Logger) *Recognizer {
	if channels <= 0 {
		channels = 1
	}
	return &Recognizer{
		engine:     eng,
		model:      model,
		sampleRate: sampleRate,
		channels:   channels,
		pending:    make([]float32, 0, max(sampleRate, SampleRate)*30), // 30 second buffer
		log:        log,
	}
}

// Disabled returns a recognizer that is never available.
func Disabled() *Recognizer {
	return &Recognizer{}
}

// ModelPath resolves the model file for cfg.
func ModelPath(cfg config.WhisperConfig) string {
	if cfg.ModelPath != "" {
		return cfg.ModelPath
	}
	return filepath.Join(config.ModelsPath(), cfg.Model+".bin")
}

func ensureModel(ctx context.Context, cfg config.WhisperConfig, log zerolog.Logger) (string, error) {
	path := ModelPath(cfg)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("stat model: %w", err)
	}

	// An explicit path is never downloaded.
	if cfg.ModelPath != "" || !cfg.Download {
		return "", fmt.Errorf("model not found at %s", path)
	}
	if err := downloadModel(ctx, log, cfg.Model, path); err != nil {
		return "", fmt.Errorf("failed to download model: %w", err)
	}
	return path, nil
}

func (r *Recognizer) Available() bool {
	return r != nil && r.engine != nil
}

// Model returns the loaded model path, or "" when unavailable.
func (r *Recognizer) Model() string {
	if r == nil {
		return ""
	}
	return r.model
}

// Feed downmixes block and appends it to the segment.
func (r *Recognizer) Feed(block []int16) {
	if !r.Available() || len(block) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending = append(r.pending, audio.ToMonoFloat32(block, r.channels)...)
}

// SetInputFormat updates the format of blocks passed to Feed, typically
// once capture has negotiated its rate. Audio already fed keeps its rate.
func (r *Recognizer) SetInputFormat(sampleRate, channels uint) {
	if !r.Available() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.pending) > 0 && int(sampleRate) != r.sampleRate {
		r.converted = append(r.converted, Resample(r.pending, r.sampleRate, SampleRate)...)
		r.pending = r.pending[:0]
	}
	r.sampleRate = int(sampleRate)
	r.channels = max(int(channels), 1)
}

// Buffered returns the number of 16 kHz samples waiting for Flush.
func (r *Recognizer) Buffered() int {
	if !r.Available() {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.converted) + resampledLen(len(r.pending), r.sampleRate, SampleRate)
}

// Flush transcribes everything fed since the last Flush and resets the
// buffer, whether or not inference succeeds.
func (r *Recognizer) Flush() (string, error) {
	if !r.Available() {
		return "", nil
	}

	r.mu.Lock()
	samples := append(r.converted, Resample(r.pending, r.sampleRate, SampleRate)...)
	r.converted = nil
	r.pending = make([]float32, 0, cap(r.pending))
	r.mu.Unlock()

	if len(samples) == 0 {
		return "", nil
	}

	r.log.Debug().
		Int("samples", len(samples)).
		Float64("seconds", float64(len(samples))/SampleRate).
		Msg("Transcribing segment")

	return r.engine.Transcribe(samples)
}

func (r *Recognizer) Close() error {
	if !r.Available() {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	err := r.engine.Close()
	r.engine = nil
	return err
}

// Resample converts mono samples from srcRate to dstRate by linear
// interpolation. Input is returned unchanged when the rates match or either
// rate is invalid.
func Resample(in []float32, srcRate, dstRate int) []float32 {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate || len(in) == 0 {
		return in
	}
	n := resampledLen(len(in), srcRate, dstRate)
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	ratio := float64(srcRate) / float64(dstRate)
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		s0 := in[idx]
		s1 := s0
		if idx+1 < len(in) {
			s1 = in[idx+1]
		}
		out[i] = s0*(1-frac) + s1*frac
	}
	return out
}

// resampledLen is the length Resample produces for n input samples.
func resampledLen(n, srcRate, dstRate int) int {
	if srcRate <= 0 || dstRate <= 0 || srcRate == dstRate {
		return n
	}
	return int(int64(n) * int64(dstRate) / int64(srcRate))
}
