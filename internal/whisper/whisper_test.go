package whisper

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/petems/eva/internal/config"
)

type fakeEngine struct {
	calls  [][]float32
	text   string
	err    error
	closed bool
}

func (e *fakeEngine) Transcribe(samples []float32) (string, error) {
	e.calls = append(e.calls, samples)
	return e.text, e.err
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

func TestDisabledRecognizer(t *testing.T) {
	r := Disabled()
	if r.Available() {
		t.Fatal("expected disabled recognizer to be unavailable")
	}
	r.Feed([]int16{1, 2, 3})
	text, err := r.Flush()
	if text != "" || err != nil {
		t.Fatalf("expected empty flush, got %q %v", text, err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	var nilRec *Recognizer
	if nilRec.Available() {
		t.Fatal("expected nil recognizer to be unavailable")
	}
}

func TestRecognizerFeedAndFlush(t *testing.T) {
	eng := &fakeEngine{text: "hello there"}
	r := newRecognizer(eng, "base.en.bin", SampleRate, 1, zerolog.Nop())

	r.Feed(make([]int16, 512))
	r.Feed(make([]int16, 512))
	if got := r.Buffered(); got != 1024 {
		t.Fatalf("expected 1024 buffered samples, got %d", got)
	}

	text, err := r.Flush()
	if err != nil || text != "hello there" {
		t.Fatalf("unexpected flush result %q %v", text, err)
	}
	if len(eng.calls) != 1 || len(eng.calls[0]) != 1024 {
		t.Fatalf("expected one inference over 1024 samples, got %d calls", len(eng.calls))
	}
	if got := r.Buffered(); got != 0 {
		t.Fatalf("expected buffer reset after flush, got %d", got)
	}
}

func TestRecognizerFlushEmptySkipsInference(t *testing.T) {
	eng := &fakeEngine{text: "unexpected"}
	r := newRecognizer(eng, "m", SampleRate, 1, zerolog.Nop())

	text, err := r.Flush()
	if text != "" || err != nil {
		t.Fatalf("expected empty flush, got %q %v", text, err)
	}
	if len(eng.calls) != 0 {
		t.Fatalf("expected no inference, got %d", len(eng.calls))
	}
}

func TestRecognizerFlushErrorStillResets(t *testing.T) {
	eng := &fakeEngine{err: errors.New("boom")}
	r := newRecognizer(eng, "m", SampleRate, 1, zerolog.Nop())

	r.Feed(make([]int16, 100))
	if _, err := r.Flush(); err == nil {
		t.Fatal("expected inference error")
	}
	if r.Buffered() != 0 {
		t.Fatal("expected buffer reset after failed flush")
	}
}

func TestRecognizerConvertsStereo48k(t *testing.T) {
	eng := &fakeEngine{}
	r := newRecognizer(eng, "m", 48000, 2, zerolog.Nop())

	// 480 stereo frames at 48 kHz are 10 ms, or 160 samples at 16 kHz.
	block := make([]int16, 960)
	for i := 0; i < len(block); i += 2 {
		block[i] = 16384
		block[i+1] = 0
	}
	r.Feed(block)
	r.Flush()

	got := eng.calls[0]
	if len(got) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(got))
	}
	if math.Abs(float64(got[0])-0.25) > 1e-6 {
		t.Fatalf("expected downmixed 0.25, got %f", got[0])
	}
}

func TestRecognizerClose(t *testing.T) {
	eng := &fakeEngine{}
	r := newRecognizer(eng, "m", SampleRate, 1, zerolog.Nop())

	if err := r.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !eng.closed {
		t.Fatal("expected engine closed")
	}
	if r.Available() {
		t.Fatal("expected recognizer unavailable after Close")
	}
}

func TestResample(t *testing.T) {
	tests := []struct {
		name    string
		inLen   int
		src     int
		dst     int
		wantLen int
	}{
		{name: "same rate", inLen: 100, src: 16000, dst: 16000, wantLen: 100},
		{name: "downsample 48k", inLen: 480, src: 48000, dst: 16000, wantLen: 160},
		{name: "downsample 44.1k", inLen: 441, src: 44100, dst: 16000, wantLen: 160},
		{name: "upsample 8k", inLen: 80, src: 8000, dst: 16000, wantLen: 160},
		{name: "zero source rate", inLen: 10, src: 0, dst: 16000, wantLen: 10},
		{name: "too short", inLen: 1, src: 48000, dst: 16000, wantLen: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resample(make([]float32, tt.inLen), tt.src, tt.dst)
			if len(got) != tt.wantLen {
				t.Errorf("expected %d samples, got %d", tt.wantLen, len(got))
			}
		})
	}
}

func TestResampleInterpolates(t *testing.T) {
	got := Resample([]float32{0, 1}, 8000, 16000)
	want := []float32{0, 0.5, 1, 1}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > 1e-6 {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestNewDisabledInConfig(t *testing.T) {
	_, err := New(context.Background(), config.WhisperConfig{Enabled: false}, 16000, 1, zerolog.Nop())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestNewMissingExplicitModel(t *testing.T) {
	cfg := config.WhisperConfig{
		Enabled:   true,
		ModelPath: filepath.Join(t.TempDir(), "missing.bin"),
		Download:  true,
	}
	_, err := New(context.Background(), cfg, 16000, 1, zerolog.Nop())
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	if !strings.Contains(err.Error(), "model not found") {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestModelPath(t *testing.T) {
	if got := ModelPath(config.WhisperConfig{ModelPath: "/tmp/custom.bin", Model: "base.en"}); got != "/tmp/custom.bin" {
		t.Errorf("expected explicit path, got %s", got)
	}
	got := ModelPath(config.WhisperConfig{Model: "small.en"})
	if filepath.Base(got) != "small.en.bin" || filepath.Dir(got) != config.ModelsPath() {
		t.Errorf("unexpected default model path %s", got)
	}
}

func TestDownloadModel(t *testing.T) {
	payload := strings.Repeat("ggml", 1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ggml-tiny.en.bin" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(payload))
	}))
	defer srv.Close()

	orig := modelBaseURL
	modelBaseURL = srv.URL
	defer func() { modelBaseURL = orig }()

	dest := filepath.Join(t.TempDir(), "models", "tiny.en.bin")
	if err := downloadModel(context.Background(), zerolog.Nop(), "tiny.en", dest); err != nil {
		t.Fatalf("download failed: %v", err)
	}

	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("read model: %v", err)
	}
	if string(data) != payload {
		t.Fatal("downloaded model content mismatch")
	}
	if _, err := os.Stat(dest + ".tmp"); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected temp file removed")
	}
}

func TestDownloadModelErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusNotFound)
	}))
	defer srv.Close()

	orig := modelBaseURL
	modelBaseURL = srv.URL
	defer func() { modelBaseURL = orig }()

	dest := filepath.Join(t.TempDir(), "base.en.bin")
	if err := downloadModel(context.Background(), zerolog.Nop(), "base.en", dest); err == nil || !strings.Contains(err.Error(), "HTTP 404") {
		t.Fatalf("expected HTTP 404 error, got %v", err)
	}
	if _, err := os.Stat(dest); !errors.Is(err, os.ErrNotExist) {
		t.Fatal("expected no model file after failed download")
	}

	if err := downloadModel(context.Background(), zerolog.Nop(), "no-such-model", dest); err == nil {
		t.Fatal("expected unknown model error")
	}
}

func TestRecognizerSetInputFormat(t *testing.T) {
	eng := &fakeEngine{}
	r := newRecognizer(eng, "m", SampleRate, 1, zerolog.Nop())
	r.SetInputFormat(48000, 2)

	r.Feed(make([]int16, 960))
	if got := r.Buffered(); got != 160 {
		t.Fatalf("expected 160 samples after format change, got %d", got)
	}

	Disabled().SetInputFormat(8000, 1)
}

func TestRecognizerKeepsFractionalSamplesAcrossBlocks(t *testing.T) {
	tests := []struct {
		name   string
		rate   int
		blocks int
		want   int
	}{
		{name: "48k three blocks", rate: 48000, blocks: 3, want: 512},
		{name: "48k long segment", rate: 48000, blocks: 300, want: 51200},
		{name: "44.1k", rate: 44100, blocks: 441, want: 81920},
		{name: "16k passthrough", rate: 16000, blocks: 4, want: 2048},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			r := newRecognizer(eng, "m", tt.rate, 1, zerolog.Nop())

			for i := 0; i < tt.blocks; i++ {
				r.Feed(make([]int16, 512))
			}
			if got := r.Buffered(); got != tt.want {
				t.Fatalf("expected %d buffered samples, got %d", tt.want, got)
			}

			r.Flush()
			if got := len(eng.calls[0]); got != tt.want {
				t.Fatalf("expected %d samples transcribed, got %d", tt.want, got)
			}
		})
	}
}

func TestRecognizerFormatChangeKeepsFedAudio(t *testing.T) {
	eng := &fakeEngine{}
	r := newRecognizer(eng, "m", 48000, 1, zerolog.Nop())

	r.Feed(make([]int16, 1536)) // 512 samples at 16 kHz
	r.SetInputFormat(16000, 1)
	r.Feed(make([]int16, 100))

	if got := r.Buffered(); got != 612 {
		t.Fatalf("expected 612 buffered samples, got %d", got)
	}
	r.Flush()
	if got := len(eng.calls[0]); got != 612 {
		t.Fatalf("expected 612 samples transcribed, got %d", got)
	}
	if r.Buffered() != 0 {
		t.Fatal("expected buffer reset after flush")
	}
}
