//go:build cgo

package whisper

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

type nativeEngine struct {
	mu       sync.Mutex
	model    whisperlib.Model
	language string
	threads  int
}

func newEngine(modelPath, language string, threads int) (engine, error) {
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %q: %w", modelPath, err)
	}
	return &nativeEngine{model: model, language: language, threads: threads}, nil
}

// Transcribe runs inference on a fresh context and joins the segment texts.
func (e *nativeEngine) Transcribe(samples []float32) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return "", errors.New("whisper: model closed")
	}

	wctx, err := e.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("whisper: create context: %w", err)
	}

	if e.threads > 0 {
		wctx.SetThreads(uint(e.threads))
	}
	if e.language != "auto" && e.language != "" {
		if err := wctx.SetLanguage(e.language); err != nil {
			return "", fmt.Errorf("whisper: set language %q: %w", e.language, err)
		}
	}
	wctx.SetTranslate(false)

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}

func (e *nativeEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
