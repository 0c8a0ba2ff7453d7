package app

import (
	"time"

	"github.com/petems/eva/internal/meter"
	"github.com/petems/eva/internal/metrics"
	"github.com/petems/eva/internal/vad"
)

// meteredSource records per-block metrics as blocks pass to the segmenter.
type meteredSource struct {
	src     vad.BlockSource
	metrics *metrics.Metrics
}

func (m *meteredSource) Read() ([]int16, error) {
	block, err := m.src.Read()
	if err == nil && m.metrics != nil && len(block) > 0 {
		m.metrics.BlocksRead.Inc()
		m.metrics.Level.Set(meter.DBFS(block))
	}
	return block, err
}

// timedRecognizer records the outcome and duration of every Flush.
type timedRecognizer struct {
	vad.Recognizer
	metrics *metrics.Metrics
}

func (t *timedRecognizer) Flush() (string, error) {
	start := time.Now()
	text, err := t.Recognizer.Flush()

	result := "transcript"
	switch {
	case err != nil:
		result = "failed"
	case text == "":
		result = "no_speech"
	}
	t.metrics.RecordTranscription(result, time.Since(start))
	return text, err
}
