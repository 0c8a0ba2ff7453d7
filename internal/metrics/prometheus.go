package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Metrics contains all Prometheus metrics for eva
type Metrics struct {
	Registry *prometheus.Registry

	// Capture metrics
	BlocksRead     prometheus.Counter
	Level          prometheus.Gauge
	QueueDepth     prometheus.Gauge
	QueueHighWater prometheus.Gauge
	Overruns       prometheus.Counter

	// VAD metrics
	SpeechDetected prometheus.Counter
	SegmentsClosed prometheus.Counter

	// Transcription metrics
	Transcriptions        *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram

	mu           sync.Mutex
	lastOverruns int64
}

// New creates all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		BlocksRead: factory.NewCounter(prometheus.CounterOpts{
			Name: "eva_audio_blocks_read_total",
			Help: "Total number of audio blocks read from the capture device",
		}),
		Level: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eva_audio_level_dbfs",
			Help: "Level of the most recent audio block in dBFS",
		}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eva_audio_queue_depth",
			Help: "Blocks waiting in the callback hand-off queue",
		}),
		QueueHighWater: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eva_audio_queue_high_water",
			Help: "Largest callback hand-off queue depth seen",
		}),
		Overruns: factory.NewCounter(prometheus.CounterOpts{
			Name: "eva_audio_overruns_total",
			Help: "Total number of blocking-read overruns recovered",
		}),

		SpeechDetected: factory.NewCounter(prometheus.CounterOpts{
			Name: "eva_vad_speech_detected_total",
			Help: "Total number of speech triggers",
		}),
		SegmentsClosed: factory.NewCounter(prometheus.CounterOpts{
			Name: "eva_vad_segments_closed_total",
			Help: "Total number of closed speech segments",
		}),

		Transcriptions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eva_transcriptions_total",
			Help: "Transcription results by outcome",
		}, []string{"result"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "eva_transcription_duration_seconds",
			Help:    "Time spent transcribing a segment",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms to ~25s
		}),
	}
}

// RecordTranscription counts one flush outcome and its duration.
func (m *Metrics) RecordTranscription(result string, d time.Duration) {
	m.Transcriptions.WithLabelValues(result).Inc()
	m.TranscriptionDuration.Observe(d.Seconds())
}

// RecordQueue publishes capture queue statistics. overruns is the capture's
// running total; the counter advances by the growth since the last call.
func (m *Metrics) RecordQueue(depth, highWater int, overruns int64) {
	m.QueueDepth.Set(float64(depth))
	m.QueueHighWater.Set(float64(highWater))

	m.mu.Lock()
	defer m.mu.Unlock()
	if delta := overruns - m.lastOverruns; delta > 0 {
		m.Overruns.Add(float64(delta))
	}
	m.lastOverruns = max(m.lastOverruns, overruns)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, addr string, log zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("Metrics endpoint listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
