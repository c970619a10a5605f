// Package metrics exposes dictation session metrics in the Prometheus
// format.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Session outcomes.
const (
	OutcomeTranscribed = "transcribed"
	OutcomeNoAudio     = "no_audio"
	OutcomeNoSpeech    = "no_speech"
	OutcomeError       = "error"
)

// Metrics contains all Prometheus metrics of the dictation daemon.
type Metrics struct {
	registry *prometheus.Registry

	Toggles               prometheus.Counter
	IgnoredToggles        prometheus.Counter
	Sessions              *prometheus.CounterVec
	RecordingDuration     prometheus.Histogram
	TranscriptionDuration prometheus.Histogram
	InjectionFailures     prometheus.Counter
	State                 prometheus.Gauge
}

// New creates the metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Toggles: f.NewCounter(prometheus.CounterOpts{
			Name: "speech2text_toggles_total",
			Help: "Total number of hotkey toggles",
		}),
		IgnoredToggles: f.NewCounter(prometheus.CounterOpts{
			Name: "speech2text_toggles_ignored_total",
			Help: "Total number of toggles ignored while a transcription was running",
		}),
		Sessions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "speech2text_sessions_total",
			Help: "Total number of finished recording sessions by outcome",
		}, []string{"outcome"}),
		RecordingDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speech2text_recording_duration_seconds",
			Help:    "Length of recorded audio per session",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 9), // 0.5s to ~2 minutes
		}),
		TranscriptionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "speech2text_transcription_duration_seconds",
			Help:    "Time spent in speech recognition per session",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),
		InjectionFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "speech2text_injection_failures_total",
			Help: "Total number of failed paste attempts",
		}),
		State: f.NewGauge(prometheus.GaugeOpts{
			Name: "speech2text_state",
			Help: "Current session state (0 idle, 1 recording, 2 processing)",
		}),
	}
}

// RecordToggle counts a toggle. ignored marks a toggle dropped while processing.
func (m *Metrics) RecordToggle(ignored bool) {
	m.Toggles.Inc()
	if ignored {
		m.IgnoredToggles.Inc()
	}
}

// RecordSession counts a finished session with the length of its audio.
func (m *Metrics) RecordSession(outcome string, recorded time.Duration) {
	m.Sessions.WithLabelValues(outcome).Inc()
	if recorded > 0 {
		m.RecordingDuration.Observe(recorded.Seconds())
	}
}

// RecordTranscription records the latency of one recognition call.
func (m *Metrics) RecordTranscription(d time.Duration) {
	m.TranscriptionDuration.Observe(d.Seconds())
}

// RecordInjectionFailure counts a paste that reported an error.
func (m *Metrics) RecordInjectionFailure() {
	m.InjectionFailures.Inc()
}

// SetState publishes the numeric session state.
func (m *Metrics) SetState(state int) {
	m.State.Set(float64(state))
}

// Handler returns the HTTP handler serving the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics and /healthz on addr until ctx is done.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("metrics server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve metrics: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown metrics server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve metrics: %w", err)
	}
	return nil
}
