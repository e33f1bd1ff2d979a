// Package metrics exposes session counters over Prometheus.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"notecap/artifact"
	"notecap/log"
	"notecap/session"
)

// Metrics is a session.EventSink that turns state changes into counters.
type Metrics struct {
	Transitions   *prometheus.CounterVec
	Errors        *prometheus.CounterVec
	Notes         prometheus.Counter
	NoteDuration  prometheus.Histogram
	NoteSize      prometheus.Histogram
	Playbacks     prometheus.Counter
	SessionActive prometheus.Gauge

	mu   sync.Mutex
	last session.Snapshot
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notecap_transitions_total",
			Help: "Session state changes by target state",
		}, []string{"to"}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "notecap_session_errors_total",
			Help: "Errors reported by the session coordinator",
		}, []string{"kind"}),
		Notes: f.NewCounter(prometheus.CounterOpts{
			Name: "notecap_notes_total",
			Help: "Notes materialized",
		}),
		NoteDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "notecap_note_duration_seconds",
			Help:    "Audio length of materialized notes",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10), // 1s to ~8.5 minutes
		}),
		NoteSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "notecap_note_size_bytes",
			Help:    "Payload size of materialized notes",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to ~8MB
		}),
		Playbacks: f.NewCounter(prometheus.CounterOpts{
			Name: "notecap_playbacks_total",
			Help: "Times playback of a note was started",
		}),
		SessionActive: f.NewGauge(prometheus.GaugeOpts{
			Name: "notecap_capture_active",
			Help: "1 while a note is recording or paused",
		}),
	}
}

func (m *Metrics) StateChanged(s session.Snapshot) {
	m.mu.Lock()
	prev := m.last
	m.last = s
	m.mu.Unlock()

	if s.State != prev.State || s.Capture != prev.Capture {
		m.Transitions.WithLabelValues(s.State.String()).Inc()
	}
	if a := s.Artifact; a != nil && a != prev.Artifact {
		m.Notes.Inc()
		m.NoteDuration.Observe(a.DurationHint.Seconds())
		m.NoteSize.Observe(float64(a.Size))
	}
	if s.Playing && !prev.Playing {
		m.Playbacks.Inc()
	}
	switch s.State {
	case session.Recording, session.Paused:
		m.SessionActive.Set(1)
	default:
		m.SessionActive.Set(0)
	}
}

func (m *Metrics) SessionError(err error) {
	m.Errors.WithLabelValues(errorKind(err)).Inc()
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, session.ErrFinalizeTimeout):
		return "finalize_timeout"
	case errors.Is(err, artifact.ErrEmptyPayload):
		return "empty_payload"
	case errors.Is(err, artifact.ErrUnusable):
		return "unusable_payload"
	case errors.Is(err, artifact.ErrRevoked):
		return "revoked"
	}
	return "other"
}

// shutdownGrace bounds how long open scrapes may finish once serving stops.
var shutdownGrace = time.Second

// Serve exposes /metrics for g on addr until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return serve(ctx, ln, g)
}

func serve(ctx context.Context, ln net.Listener, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	shut := make(chan struct{})
	go func() {
		defer close(shut)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Warnf("metrics shutdown: %v", err)
		}
	}()

	log.Info("metrics listening on " + ln.Addr().String())
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	<-shut
	return nil
}
