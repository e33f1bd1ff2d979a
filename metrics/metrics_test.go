package metrics

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notecap/artifact"
	"notecap/log"
	"notecap/session"
)

func TestStateChangesCounted(t *testing.T) {
	m := New(prometheus.NewRegistry())
	note := &artifact.Artifact{Size: 32000, DurationHint: time.Second}

	m.StateChanged(session.Snapshot{State: session.Recording, Capture: 1})
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionActive))
	m.StateChanged(session.Snapshot{State: session.Paused, Capture: 1})
	m.StateChanged(session.Snapshot{State: session.Recording, Capture: 1})
	m.StateChanged(session.Snapshot{State: session.Finalizing, Capture: 1})
	m.StateChanged(session.Snapshot{State: session.Idle, Capture: 1, Artifact: note})
	// A repeated snapshot is not a new transition or note.
	m.StateChanged(session.Snapshot{State: session.Idle, Capture: 1, Artifact: note})
	m.StateChanged(session.Snapshot{State: session.Idle, Capture: 1, Artifact: note, Playing: true})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("recording")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("paused")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Transitions.WithLabelValues("idle")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Notes))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Playbacks))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.SessionActive))
}

func TestRestartCountsFreshCapture(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.StateChanged(session.Snapshot{State: session.Recording, Capture: 1})
	m.StateChanged(session.Snapshot{State: session.Recording, Capture: 2})
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Transitions.WithLabelValues("recording")))
}

func TestErrorKinds(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.SessionError(session.ErrFinalizeTimeout)
	m.SessionError(fmt.Errorf("capture 3: %w", artifact.ErrEmptyPayload))
	m.SessionError(fmt.Errorf("capture 4: %w", artifact.ErrUnusable))
	m.SessionError(io.ErrUnexpectedEOF)

	for kind, want := range map[string]float64{
		"finalize_timeout": 1,
		"empty_payload":    1,
		"unusable_payload": 1,
		"other":            1,
		"revoked":          0,
	} {
		assert.Equal(t, want, testutil.ToFloat64(m.Errors.WithLabelValues(kind)), kind)
	}
}

func TestServeExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.StateChanged(session.Snapshot{State: session.Recording, Capture: 1})

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, reg) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(body), `notecap_transitions_total{to="recording"} 1`)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestServeLogsShutdownFailure(t *testing.T) {
	dir := t.TempDir()
	log.SetDir(dir)
	require.NoError(t, log.Init())
	t.Cleanup(func() { log.Close(); log.SetDir("") })

	grace := shutdownGrace
	shutdownGrace = 20 * time.Millisecond
	t.Cleanup(func() { shutdownGrace = grace })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- serve(ctx, ln, prometheus.NewRegistry()) }()

	// A half-sent request keeps the connection open past the grace period.
	conn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	defer conn.Close()
	_, err = conn.Write([]byte("GET /metrics HTTP/1.1\r\n"))
	require.NoError(t, err)
	time.Sleep(50 * time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not shut down")
	}

	diag, err := os.ReadFile(filepath.Join(dir, "diagnostics_log.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(diag), "metrics shutdown")
	assert.Contains(t, string(diag), context.DeadlineExceeded.Error())
}
