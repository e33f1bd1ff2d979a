package main

import (
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notecap/session"
)

func TestFmtClock(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "00:00.0"},
		{-time.Second, "00:00.0"},
		{1500 * time.Millisecond, "00:01.5"},
		{75 * time.Second, "01:15.0"},
	}
	for _, tt := range tests {
		if got := fmtClock(tt.d); got != tt.want {
			t.Errorf("fmtClock(%s) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestBarHeights(t *testing.T) {
	got := barHeights([]float64{-1, 0, 0.5, 1, 2}, 2)
	want := []int{0, 0, 8, 16, 16}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("height[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestRenderBars(t *testing.T) {
	plain := func(int) lipgloss.Style { return lipgloss.NewStyle() }
	out := renderBars([]int{16, 4, 0}, 2, plain)
	rows := strings.Split(out, "\n")
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0] != "█  " {
		t.Errorf("top row = %q", rows[0])
	}
	if rows[1] != "█▄ " {
		t.Errorf("bottom row = %q", rows[1])
	}
}

func press(m tuiModel, key string) (tuiModel, tea.Cmd) {
	var msg tea.KeyMsg
	switch key {
	case " ":
		msg = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)}
	}
	next, cmd := m.Update(msg)
	return next.(tuiModel), cmd
}

func TestTUIKeysDriveSession(t *testing.T) {
	a := newTestApp(t, nil)
	m := newTUIModel(a, "mic: fake")

	m, cmd := press(m, "r")
	if cmd != nil {
		t.Fatal("r returned a command")
	}
	waitFor(t, "recording", func() bool { return a.coord.State() == session.Recording })

	press(m, " ")
	waitFor(t, "paused", func() bool { return a.coord.State() == session.Paused })

	press(m, "s")
	waitFor(t, "idle", func() bool { return a.coord.State() == session.Idle })

	next, _ := m.Update(SnapshotMsg{})
	m = next.(tuiModel)
	if m.snap.Artifact == nil {
		t.Fatal("model did not pick up the note")
	}

	press(m, "p")
	waitFor(t, "playback", a.player.Playing)
}

// callOrder wraps an engine and records the commands that reach it.
type callOrder struct {
	session.Engine
	mu    sync.Mutex
	calls []string
}

func (e *callOrder) add(call string) {
	e.mu.Lock()
	e.calls = append(e.calls, call)
	e.mu.Unlock()
}

func (e *callOrder) StartRecording() (uint64, error) {
	e.add("start")
	return e.Engine.StartRecording()
}

func (e *callOrder) StopRecording() {
	e.add("stop")
	e.Engine.StopRecording()
}

func (e *callOrder) seen() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.calls...)
}

// drainIntents blocks until every intent queued so far has run.
func drainIntents(t *testing.T, a *app) {
	t.Helper()
	done := make(chan struct{})
	if !a.enqueue(func() { close(done) }) {
		t.Fatal("intent queue refused")
	}
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("intent queue did not drain")
	}
}

func TestTUIKeysReachEngineInOrder(t *testing.T) {
	a := newTestApp(t, nil)
	engine := &callOrder{Engine: a.rec}
	a.coord.Bind(engine)
	m := newTUIModel(a, "")

	press(m, "r")
	drainIntents(t, a)
	if got := a.coord.State(); got != session.Recording {
		t.Fatalf("after r: state = %s", got)
	}

	// Stop then start. The start either lands while the note finalizes
	// and is ignored, or after it and begins a new note. It never runs
	// first and gets stopped by the later stop.
	press(m, "s")
	press(m, "r")
	drainIntents(t, a)

	got := engine.seen()
	ignored := []string{"start", "stop"}
	restarted := []string{"start", "stop", "start"}
	if !slices.Equal(got, ignored) && !slices.Equal(got, restarted) {
		t.Fatalf("engine calls = %v, want %v or %v", got, ignored, restarted)
	}
	waitFor(t, "note", func() bool { return a.coord.Snapshot().Artifact != nil })
}

func TestTUIQuit(t *testing.T) {
	a := newTestApp(t, nil)
	_, cmd := press(newTUIModel(a, ""), "q")
	if cmd == nil {
		t.Fatal("q returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("q did not quit")
	}
}

func TestTUIMessages(t *testing.T) {
	a := newTestApp(t, nil)
	m := newTUIModel(a, "")
	m.width, m.height = 80, 24

	next, _ := m.Update(SilenceMsg{Event: SilenceWarn})
	m = next.(tuiModel)
	if !m.noVoice {
		t.Error("warn did not set the no-voice flag")
	}
	if !strings.Contains(m.View(), "no voice detected") {
		t.Error("view lacks the no-voice warning")
	}

	next, _ = m.Update(SilenceMsg{Event: SilenceClear})
	m = next.(tuiModel)
	if m.noVoice {
		t.Error("clear did not reset the no-voice flag")
	}

	next, _ = m.Update(ErrorMsg{Err: session.ErrFinalizeTimeout})
	m = next.(tuiModel)
	if !strings.Contains(m.View(), session.ErrFinalizeTimeout.Error()) {
		t.Error("view lacks the error line")
	}
}
