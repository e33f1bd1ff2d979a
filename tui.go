package main

import (
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"notecap/hotkey"
	"notecap/session"
)

// SnapshotMsg tells the model the session changed. The model re-reads the
// coordinator, so these may arrive in any order.
type SnapshotMsg struct{}

type ErrorMsg struct{ Err error }

type SilenceMsg struct{ Event SilenceEvent }

// HotkeyLineMsg carries the global hotkey status shown under the help line.
type HotkeyLineMsg struct{ Text string }

type tickMsg time.Time

const waveRows = 6

var (
	recStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	pausedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	finalStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	idleStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	liveWave    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	reviewWave  = lipgloss.NewStyle().Foreground(lipgloss.Color("67"))
	playedWave  = lipgloss.NewStyle().Foreground(lipgloss.Color("81"))
	cursorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("231")).Bold(true)
	infoStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	keyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	barLevels   = []rune(" ▁▂▃▄▅▆▇█")
)

type tuiModel struct {
	app           *app
	snap          session.Snapshot
	frame         int
	width, height int
	errText       string
	noVoice       bool
	deviceLine    string
	hotkeyLine    string
}

var _ tea.Model = tuiModel{}

func newTUIModel(a *app, deviceLine string) tuiModel {
	return tuiModel{app: a, snap: a.coord.Snapshot(), deviceLine: deviceLine}
}

func NewTUIProgram(m tuiModel) *tea.Program {
	return tea.NewProgram(m, tea.WithAltScreen())
}

// tuiSink forwards session events to a running program. Sends happen on a
// new goroutine so a sink call made from inside Update cannot deadlock.
type tuiSink struct{ p *tea.Program }

func (s tuiSink) StateChanged(session.Snapshot) { go s.p.Send(SnapshotMsg{}) }
func (s tuiSink) SessionError(err error)        { go s.p.Send(ErrorMsg{Err: err}) }

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		coord := m.app.coord
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r", "enter":
			m.errText = ""
			m.noVoice = false
			m.app.enqueue(coord.RequestStart)
		case " ":
			m.app.enqueue(coord.RequestPauseResumeToggle)
		case "s":
			m.app.enqueue(coord.RequestStop)
		case "p":
			m.app.enqueue(coord.RequestPlaybackToggle)
		}

	case tickMsg:
		m.frame++
		m.snap = m.app.coord.Snapshot()
		return m, tuiTick()

	case SnapshotMsg:
		m.snap = m.app.coord.Snapshot()
		if m.snap.State == session.Idle {
			m.noVoice = false
		}

	case ErrorMsg:
		m.errText = msg.Err.Error()

	case SilenceMsg:
		switch msg.Event {
		case SilenceWarn, SilenceRepeat:
			m.noVoice = true
		case SilenceClear, SilenceAutoStop:
			m.noVoice = false
		}

	case HotkeyLineMsg:
		m.hotkeyLine = msg.Text
	}
	return m, nil
}

func fmtClock(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return fmt.Sprintf("%02d:%04.1f", int(d.Minutes()), math.Mod(d.Seconds(), 60))
}

// barHeights converts 0..1 values into bar heights measured in eighths of
// a row.
func barHeights(values []float64, rows int) []int {
	out := make([]int, len(values))
	for i, v := range values {
		v = math.Max(0, math.Min(1, v))
		out[i] = int(math.Round(v * float64(rows*8)))
	}
	return out
}

// renderBars draws columns bottom-up. style picks the style for a column.
func renderBars(heights []int, rows int, style func(col int) lipgloss.Style) string {
	var b strings.Builder
	for row := rows - 1; row >= 0; row-- {
		for col, h := range heights {
			fill := h - row*8
			var r rune
			switch {
			case fill >= 8:
				r = barLevels[8]
			case fill > 0:
				r = barLevels[fill]
			default:
				r = ' '
			}
			b.WriteString(style(col).Render(string(r)))
		}
		if row > 0 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// liveScale lifts speech-range RMS into a visible bar.
func liveScale(levels []float64) []float64 {
	out := make([]float64, len(levels))
	for i, l := range levels {
		out[i] = math.Sqrt(l) * 1.5
	}
	return out
}

func (m tuiModel) waveform(width int) string {
	s := m.app.surface
	switch m.snap.State {
	case session.Recording, session.Paused:
		live := liveScale(s.Live(width))
		pad := make([]float64, width-len(live))
		heights := barHeights(append(pad, live...), waveRows)
		return renderBars(heights, waveRows, func(int) lipgloss.Style { return liveWave })
	}

	peaks := s.Peaks(width)
	if len(peaks) == 0 {
		return dimStyle.Render(strings.Repeat("─", width))
	}
	cursor := -1
	if dur := s.Duration(); dur > 0 && (m.snap.Playing || s.Position() > 0) {
		cursor = int(float64(width) * float64(s.Position()) / float64(dur))
	}
	heights := barHeights(peaks, waveRows)
	return renderBars(heights, waveRows, func(col int) lipgloss.Style {
		switch {
		case col == cursor:
			return cursorStyle
		case col < cursor:
			return playedWave
		}
		return reviewWave
	})
}

func (m tuiModel) statusLine() string {
	switch m.snap.State {
	case session.Recording:
		blink := "●"
		if m.frame/8%2 == 1 {
			blink = " "
		}
		return recStyle.Render(fmt.Sprintf("%s REC %s", blink, fmtClock(m.app.rec.Captured())))
	case session.Paused:
		return pausedStyle.Render(fmt.Sprintf("❚❚ PAUSED %s", fmtClock(m.app.rec.Captured())))
	case session.Finalizing:
		return finalStyle.Render("… saving note")
	}
	if m.snap.Playing {
		s := m.app.surface
		return finalStyle.Render(fmt.Sprintf("▶ %s / %s", fmtClock(s.Position()), fmtClock(s.Duration())))
	}
	return idleStyle.Render("○ READY")
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}
	width := max(m.width-2, 10)

	var lines []string
	lines = append(lines, m.statusLine())
	if m.noVoice {
		lines = append(lines, warnStyle.Render("⚠ no voice detected"))
	}
	lines = append(lines, "")
	lines = append(lines, m.waveform(width))
	lines = append(lines, "")

	if a := m.snap.Artifact; a != nil {
		lines = append(lines, infoStyle.Render(fmt.Sprintf("note %s  %s  %s  %.1f KB",
			a.ID.String()[:8], fmtClock(a.DurationHint), a.Format, float64(a.Size)/1024)))
	} else {
		lines = append(lines, dimStyle.Render("no note yet"))
	}
	if m.errText != "" {
		lines = append(lines, errStyle.Render("error: "+m.errText))
	}
	if m.deviceLine != "" {
		lines = append(lines, dimStyle.Render(m.deviceLine))
	}
	lines = append(lines, "")

	help := []string{
		keyStyle.Render("r") + dimStyle.Render(" record"),
		keyStyle.Render("space") + dimStyle.Render(" pause"),
		keyStyle.Render("s") + dimStyle.Render(" stop"),
		keyStyle.Render("p") + dimStyle.Render(" play"),
		keyStyle.Render("q") + dimStyle.Render(" quit"),
	}
	lines = append(lines, strings.Join(help, dimStyle.Render(" · ")))
	if m.hotkeyLine != "" {
		lines = append(lines, dimStyle.Render(m.hotkeyLine))
	}
	lines = append(lines, dimStyle.Render("notecap "+version))

	return lipgloss.NewStyle().Padding(0, 1).Render(strings.Join(lines, "\n"))
}

func hotkeyLineText(hybrid bool, err error) string {
	if err != nil {
		return "global hotkey unavailable: " + err.Error()
	}
	if hybrid {
		return keyStyle.Render(hotkey.Chord) + dimStyle.Render(" anywhere: tap to toggle, hold to talk")
	}
	return keyStyle.Render(hotkey.Chord) + dimStyle.Render(" anywhere to start/stop")
}
