package main

import "time"

const (
	tickInterval   = 100 * time.Millisecond
	silenceWarnDur = 8 * time.Second
	silenceStopDur = 30 * time.Second
	speechMinRatio = 0.10
	// clearing needs more voice than warning so the hint does not flicker
	speechClearRatio = 0.25
)

type SilenceEvent int

const (
	SilenceNone SilenceEvent = iota
	SilenceWarn
	SilenceClear
	SilenceRepeat
	SilenceAutoStop
)

func (e SilenceEvent) String() string {
	switch e {
	case SilenceWarn:
		return "warn"
	case SilenceClear:
		return "clear"
	case SilenceRepeat:
		return "repeat"
	case SilenceAutoStop:
		return "autostop"
	}
	return "none"
}

// silenceMonitor watches per-tick voice activity of one note. Ticks only
// arrive while the note is recording, so paused stretches never count.
type silenceMonitor struct {
	warnTicks int
	stopTicks int
	autoStop  func() bool

	history []bool
	ticks   int
	voiced  int
	warned  bool
	lastCue int
}

func newSilenceMonitor(autoStop func() bool) *silenceMonitor {
	stop := int(silenceStopDur / tickInterval)
	return &silenceMonitor{
		warnTicks: int(silenceWarnDur / tickInterval),
		stopTicks: stop,
		autoStop:  autoStop,
		history:   make([]bool, stop),
	}
}

// recentRatio is the voiced share of the last n ticks.
func (m *silenceMonitor) recentRatio(n int) float64 {
	n = min(n, m.ticks)
	if n == 0 {
		return 1
	}
	voiced := 0
	for i := 1; i <= n; i++ {
		if m.history[(m.ticks-i)%m.stopTicks] {
			voiced++
		}
	}
	return float64(voiced) / float64(n)
}

func (m *silenceMonitor) Tick(voice bool) SilenceEvent {
	slot := m.ticks % m.stopTicks
	if m.ticks >= m.stopTicks && m.history[slot] {
		m.voiced--
	}
	m.history[slot] = voice
	if voice {
		m.voiced++
	}
	m.ticks++

	ratio := m.recentRatio(m.warnTicks)
	switch {
	case !m.warned && m.ticks >= m.warnTicks && ratio < speechMinRatio:
		m.warned = true
		m.lastCue = m.ticks
		return SilenceWarn
	case m.warned && ratio >= speechClearRatio:
		m.warned = false
		return SilenceClear
	}

	if m.autoStop == nil || !m.autoStop() {
		return SilenceNone
	}
	if m.ticks >= m.stopTicks && float64(m.voiced)/float64(m.stopTicks) < speechMinRatio {
		return SilenceAutoStop
	}
	if m.warned && m.ticks-m.lastCue >= m.warnTicks {
		m.lastCue = m.ticks
		return SilenceRepeat
	}
	return SilenceNone
}
