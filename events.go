package main

import (
	"sync"

	"notecap/beep"
	"notecap/log"
	"notecap/session"
)

// fanout hands session events to every registered sink in order.
type fanout struct {
	mu    sync.Mutex
	sinks []session.EventSink
}

func (f *fanout) Add(s session.EventSink) {
	f.mu.Lock()
	f.sinks = append(f.sinks, s)
	f.mu.Unlock()
}

func (f *fanout) snapshot() []session.EventSink {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.EventSink(nil), f.sinks...)
}

func (f *fanout) StateChanged(s session.Snapshot) {
	for _, sink := range f.snapshot() {
		sink.StateChanged(s)
	}
}

func (f *fanout) SessionError(err error) {
	for _, sink := range f.snapshot() {
		sink.SessionError(err)
	}
}

// cues plays start/stop/error tones and counts finished notes.
type cues struct {
	beeps *beep.Player

	mu    sync.Mutex
	last  session.Snapshot
	notes int
}

func (c *cues) StateChanged(s session.Snapshot) {
	c.mu.Lock()
	prev := c.last
	c.last = s
	if s.Artifact != nil && s.Artifact != prev.Artifact {
		c.notes++
	}
	c.mu.Unlock()

	switch {
	case s.State == session.Recording && s.Capture != prev.Capture:
		c.beeps.PlayStart()
	case s.State == session.Finalizing && prev.State != session.Finalizing:
		c.beeps.PlayEnd()
	}
}

func (c *cues) SessionError(err error) {
	log.Errorf("session error: %v", err)
	c.beeps.PlayError()
}

func (c *cues) Notes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notes
}
