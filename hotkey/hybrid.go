package hotkey

import (
	"sync/atomic"
	"time"
)

type Action int

const (
	ActionStart Action = iota
	ActionStop
)

func (a Action) String() string {
	if a == ActionStart {
		return "start"
	}
	return "stop"
}

// Hybrid turns one chord into tap-to-toggle and hold-to-record. Every press
// from rest starts a note. A press held past longPress stops on release; a
// shorter tap keeps recording until the next press is released.
type Hybrid struct {
	actions chan Action
	toggle  atomic.Bool
	done    chan struct{}
}

func NewHybrid(hk Hotkey, longPress time.Duration) *Hybrid {
	h := &Hybrid{
		actions: make(chan Action, 2),
		done:    make(chan struct{}),
	}
	go h.run(hk, longPress)
	return h
}

func (h *Hybrid) Actions() <-chan Action { return h.actions }

// IsToggle reports whether the current note was started with a short tap.
func (h *Hybrid) IsToggle() bool { return h.toggle.Load() }

func (h *Hybrid) Close() {
	if !h.closed() {
		close(h.done)
	}
}

func (h *Hybrid) closed() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *Hybrid) send(a Action) bool {
	if h.closed() {
		return false
	}
	select {
	case h.actions <- a:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hybrid) wait(ch <-chan struct{}) bool {
	if h.closed() {
		return false
	}
	select {
	case <-ch:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hybrid) run(hk Hotkey, longPress time.Duration) {
	for {
		if !h.wait(hk.Keydown()) {
			return
		}
		h.toggle.Store(false)
		if !h.send(ActionStart) {
			return
		}

		timer := time.NewTimer(longPress)
		select {
		case <-timer.C:
			if !h.wait(hk.Keyup()) {
				return
			}
		case <-hk.Keyup():
			timer.Stop()
			h.toggle.Store(true)
			if !h.wait(hk.Keydown()) || !h.wait(hk.Keyup()) {
				return
			}
		case <-h.done:
			timer.Stop()
			return
		}

		if !h.send(ActionStop) {
			return
		}
		h.toggle.Store(false)
	}
}
