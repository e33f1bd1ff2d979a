// Package session coordinates a single voice-note recording lifecycle
// between user intents, a capture engine and the playback surface.
package session

import (
	"errors"
	"time"

	"notecap/artifact"
)

var ErrFinalizeTimeout = errors.New("capture engine did not deliver the recording in time")

type State int

const (
	Idle State = iota
	Recording
	Paused
	Finalizing
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Paused:
		return "paused"
	case Finalizing:
		return "finalizing"
	}
	return "unknown"
}

// Completion is what an engine delivers once per StopRecording.
type Completion struct {
	Capture uint64
	Payload []byte
	Format  string
	Err     error
}

// Engine is the capture engine contract. IsRecording is true only while
// capturing unpaused; IsActive is true while recording or paused.
// StartRecording must fail when the engine is already active. Completions
// must be delivered asynchronously, never from inside StopRecording.
type Engine interface {
	StartRecording() (uint64, error)
	StopRecording()
	PauseRecording()
	ResumeRecording()
	IsRecording() bool
	IsPaused() bool
	IsActive() bool
	OnRecordEnd(fn func(Completion)) (unsubscribe func())
}

type Artifacts interface {
	Materialize(payload []byte, format string) (*artifact.Artifact, error)
	Release(a *artifact.Artifact)
}

type Player interface {
	Bind(a *artifact.Artifact) error
	Unbind()
	TogglePlayback() bool
	Stop()
	Playing() bool
}

// EventSink receives notifications outside the coordinator's lock.
type EventSink interface {
	StateChanged(s Snapshot)
	SessionError(err error)
}

// Snapshot is a read-only copy of the session for presentation.
type Snapshot struct {
	State     State
	StartedAt time.Time
	Capture   uint64
	Artifact  *artifact.Artifact
	Playing   bool
	Bound     bool
}

func (s Snapshot) Paused() bool { return s.State == Paused }

func (s Snapshot) Elapsed(now time.Time) time.Duration {
	if s.StartedAt.IsZero() || (s.State != Recording && s.State != Paused) {
		return 0
	}
	return now.Sub(s.StartedAt)
}
