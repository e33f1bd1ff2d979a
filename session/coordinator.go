package session

import (
	"fmt"
	"sync"
	"time"

	"notecap/artifact"
	"notecap/log"
)

type Options struct {
	// FinalizeTimeout bounds the wait for a completion after stop. Zero
	// waits forever.
	FinalizeTimeout time.Duration
	Sink            EventSink
	Now             func() time.Time
}

// Coordinator is the session state machine. All methods are safe for
// concurrent use; transitions are serialized by mu.
type Coordinator struct {
	mu        sync.Mutex
	engine    Engine
	unsub     func()
	artifacts Artifacts
	player    Player
	sink      EventSink
	timeout   time.Duration
	now       func() time.Time

	state     State
	startedAt time.Time
	capture   uint64
	resolved  bool
	current   *artifact.Artifact
	timer     *time.Timer
	closed    bool

	// forced holds captures stopped by a restart whose completions are
	// still owed.
	forced map[uint64]bool
}

type nopSink struct{}

func (nopSink) StateChanged(Snapshot) {}
func (nopSink) SessionError(error)    {}

func New(artifacts Artifacts, player Player, opts Options) *Coordinator {
	c := &Coordinator{
		artifacts: artifacts,
		player:    player,
		sink:      opts.Sink,
		timeout:   opts.FinalizeTimeout,
		now:       opts.Now,
		resolved:  true,
		forced:    make(map[uint64]bool),
	}
	if c.sink == nil {
		c.sink = nopSink{}
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// Bind resolves the engine binding. Intents before Bind are ignored. A
// second Bind drops the subscription to the previous engine.
func (c *Coordinator) Bind(e Engine) {
	unsub := e.OnRecordEnd(c.handleCompletion)

	c.mu.Lock()
	prev := c.unsub
	c.engine = e
	c.unsub = unsub
	c.mu.Unlock()

	if prev != nil {
		prev()
	}
}

// change is collected under the lock and emitted after it is released.
type change struct {
	changed bool
	err     error
}

func (c *Coordinator) emit(ch change) {
	if ch.changed {
		c.sink.StateChanged(c.Snapshot())
	}
	if ch.err != nil {
		c.sink.SessionError(ch.err)
	}
}

func (c *Coordinator) setState(intent string, to State) {
	log.Transition(intent, c.state.String(), to.String(), c.capture)
	c.state = to
}

func (c *Coordinator) RequestStart() {
	c.mu.Lock()
	ch := c.start()
	c.mu.Unlock()
	c.emit(ch)
}

func (c *Coordinator) start() change {
	switch {
	case c.closed:
		return change{}
	case c.engine == nil:
		log.Ignored("start", c.state.String(), "engine not bound")
		return change{}
	case c.state == Finalizing:
		log.Ignored("start", c.state.String(), "finalizing")
		return change{}
	}

	if c.player != nil && c.player.Playing() {
		c.player.Stop()
	}

	if c.engine.IsActive() {
		log.Warnf("forcing stop of active capture %d before start", c.capture)
		c.engine.StopRecording()
		if !c.resolved {
			c.forced[c.capture] = true
		}
	}

	id, err := c.engine.StartRecording()
	if err != nil {
		changed := c.state != Idle
		if changed {
			c.setState("start", Idle)
		}
		c.resolved = true
		return change{changed: changed, err: fmt.Errorf("start recording: %w", err)}
	}

	c.capture = id
	c.resolved = false
	c.startedAt = c.now()
	c.setState("start", Recording)
	return change{changed: true}
}

// RequestPauseResumeToggle pauses or resumes based on what the engine
// reports, not on the cached state.
func (c *Coordinator) RequestPauseResumeToggle() {
	c.mu.Lock()
	ch := c.toggle()
	c.mu.Unlock()
	c.emit(ch)
}

func (c *Coordinator) toggle() change {
	if c.closed {
		return change{}
	}
	if c.engine == nil {
		log.Ignored("pause_resume", c.state.String(), "engine not bound")
		return change{}
	}
	if c.state != Recording && c.state != Paused {
		log.Ignored("pause_resume", c.state.String(), "not capturing")
		return change{}
	}

	e := c.engine
	switch {
	case e.IsRecording() && !e.IsPaused():
		e.PauseRecording()
		c.setState("pause", Paused)
	case e.IsActive() && e.IsPaused():
		e.ResumeRecording()
		c.setState("resume", Recording)
	default:
		log.Ignored("pause_resume", c.state.String(), "engine inactive")
		return change{}
	}
	return change{changed: true}
}

func (c *Coordinator) RequestStop() {
	c.mu.Lock()
	ch := c.stop()
	c.mu.Unlock()
	c.emit(ch)
}

func (c *Coordinator) stop() change {
	if c.closed {
		return change{}
	}
	if c.engine == nil {
		log.Ignored("stop", c.state.String(), "engine not bound")
		return change{}
	}
	if c.state != Recording && c.state != Paused {
		log.Ignored("stop", c.state.String(), "not capturing")
		return change{}
	}

	if !c.engine.IsActive() {
		// No completion will come for a capture the engine no longer has.
		log.Warnf("engine lost capture %d, returning to idle", c.capture)
		c.resolved = true
		c.setState("stop", Idle)
		return change{changed: true}
	}

	c.engine.StopRecording()
	c.setState("stop", Finalizing)
	c.armTimer(c.capture)
	return change{changed: true}
}

func (c *Coordinator) armTimer(capture uint64) {
	if c.timeout <= 0 {
		return
	}
	c.timer = time.AfterFunc(c.timeout, func() { c.finalizeExpired(capture) })
}

func (c *Coordinator) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) finalizeExpired(capture uint64) {
	c.mu.Lock()
	if c.closed || c.state != Finalizing || c.capture != capture || c.resolved {
		c.mu.Unlock()
		return
	}
	c.resolved = true
	c.timer = nil
	log.Errorf("finalize_timeout capture=%d after %s", capture, c.timeout)
	c.setState("timeout", Idle)
	c.mu.Unlock()

	c.emit(change{changed: true, err: ErrFinalizeTimeout})
}

func (c *Coordinator) handleCompletion(done Completion) {
	c.mu.Lock()
	ch := c.complete(done)
	c.mu.Unlock()
	c.emit(ch)
}

func (c *Coordinator) complete(done Completion) change {
	switch {
	case c.closed:
		log.CompletionDropped(done.Capture, "closed")
		return change{}
	case c.forced[done.Capture]:
		delete(c.forced, done.Capture)
		return c.completeForced(done)
	case done.Capture != c.capture:
		log.CompletionDropped(done.Capture, "superseded")
		return change{}
	case c.resolved:
		log.CompletionDropped(done.Capture, "already resolved")
		return change{}
	}

	c.resolved = true
	c.stopTimer()
	if c.state != Finalizing {
		// The engine ended the capture on its own.
		c.setState("engine_stop", Finalizing)
	}

	if done.Err != nil {
		c.setState("complete", Idle)
		return change{changed: true, err: fmt.Errorf("capture %d: %w", done.Capture, done.Err)}
	}

	bindErr, err := c.adopt(done)
	c.setState("complete", Idle)
	if err != nil {
		return change{changed: true, err: err}
	}
	return change{changed: true, err: bindErr}
}

// completeForced adopts the payload of a capture stopped by a restart. The
// session that replaced it keeps its state.
func (c *Coordinator) completeForced(done Completion) change {
	if done.Err != nil {
		return change{err: fmt.Errorf("capture %d: %w", done.Capture, done.Err)}
	}
	bindErr, err := c.adopt(done)
	if err != nil {
		return change{err: err}
	}
	return change{changed: true, err: bindErr}
}

// adopt materializes a payload and makes it the current artifact,
// releasing the one it replaces. A playback bind failure does not undo it.
func (c *Coordinator) adopt(done Completion) (bindErr, err error) {
	a, err := c.artifacts.Materialize(done.Payload, done.Format)
	if err != nil {
		return nil, fmt.Errorf("capture %d: %w", done.Capture, err)
	}
	if c.player != nil {
		if err := c.player.Bind(a); err != nil {
			bindErr = fmt.Errorf("load recording for playback: %w", err)
		}
	}
	if prev := c.current; prev != nil {
		c.artifacts.Release(prev)
	}
	c.current = a
	log.Artifact(a.ID.String(), a.Format, a.Size, a.DurationHint)
	return bindErr, nil
}

// RequestPlaybackToggle is honored only while idle with an artifact.
func (c *Coordinator) RequestPlaybackToggle() {
	c.mu.Lock()
	if c.closed || c.player == nil || c.state != Idle || c.current == nil {
		log.Ignored("playback", c.state.String(), "no artifact")
		c.mu.Unlock()
		return
	}
	was := c.player.Playing()
	c.player.TogglePlayback()
	flipped := c.player.Playing() != was
	c.mu.Unlock()
	c.emit(change{changed: flipped})
}

func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := Snapshot{
		State:    c.state,
		Capture:  c.capture,
		Artifact: c.current,
		Bound:    c.engine != nil,
	}
	if c.state == Recording || c.state == Paused {
		s.StartedAt = c.startedAt
	}
	if c.player != nil {
		s.Playing = c.player.Playing()
	}
	return s
}

// Close unsubscribes from the engine and abandons an active capture.
// Artifacts stay with their manager.
func (c *Coordinator) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.stopTimer()
	unsub := c.unsub
	c.unsub = nil
	if c.engine != nil && c.engine.IsActive() {
		c.engine.StopRecording()
	}
	if c.player != nil {
		c.player.Stop()
	}
	if c.state != Idle {
		c.setState("close", Idle)
	}
	c.resolved = true
	clear(c.forced)
	c.mu.Unlock()

	if unsub != nil {
		unsub()
	}
}
