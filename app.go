package main

import (
	"context"
	"fmt"
	"time"

	"notecap/artifact"
	"notecap/audio"
	"notecap/beep"
	"notecap/config"
	"notecap/encoder"
	"notecap/hotkey"
	"notecap/log"
	"notecap/playback"
	"notecap/recorder"
	"notecap/session"
	"notecap/waveform"
)

// app owns every collaborator of one notecap process.
type app struct {
	cfg config.Config

	capture audio.CaptureDevice
	out     audio.PlaybackDevice
	surface *waveform.Surface
	store   *artifact.Manager
	player  *playback.Controller
	rec     *recorder.Recorder
	coord   *session.Coordinator
	beeps   *beep.Player
	cues    *cues
	sinks   *fanout

	hybrid *hotkey.Hybrid

	// intents feeds coordinator requests to a single worker so they reach
	// the session in the order they were made.
	intents     chan func()
	quit        chan struct{}
	intentsDone chan struct{}
}

const intentQueue = 16

func newApp(cfg config.Config, ctx audio.Context, device *audio.DeviceInfo) (*app, error) {
	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
		Gain:       cfg.InputGain,
	})
	if err != nil {
		return nil, fmt.Errorf("capture device: %w", err)
	}

	out, err := ctx.NewPlayback(audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		// Review still works visually without an output device.
		log.Warnf("playback device unavailable: %v", err)
		out = nil
	}

	a := &app{
		cfg:     cfg,
		capture: capture,
		out:     out,
		store:   artifact.NewManager(),
		beeps:   beep.New(ctx),
		sinks:   &fanout{},

		intents:     make(chan func(), intentQueue),
		quit:        make(chan struct{}),
		intentsDone: make(chan struct{}),
	}
	if !cfg.Beep {
		a.beeps.Disable()
	}
	a.cues = &cues{beeps: a.beeps}
	a.sinks.Add(a.cues)

	a.surface = waveform.New(cfg.WaveformSeconds, out)
	a.player = playback.New(a.store, a.surface)
	a.coord = session.New(a.store, a.player, session.Options{
		FinalizeTimeout: cfg.FinalizeTimeout.Duration,
		Sink:            a.sinks,
	})
	a.rec = recorder.New(capture, cfg.Format, a.surface)
	a.coord.Bind(a.rec)
	go a.runIntents()
	return a, nil
}

// enqueue hands fn to the intent worker without blocking the caller. It
// reports false when the queue is full or closed.
func (a *app) enqueue(fn func()) bool {
	select {
	case <-a.quit:
		return false
	default:
	}
	select {
	case a.intents <- fn:
		return true
	default:
		log.Warnf("intent queue full, dropping request")
		return false
	}
}

func (a *app) runIntents() {
	defer close(a.intentsDone)
	for {
		select {
		case <-a.quit:
			return
		case fn := <-a.intents:
			fn()
		}
	}
}

// autoStop reports whether a silent note should end on its own.
func (a *app) autoStop() bool {
	if a.cfg.AutoStop {
		return true
	}
	return a.hybrid != nil && a.hybrid.IsToggle()
}

// watchSilence ticks a silence monitor while a note is recording and stops
// the note when the monitor asks for it.
func (a *app) watchSilence(ctx context.Context, notify func(SilenceEvent)) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	var mon *silenceMonitor
	var capture uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		snap := a.coord.Snapshot()
		if snap.State != session.Recording {
			continue
		}
		if mon == nil || snap.Capture != capture {
			mon = newSilenceMonitor(a.autoStop)
			capture = snap.Capture
		}

		ev := mon.Tick(a.rec.HasSpeechTick())
		switch ev {
		case SilenceNone:
			continue
		case SilenceWarn, SilenceRepeat:
			log.Info("no_voice_" + ev.String())
			a.beeps.PlayError()
		case SilenceClear:
			log.Info("voice_resumed")
		case SilenceAutoStop:
			log.Info("silence_auto_stop")
			a.enqueue(a.coord.RequestStop)
			mon = nil
		}
		if notify != nil {
			notify(ev)
		}
	}
}

// attachHotkey must run before listenHotkey and watchSilence start.
func (a *app) attachHotkey(hk hotkey.Hotkey) {
	if a.cfg.Hybrid {
		a.hybrid = hotkey.NewHybrid(hk, a.cfg.LongPress.Duration)
	}
}

// listenHotkey maps the global chord onto session intents. In hybrid mode a
// hold records until release and a tap records until the next tap;
// otherwise every press toggles.
func (a *app) listenHotkey(ctx context.Context, hk hotkey.Hotkey) {
	if a.hybrid != nil {
		defer a.hybrid.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case act := <-a.hybrid.Actions():
				log.Info("hotkey_" + act.String())
				start := act == hotkey.ActionStart
				a.enqueue(func() {
					if start && a.coord.State() == session.Idle {
						a.coord.RequestStart()
					} else {
						a.coord.RequestStop()
					}
				})
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-hk.Keydown():
			log.Info("hotkey_down")
			a.enqueue(a.toggleNote)
		}
	}
}

// toggleNote starts a note when idle and stops it otherwise.
func (a *app) toggleNote() {
	if a.coord.State() == session.Idle {
		a.coord.RequestStart()
	} else {
		a.coord.RequestStop()
	}
}

func (a *app) Close() {
	select {
	case <-a.quit:
	default:
		close(a.quit)
	}
	<-a.intentsDone
	a.coord.Close()
	a.rec.Close()
	a.player.Stop()
	if a.out != nil {
		a.out.Close()
	}
	a.beeps.Wait()
	a.store.Close()
}
