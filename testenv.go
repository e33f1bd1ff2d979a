package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"notecap/audio"
	"notecap/config"
	"notecap/log"
	"notecap/session"
)

// runTestMode drives a headless session from stdin with a WAV file standing
// in for the microphone.
func runTestMode(cfg config.Config, wavPath string) {
	defer log.Close()

	fakeCtx, err := audio.NewFakeContext(wavPath, true)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading WAV: %v\n", err)
		os.Exit(1)
	}

	cfg.Beep = false
	a, err := newApp(cfg, fakeCtx, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fakeCapture := a.capture.(*audio.FakeCapture)
	a.sinks.Add(stderrSink{})
	log.SessionStart(a.rec.DeviceName(), cfg.Format)

	quit := func(code int) {
		a.Close()
		log.SessionEnd(a.cues.Notes())
		log.Close()
		os.Exit(code)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		cmd := strings.TrimSpace(scanner.Text())
		switch cmd {
		case "":
		case "START":
			a.coord.RequestStart()
		case "TOGGLE":
			a.coord.RequestPauseResumeToggle()
		case "STOP":
			a.coord.RequestStop()
		case "PLAY":
			a.coord.RequestPlaybackToggle()
		case "WAIT":
			for a.coord.State() == session.Finalizing {
				time.Sleep(5 * time.Millisecond)
			}
			a.rec.Wait()
		case "WAIT_AUDIO_DONE":
			<-fakeCapture.AudioDone()
		case "STATUS":
			fmt.Println(statusLine(a.coord.Snapshot()))
		case "QUIT":
			quit(0)
		default:
			if ms, ok := strings.CutPrefix(cmd, "SLEEP "); ok {
				if n, err := strconv.Atoi(ms); err == nil {
					time.Sleep(time.Duration(n) * time.Millisecond)
				}
				continue
			}
			fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		}
	}
	quit(0)
}

func statusLine(s session.Snapshot) string {
	line := "state=" + s.State.String()
	if a := s.Artifact; a != nil {
		line += fmt.Sprintf(" artifact=%s format=%s bytes=%d duration=%.2fs", a.ID, a.Format, a.Size, a.DurationHint.Seconds())
	}
	if s.Playing {
		line += " playing"
	}
	return line
}

type stderrSink struct{}

func (stderrSink) StateChanged(session.Snapshot) {}

func (stderrSink) SessionError(err error) {
	fmt.Fprintf(os.Stderr, "session error: %v\n", err)
}
