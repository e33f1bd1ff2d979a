package main

import "testing"

func holdMonitor() *silenceMonitor {
	return newSilenceMonitor(func() bool { return false })
}

func autoStopMonitor() *silenceMonitor {
	return newSilenceMonitor(func() bool { return true })
}

func feedN(m *silenceMonitor, voice bool, n int) SilenceEvent {
	var last SilenceEvent
	for i := 0; i < n; i++ {
		last = m.Tick(voice)
	}
	return last
}

func TestSilenceWarnAfter8s(t *testing.T) {
	m := holdMonitor()
	for i := 0; i < 79; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected %s at tick %d", ev, i)
		}
	}
	if ev := m.Tick(false); ev != SilenceWarn {
		t.Fatalf("expected warn at tick 80, got %s", ev)
	}
}

func TestSilenceWarnClearsOnVoice(t *testing.T) {
	m := holdMonitor()
	feedN(m, false, 80)

	for i := 0; i < 80; i++ {
		if m.Tick(true) == SilenceClear {
			if i < 19 {
				t.Fatalf("cleared after %d voiced ticks, want at least 20", i+1)
			}
			return
		}
	}
	t.Fatal("expected clear after sustained voice")
}

func TestNoWarnDuringVoice(t *testing.T) {
	m := holdMonitor()
	for i := 0; i < 400; i++ {
		if ev := m.Tick(true); ev != SilenceNone {
			t.Fatalf("unexpected %s during voice at tick %d", ev, i)
		}
	}
}

func TestSparseVoiceKeepsQuiet(t *testing.T) {
	m := autoStopMonitor()
	for i := 0; i < 600; i++ {
		if ev := m.Tick(i%5 == 0); ev != SilenceNone {
			t.Fatalf("unexpected %s at tick %d with 20%% voice", ev, i)
		}
	}
}

func TestRepeatCueWhenAutoStopping(t *testing.T) {
	m := autoStopMonitor()
	feedN(m, false, 80)
	for i := 0; i < 100; i++ {
		if m.Tick(false) == SilenceRepeat {
			return
		}
	}
	t.Fatal("expected repeat cue")
}

func TestNoRepeatWithoutAutoStop(t *testing.T) {
	m := holdMonitor()
	feedN(m, false, 80)
	for i := 0; i < 400; i++ {
		if ev := m.Tick(false); ev != SilenceNone {
			t.Fatalf("unexpected %s at tick %d", ev, i)
		}
	}
}

func TestAutoStopAfter30s(t *testing.T) {
	m := autoStopMonitor()
	for i := 1; i <= 400; i++ {
		ev := m.Tick(false)
		if ev == SilenceAutoStop {
			if i != 300 {
				t.Fatalf("auto-stop at tick %d, want 300", i)
			}
			return
		}
	}
	t.Fatal("expected auto-stop")
}

func TestAutoStopFollowsPolicyChange(t *testing.T) {
	enabled := false
	m := newSilenceMonitor(func() bool { return enabled })
	feedN(m, false, 300)

	enabled = true
	if ev := m.Tick(false); ev != SilenceAutoStop {
		t.Fatalf("expected auto-stop once enabled, got %s", ev)
	}
}

func TestSilenceEventString(t *testing.T) {
	cases := map[SilenceEvent]string{
		SilenceNone:     "none",
		SilenceWarn:     "warn",
		SilenceClear:    "clear",
		SilenceRepeat:   "repeat",
		SilenceAutoStop: "autostop",
	}
	for ev, want := range cases {
		if got := ev.String(); got != want {
			t.Errorf("%d: got %q, want %q", ev, got, want)
		}
	}
}
