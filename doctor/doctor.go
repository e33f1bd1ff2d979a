package doctor

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"notecap/artifact"
	"notecap/audio"
	"notecap/encoder"
	"notecap/hotkey"
	"notecap/playback"
	"notecap/recorder"
	"notecap/session"
	"notecap/shutdown"
	"notecap/waveform"
)

const recordFor = 3 * time.Second

// Run executes interactive diagnostic checks and returns an exit code (0=all pass, 1=any fail).
func Run(format string) int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("notecap doctor - interactive system diagnostics")
	fmt.Println("===============================================")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return 1
	}
	defer ctx.Close()

	reader := bufio.NewReader(os.Stdin)
	allPass := true

	if !checkHotkey() {
		// The terminal keys still work without the global chord.
		fmt.Println("  (continuing: notes can still be recorded from the terminal)")
	}

	note, ok := checkMicrophone(ctx, reader, format)
	if !ok {
		allPass = false
	}
	if allPass && !checkPlayback(ctx, reader, note) {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func setupInterruptHandler() {
	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		println("\nInterrupted")
		os.Exit(1)
	}()
}

func confirm(reader *bufio.Reader, prompt string) bool {
	fmt.Print(prompt + " [y/n]: ")
	answer, _ := reader.ReadString('\n')
	answer = strings.TrimSpace(strings.ToLower(answer))
	return answer == "y" || answer == "yes"
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[1/3] Global hotkey")
	fmt.Printf("Press %s...\n", hotkey.Chord)

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Keydown():
		fmt.Println("  PASS: hotkey detected")
		select {
		case <-hk.Keyup():
		case <-time.After(5 * time.Second):
		}
		resetTerminal()
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func pickDevice(ctx audio.Context, reader *bufio.Reader) (*audio.DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("cannot list devices: %w", err)
	}
	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}
	if len(devices) == 1 {
		fmt.Printf("Using device: %s\n", devices[0].Name)
		return &devices[0], nil
	}

	fmt.Println()
	fmt.Println("Select input device:")
	for i, d := range devices {
		tag := ""
		if audio.IsBluetooth(d.Name) {
			tag = " [bluetooth]"
		}
		fmt.Printf("  %d. %s%s\n", i+1, d.Name, tag)
	}
	fmt.Printf("Choice [1-%d]: ", len(devices))

	choice, _ := reader.ReadString('\n')
	choice = strings.TrimSpace(choice)
	idx := 0
	if choice != "" {
		fmt.Sscanf(choice, "%d", &idx)
		idx--
	}
	if idx < 0 || idx >= len(devices) {
		return nil, fmt.Errorf("invalid choice %q", choice)
	}
	fmt.Printf("Selected: %s\n", devices[idx].Name)
	return &devices[idx], nil
}

// levelMeter remembers the loudest level pushed during the check.
type levelMeter struct{ peak float64 }

func (m *levelMeter) PushLevel(level float64) {
	if level > m.peak {
		m.peak = level
	}
}

func (m *levelMeter) Reset() { m.peak = 0 }

func checkMicrophone(ctx audio.Context, reader *bufio.Reader, format string) ([]byte, bool) {
	fmt.Println()
	fmt.Println("[2/3] Microphone")

	device, err := pickDevice(ctx, reader)
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return nil, false
	}

	capture, err := ctx.NewCapture(device, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open capture device: %v\n", err)
		return nil, false
	}

	meter := &levelMeter{}
	rec := recorder.New(capture, format, meter)
	defer rec.Close()

	done := make(chan session.Completion, 1)
	unsub := rec.OnRecordEnd(func(c session.Completion) { done <- c })
	defer unsub()

	fmt.Println()
	fmt.Printf("Press Enter and speak for %d seconds...", int(recordFor.Seconds()))
	reader.ReadString('\n')

	if _, err := rec.StartRecording(); err != nil {
		fmt.Printf("  FAIL: recording error: %v\n", err)
		return nil, false
	}
	fmt.Print("  Recording")
	for i := 0; i < int(recordFor/(500*time.Millisecond)); i++ {
		time.Sleep(500 * time.Millisecond)
		fmt.Print(".")
	}
	rec.StopRecording()
	fmt.Println(" done")

	c := <-done
	if c.Err != nil {
		fmt.Printf("  FAIL: %v\n", c.Err)
		return nil, false
	}
	info, err := encoder.Probe(c.Payload)
	if err != nil || info.Frames == 0 {
		fmt.Println("  FAIL: no audio captured")
		return nil, false
	}

	fmt.Printf("  Captured %.1fs (%.1f KB %s), peak level %.3f\n",
		info.Duration.Seconds(), float64(len(c.Payload))/1024, format, meter.peak)
	if meter.peak < 0.02 {
		fmt.Println("  FAIL: microphone is silent (check mute and input volume)")
		return nil, false
	}
	fmt.Println("  PASS: microphone is capturing voice")
	return c.Payload, true
}

func checkPlayback(ctx audio.Context, reader *bufio.Reader, note []byte) bool {
	fmt.Println()
	fmt.Println("[3/3] Playback")

	out, err := ctx.NewPlayback(audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		fmt.Printf("  FAIL: cannot open output device: %v\n", err)
		return false
	}
	defer out.Close()

	store := artifact.NewManager()
	defer store.Close()
	a, err := store.Materialize(note, "")
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	surface := waveform.New(30, out)
	player := playback.New(store, surface)
	if err := player.Bind(a); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	fmt.Println("  Playing your recording back...")
	player.TogglePlayback()
	for player.Playing() {
		time.Sleep(100 * time.Millisecond)
	}

	resetTerminal()
	if !confirm(reader, "Did you hear your recording?") {
		fmt.Println("  FAIL: playback not confirmed")
		return false
	}
	fmt.Println("  PASS: playback verified by user")
	return true
}
