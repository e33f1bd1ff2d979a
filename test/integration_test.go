//go:build integration

package test_test

import (
	"encoding/binary"
	"fmt"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testBinary string

func TestMain(m *testing.M) {
	testBinary = os.Getenv("NOTECAP_TEST_BIN")
	if testBinary == "" {
		fmt.Fprintln(os.Stderr, "NOTECAP_TEST_BIN not set; build notecap and point it at the binary")
		os.Exit(1)
	}

	if err := os.MkdirAll("data", 0755); err != nil {
		fmt.Fprintf(os.Stderr, "failed to create data dir: %v\n", err)
		os.Exit(1)
	}
	tonePath := filepath.Join("data", "tone.wav")
	if err := generateToneWAV(tonePath, 16000, 1.0, 440); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate tone.wav: %v\n", err)
		os.Exit(1)
	}
	silencePath := filepath.Join("data", "silence.wav")
	if err := generateToneWAV(silencePath, 16000, 1.0, 0); err != nil {
		fmt.Fprintf(os.Stderr, "failed to generate silence.wav: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()
	os.Remove(tonePath)
	os.Remove(silencePath)
	os.Exit(code)
}

// generateToneWAV writes 16-bit mono PCM. A zero frequency writes silence.
func generateToneWAV(path string, sampleRate int, durationS, freq float64) error {
	const headerSize = 44
	numSamples := int(float64(sampleRate) * durationS)
	dataSize := numSamples * 2

	buf := make([]byte, headerSize+dataSize)
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(headerSize-8+dataSize))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(buf[22:24], 1) // mono
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*2))
	binary.LittleEndian.PutUint16(buf[32:34], 2)  // block align
	binary.LittleEndian.PutUint16(buf[34:36], 16) // bits per sample
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i := 0; i < numSamples; i++ {
		v := 0.3 * math.Sin(2*math.Pi*freq*float64(i)/float64(sampleRate))
		binary.LittleEndian.PutUint16(buf[headerSize+i*2:], uint16(int16(v*32767)))
	}
	return os.WriteFile(path, buf, 0644)
}

func cmds(parts ...string) string {
	return strings.Join(parts, "\n") + "\n"
}

func runNotecap(t *testing.T, stdin string, args ...string) (logDir, stdout string) {
	t.Helper()
	logDir = t.TempDir()
	cmdArgs := append([]string{
		"--logpath", logDir,
		"--config", filepath.Join(logDir, "absent.toml"),
	}, args...)

	cmd := exec.Command(testBinary, cmdArgs...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = os.Environ()

	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	require.NoError(t, err, "stderr: %s", stderr.String())
	return logDir, string(out)
}

func readLog(t *testing.T, logDir, filename string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(logDir, filename))
	if os.IsNotExist(err) {
		return ""
	}
	require.NoError(t, err)
	return string(data)
}

func noteLines(t *testing.T, logDir string) []string {
	t.Helper()
	text := strings.TrimSpace(readLog(t, logDir, "notes_log.txt"))
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

func TestRecordNote(t *testing.T) {
	logDir, out := runNotecap(t,
		cmds("START", "WAIT_AUDIO_DONE", "STOP", "WAIT", "STATUS", "QUIT"),
		"--test", "data/tone.wav")

	assert.Contains(t, out, "state=idle artifact=")
	assert.Contains(t, out, "format=wav")
	assert.Len(t, noteLines(t, logDir), 1)

	diag := readLog(t, logDir, "diagnostics_log.txt")
	assert.Contains(t, diag, "session_start")
	assert.Contains(t, diag, "capture_end")
	assert.Contains(t, diag, "artifact")
	assert.Contains(t, diag, "session_end")
}

func TestRecordFlacNote(t *testing.T) {
	logDir, out := runNotecap(t,
		cmds("START", "WAIT_AUDIO_DONE", "STOP", "WAIT", "STATUS", "QUIT"),
		"--test", "--format", "flac", "data/tone.wav")

	assert.Contains(t, out, "format=flac")
	assert.Len(t, noteLines(t, logDir), 1)
}

func TestPauseResume(t *testing.T) {
	logDir, out := runNotecap(t,
		cmds("START", "SLEEP 200", "TOGGLE", "SLEEP 200", "TOGGLE", "WAIT_AUDIO_DONE", "STOP", "WAIT", "STATUS", "QUIT"),
		"--test", "data/tone.wav")

	assert.Contains(t, out, "state=idle artifact=")
	diag := readLog(t, logDir, "diagnostics_log.txt")
	assert.Contains(t, diag, "to=paused")
	assert.Contains(t, diag, "from=paused")
}

func TestStopWithoutStart(t *testing.T) {
	logDir, out := runNotecap(t, cmds("STOP", "PLAY", "STATUS", "QUIT"), "--test", "data/tone.wav")

	assert.Equal(t, "state=idle", strings.TrimSpace(out))
	assert.Empty(t, noteLines(t, logDir))
	assert.Contains(t, readLog(t, logDir, "diagnostics_log.txt"), "intent_ignored")
}

func TestSecondNoteReplacesFirst(t *testing.T) {
	logDir, out := runNotecap(t,
		cmds(
			"START", "SLEEP 300", "STOP", "WAIT", "STATUS",
			"START", "SLEEP 300", "STOP", "WAIT", "STATUS",
			"QUIT",
		),
		"--test", "data/tone.wav")

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.NotEqual(t, lines[0], lines[1])
	assert.Len(t, noteLines(t, logDir), 2)
}

func TestSilentNote(t *testing.T) {
	logDir, out := runNotecap(t,
		cmds("START", "WAIT_AUDIO_DONE", "STOP", "WAIT", "STATUS", "QUIT"),
		"--test", "data/silence.wav")

	// Silence is still a note.
	assert.Contains(t, out, "artifact=")
	assert.Len(t, noteLines(t, logDir), 1)
}
