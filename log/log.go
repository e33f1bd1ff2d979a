package log

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	diagLog   zerolog.Logger
	diagFile  *os.File
	notesFile *os.File
	logMu     sync.Mutex
	logReady  bool
	pid       int
	dir       string
)

func ResolveDir(flagPath string) (string, error) {
	// Priority 1: -logpath flag
	if flagPath != "" {
		return absolute(flagPath)
	}

	// Priority 2: NOTECAP_LOG_PATH environment variable
	if envPath := os.Getenv("NOTECAP_LOG_PATH"); envPath != "" {
		return absolute(envPath)
	}

	// Priority 3: Default OS-specific location
	return getDefaultDir()
}

func absolute(p string) (string, error) {
	if filepath.IsAbs(p) {
		return p, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(wd, p), nil
}

func SetDir(d string) {
	dir = d
}

func Dir() string {
	return dir
}

func EnsureDir() error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	return nil
}

func Init() error {
	logMu.Lock()
	defer logMu.Unlock()

	if err := EnsureDir(); err != nil {
		return err
	}

	pid = os.Getpid()

	var err error

	diagPath := filepath.Join(dir, "diagnostics_log.txt")
	diagFile, err = os.OpenFile(diagPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}

	notesPath := filepath.Join(dir, "notes_log.txt")
	notesFile, err = os.OpenFile(notesPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return err
	}

	consoleWriter := zerolog.ConsoleWriter{
		Out:        diagFile,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	diagLog = zerolog.New(consoleWriter).With().Timestamp().Int("pid", pid).Logger()

	logReady = true
	return nil
}

func Close() {
	logMu.Lock()
	defer logMu.Unlock()
	if diagFile != nil {
		diagFile.Close()
		diagFile = nil
	}
	if notesFile != nil {
		notesFile.Close()
		notesFile = nil
	}
	logReady = false
}

func Info(msg string) {
	if logReady {
		diagLog.Info().Msg(msg)
	}
}

func Debugf(format string, args ...any) {
	if logReady {
		diagLog.Debug().Msg(fmt.Sprintf(format, args...))
	}
}

func Error(msg string) {
	if logReady {
		diagLog.Error().Msg(msg)
	}
}

func Errorf(format string, args ...any) {
	if logReady {
		diagLog.Error().Msg(fmt.Sprintf(format, args...))
	}
}

func Warn(msg string) {
	if logReady {
		diagLog.Warn().Msg(msg)
	}
}

func Warnf(format string, args ...any) {
	if logReady {
		diagLog.Warn().Msg(fmt.Sprintf(format, args...))
	}
}

func Transition(intent, from, to string, capture uint64) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("intent", intent).
		Str("from", from).
		Str("to", to).
		Uint64("capture", capture).
		Msg("transition")
}

func Ignored(intent, state, reason string) {
	if !logReady {
		return
	}
	diagLog.Debug().
		Str("intent", intent).
		Str("state", state).
		Str("reason", reason).
		Msg("intent_ignored")
}

func CompletionDropped(capture uint64, reason string) {
	if !logReady {
		return
	}
	diagLog.Warn().
		Uint64("capture", capture).
		Str("reason", reason).
		Msg("completion_dropped")
}

type CaptureStats struct {
	Capture    uint64
	Format     string
	AudioS     float64
	RawKB      float64
	PayloadKB  float64
	EncodeMs   float64
	PausedDrop int
}

func Capture(s CaptureStats) {
	if !logReady {
		return
	}
	diagLog.Info().
		Uint64("capture", s.Capture).
		Str("format", s.Format).
		Float64("audio_s", s.AudioS).
		Float64("raw_kb", s.RawKB).
		Float64("payload_kb", s.PayloadKB).
		Float64("encode_ms", s.EncodeMs).
		Int("paused_drop", s.PausedDrop).
		Msg("capture_end")
}

// Artifact records a materialized note in the diagnostics log and appends a
// line to notes_log.txt.
func Artifact(id, format string, size int, duration time.Duration) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("id", id).
		Str("format", format).
		Int("bytes", size).
		Float64("duration_s", duration.Seconds()).
		Msg("artifact")

	logMu.Lock()
	defer logMu.Unlock()
	line := fmt.Sprintf("%s\t[%d]\t%s\t%s\t%.1fs\n", time.Now().Format("2006-01-02 15:04:05"), pid, id, format, duration.Seconds())
	notesFile.WriteString(line)
}

func SessionStart(device, format string) {
	if !logReady {
		return
	}
	diagLog.Info().
		Str("device", device).
		Str("format", format).
		Msg("session_start")
}

func SessionEnd(count int) {
	if !logReady {
		return
	}
	diagLog.Info().
		Int("notes", count).
		Msg("session_end")
}
