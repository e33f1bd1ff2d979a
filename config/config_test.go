package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
device = "USB Mic"
format = "flac"
finalize_timeout = "3s"
long_press = "200ms"
autostop = true
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "USB Mic", cfg.Device)
	assert.Equal(t, "flac", cfg.Format)
	assert.Equal(t, 3*time.Second, cfg.FinalizeTimeout.Duration)
	assert.Equal(t, 200*time.Millisecond, cfg.LongPress.Duration)
	assert.True(t, cfg.AutoStop)
	assert.True(t, cfg.Beep, "unset keys keep their defaults")
	assert.Equal(t, 30, cfg.WaveformSeconds)
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown format", `format = "ogg"`},
		{"unknown key", `colour = "red"`},
		{"bad duration", `finalize_timeout = "soon"`},
		{"negative timeout", `finalize_timeout = "-1s"`},
		{"zero waveform", `waveform_seconds = 0`},
		{"zero gain", `input_gain = 0`},
		{"excess gain", `input_gain = 20.0`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestResolvePath(t *testing.T) {
	got, err := ResolvePath("/etc/notecap.toml")
	require.NoError(t, err)
	assert.Equal(t, "/etc/notecap.toml", got)

	t.Setenv("NOTECAP_CONFIG", "/tmp/env.toml")
	got, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/env.toml", got)

	t.Setenv("NOTECAP_CONFIG", "")
	got, err = ResolvePath("")
	require.NoError(t, err)
	assert.Equal(t, "config.toml", filepath.Base(got))
}
