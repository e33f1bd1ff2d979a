// Package config loads notecap settings from a TOML file. Command-line flags
// are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Duration decodes TOML strings such as "10s" or "350ms".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

type Config struct {
	Device          string   `toml:"device"`
	Format          string   `toml:"format"`
	InputGain       float64  `toml:"input_gain"`
	FinalizeTimeout Duration `toml:"finalize_timeout"`
	AutoStop        bool     `toml:"autostop"`
	Hotkey          bool     `toml:"hotkey"`
	Hybrid          bool     `toml:"hybrid"`
	LongPress       Duration `toml:"long_press"`
	WaveformSeconds int      `toml:"waveform_seconds"`
	Beep            bool     `toml:"beep"`
}

func Default() Config {
	return Config{
		Format:          "wav",
		InputGain:       1,
		FinalizeTimeout: Duration{10 * time.Second},
		Hotkey:          true,
		LongPress:       Duration{350 * time.Millisecond},
		WaveformSeconds: 30,
		Beep:            true,
	}
}

func (c Config) Validate() error {
	switch c.Format {
	case "wav", "flac":
	default:
		return fmt.Errorf("unknown format %q (use wav or flac)", c.Format)
	}
	if c.InputGain <= 0 || c.InputGain > 8 {
		return fmt.Errorf("input_gain must be in (0, 8]")
	}
	if c.FinalizeTimeout.Duration < 0 {
		return fmt.Errorf("finalize_timeout must not be negative")
	}
	if c.WaveformSeconds <= 0 {
		return fmt.Errorf("waveform_seconds must be positive")
	}
	return nil
}

// ResolvePath picks the config file: flag, then NOTECAP_CONFIG, then the
// per-user default location.
func ResolvePath(flagPath string) (string, error) {
	if flagPath != "" {
		return flagPath, nil
	}
	if env := os.Getenv("NOTECAP_CONFIG"); env != "" {
		return env, nil
	}
	cfgDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, "notecap", "config.toml"), nil
}

// Load reads path over the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, &cfg)
	if errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	if err != nil {
		return cfg, fmt.Errorf("reading %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return cfg, fmt.Errorf("%s: unknown key %q", path, undecoded[0].String())
	}
	return cfg, cfg.Validate()
}
