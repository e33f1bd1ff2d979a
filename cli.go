package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"notecap/audio"
	"notecap/config"
	"notecap/doctor"
	"notecap/hotkey"
	"notecap/log"
)

// options holds every command-line flag. Flags the user set override the
// config file.
type options struct {
	configPath string
	logPath    string
	device     string
	format     string

	setup           bool
	finalizeTimeout time.Duration
	autoStop        bool
	hotkey          bool
	hybrid          bool
	longPress       time.Duration
	beep            bool
	metricsAddr     string
	test            bool
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "notecap",
		Short: "Record, review and replay voice notes from the terminal",
		Long: "notecap records a voice note from the microphone with a live waveform.\n" +
			"Pause, resume and stop the note, then play it back before recording the next one.",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return setupLogDir(opts.logPath)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if opts.test {
				if len(args) == 0 {
					return fmt.Errorf("usage: notecap --test <wav-file>")
				}
				initLogging()
				runTestMode(cfg, args[0])
				return nil
			}
			initLogging()
			return runTUI(cfg, opts)
		},
	}

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("notecap {{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "config file path (default: $NOTECAP_CONFIG or the user config dir)")
	pf.StringVar(&opts.logPath, "logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	pf.StringVar(&opts.device, "device", "", "Use named microphone device")
	pf.StringVar(&opts.format, "format", "wav", "Note format: wav or flac")

	f := rootCmd.Flags()
	f.BoolVar(&opts.setup, "setup", false, "Select microphone device (otherwise uses system default)")
	f.DurationVar(&opts.finalizeTimeout, "finalize-timeout", 10*time.Second, "Give up on an unfinished note after this long (0 waits forever)")
	f.BoolVar(&opts.autoStop, "autostop", false, "Stop a note after 30s without voice")
	f.BoolVar(&opts.hotkey, "hotkey", true, "Listen for the global "+hotkey.Chord+" chord")
	f.BoolVar(&opts.hybrid, "hybrid", false, "Enable hybrid tap+hold recording mode")
	f.DurationVar(&opts.longPress, "longpress", 350*time.Millisecond, "Long-press threshold for hold vs tap (e.g., 350ms)")
	f.BoolVar(&opts.beep, "beep", true, "Play start/stop cues")
	f.StringVar(&opts.metricsAddr, "metrics", "", "Serve Prometheus metrics on this address (e.g., localhost:9464)")
	f.BoolVar(&opts.test, "test", false, "Test mode (headless, stdin-driven)")
	f.MarkHidden("test")

	rootCmd.AddCommand(newDoctorCmd(opts))
	rootCmd.AddCommand(newDevicesCmd(opts))

	return rootCmd
}

func newDoctorCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check hotkey, microphone and playback",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if code := doctor.Run(cfg.Format); code != 0 {
				os.Exit(code)
			}
			return nil
		},
	}
}

func newDevicesCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List capture devices",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			ctx, err := audio.NewContext()
			if err != nil {
				return fmt.Errorf("initializing audio context: %w", err)
			}
			defer ctx.Close()

			devices, err := ctx.Devices()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(devices) == 0 {
				fmt.Fprintln(out, "No capture devices found")
				return nil
			}
			for _, d := range devices {
				mark := "  "
				if d.Name == cfg.Device {
					mark = "* "
				}
				tag := ""
				if audio.IsBluetooth(d.Name) {
					tag = " [bluetooth]"
				}
				fmt.Fprintf(out, "%s%s%s\n", mark, d.Name, tag)
			}
			return nil
		},
	}
}

// loadConfig reads the config file and applies the flags the user set.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	path, err := config.ResolvePath(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	changed := func(name string) bool {
		fl := flags.Lookup(name)
		return fl != nil && fl.Changed
	}
	if changed("device") {
		cfg.Device = opts.device
	}
	if changed("format") {
		cfg.Format = opts.format
	}
	if changed("finalize-timeout") {
		cfg.FinalizeTimeout.Duration = opts.finalizeTimeout
	}
	if changed("autostop") {
		cfg.AutoStop = opts.autoStop
	}
	if changed("hotkey") {
		cfg.Hotkey = opts.hotkey
	}
	if changed("hybrid") {
		cfg.Hybrid = opts.hybrid
	}
	if changed("longpress") {
		cfg.LongPress.Duration = opts.longPress
	}
	if changed("beep") {
		cfg.Beep = opts.beep
	}
	return cfg, cfg.Validate()
}

func setupLogDir(flagPath string) error {
	logPath, err := log.ResolveDir(flagPath)
	if err != nil {
		return fmt.Errorf("failed to resolve log directory: %w", err)
	}
	log.SetDir(logPath)
	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}
	initCrashLog()
	return nil
}

func initLogging() {
	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}
}
