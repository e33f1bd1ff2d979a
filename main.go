package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"notecap/audio"
	"notecap/config"
	"notecap/hotkey"
	"notecap/log"
	"notecap/metrics"
	"notecap/shutdown"
)

var version = "dev"

func deviceLineText(dev *audio.DeviceInfo) string {
	name := "system default"
	suffix := ""
	if dev != nil {
		name = dev.Name
		if audio.IsBluetooth(dev.Name) {
			suffix = " (BT! narrowband mic)"
		}
	}
	return "mic: " + name + suffix
}

func initCrashLog() {
	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return
	}
	fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
	debug.SetCrashOutput(crashFile, debug.CrashOptions{})
}

func run() {
	if err := newRootCmd(&options{}).Execute(); err != nil {
		log.Errorf("%v", err)
		log.Close()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func resolveDevice(actx audio.Context, cfg config.Config, setup bool) *audio.DeviceInfo {
	switch {
	case cfg.Device != "":
		device, err := audio.FindDevice(actx, cfg.Device)
		if err != nil {
			log.Warnf("device lookup failed: %v", err)
			fmt.Printf("Warning: %v, falling back to default device\n", err)
		}
		return device
	case setup:
		device, err := audio.SelectDevice(actx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
		}
		return device
	}
	return nil
}

func runTUI(cfg config.Config, opts *options) error {
	defer log.Close()

	actx, err := audio.NewContext()
	if err != nil {
		return fmt.Errorf("initializing audio context: %w", err)
	}
	defer actx.Close()

	device := resolveDevice(actx, cfg, opts.setup)
	a, err := newApp(cfg, actx, device)
	if err != nil {
		return err
	}
	log.SessionStart(a.rec.DeviceName(), cfg.Format)

	ctx, cancel := shutdown.Context(context.Background())
	defer cancel()

	if opts.metricsAddr != "" {
		reg := prometheus.NewRegistry()
		a.sinks.Add(metrics.New(reg))
		go func() {
			if err := metrics.Serve(ctx, opts.metricsAddr, reg); err != nil {
				log.Errorf("metrics server: %v", err)
			}
		}()
	}

	p := NewTUIProgram(newTUIModel(a, deviceLineText(device)))
	a.sinks.Add(tuiSink{p: p})

	if cfg.Hotkey {
		hk := hotkey.New()
		if err := hk.Register(); err != nil {
			log.Warnf("hotkey registration failed: %v", err)
			go p.Send(HotkeyLineMsg{Text: hotkeyLineText(false, err)})
		} else {
			defer hk.Unregister()
			a.attachHotkey(hk)
			go a.listenHotkey(ctx, hk)
			go p.Send(HotkeyLineMsg{Text: hotkeyLineText(cfg.Hybrid, nil)})
		}
	}

	go a.watchSilence(ctx, func(ev SilenceEvent) {
		p.Send(SilenceMsg{Event: ev})
	})

	go func() {
		<-ctx.Done()
		p.Quit()
	}()

	_, runErr := p.Run()
	cancel()

	a.Close()
	log.SessionEnd(a.cues.Notes())
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("TUI: %w", runErr)
	}
	return nil
}
