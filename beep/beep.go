// Package beep plays short cue tones through the audio output.
package beep

import (
	"math"
	"sync"
	"time"

	"notecap/audio"
	"notecap/log"
)

const (
	sampleRate = 16000

	// Start: high pitch, short
	startFreq   = 1200
	startVolume = 0.5
	startDecay  = 60

	// End: medium pitch, slightly longer
	endFreq   = 900
	endVolume = 0.5
	endDecay  = 40

	// Error: low pitch double beep
	errorFreq   = 350
	errorVolume = 0.6
	errorDecay  = 30

	// tail keeps the stream open long enough for the device buffer to drain.
	tail = 150 * time.Millisecond
)

type Player struct {
	ctx audio.Context

	mu       sync.Mutex
	disabled bool
	wg       sync.WaitGroup

	start, end, fail []int16
}

func New(ctx audio.Context) *Player {
	return &Player{
		ctx:   ctx,
		start: generateTick(startFreq, 0.05, startVolume, startDecay),
		end:   generateTick(endFreq, 0.08, endVolume, endDecay),
		fail:  generateDoubleBeep(errorFreq, 0.08, 0.05, errorVolume, errorDecay),
	}
}

func generateTick(freq, duration, volume, decay float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := range samples {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * decay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * volume * envelope)
	}
	return samples
}

func generateDoubleBeep(freq, beepDur, gapDur, volume, decay float64) []int16 {
	tick := generateTick(freq, beepDur, volume, decay)
	gap := make([]int16, int(sampleRate*gapDur))
	out := make([]int16, 0, len(tick)*2+len(gap))
	out = append(out, tick...)
	out = append(out, gap...)
	out = append(out, tick...)
	return out
}

func (p *Player) Disable() {
	p.mu.Lock()
	p.disabled = true
	p.mu.Unlock()
}

func (p *Player) PlayStart() { p.play(p.start) }
func (p *Player) PlayEnd()   { p.play(p.end) }
func (p *Player) PlayError() { p.play(p.fail) }

// Wait blocks until queued tones have finished.
func (p *Player) Wait() { p.wg.Wait() }

func (p *Player) play(samples []int16) {
	p.mu.Lock()
	off := p.disabled || p.ctx == nil
	p.mu.Unlock()
	if off {
		return
	}

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		dev, err := p.ctx.NewPlayback(audio.CaptureConfig{SampleRate: sampleRate, Channels: 1})
		if err != nil {
			log.Warnf("beep playback: %v", err)
			return
		}
		defer dev.Close()

		pos := 0
		err = dev.Start(func(buf []int16) int {
			n := copy(buf, samples[pos:])
			pos += n
			return n
		})
		if err != nil {
			log.Warnf("beep playback: %v", err)
			return
		}
		time.Sleep(time.Duration(len(samples))*time.Second/sampleRate + tail)
	}()
}
