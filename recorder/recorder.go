// Package recorder is the capture engine behind the session coordinator. It
// buffers microphone PCM between start and stop and delivers the encoded
// payload to subscribers once per stop.
package recorder

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"notecap/audio"
	"notecap/encoder"
	"notecap/log"
	"notecap/session"
)

var ErrAlreadyActive = errors.New("recorder already active")

// speechLevel is the RMS above which a callback counts as voice.
const speechLevel = 0.02

// LevelSink receives the RMS of every captured buffer. Reset is called when
// a new capture starts.
type LevelSink interface {
	PushLevel(level float64)
	Reset()
}

type state int

const (
	idle state = iota
	recording
	paused
)

type Recorder struct {
	capture audio.CaptureDevice
	format  string
	levels  LevelSink

	mu      sync.Mutex
	state   state
	seq     uint64
	pcm     []byte
	frames  uint64
	dropped uint64
	speech  bool
	subs    map[int]func(session.Completion)
	nextSub int
	wg      sync.WaitGroup
}

func New(capture audio.CaptureDevice, format string, levels LevelSink) *Recorder {
	return &Recorder{
		capture: capture,
		format:  format,
		levels:  levels,
		subs:    make(map[int]func(session.Completion)),
	}
}

func (r *Recorder) onData(data []byte, frameCount uint32) {
	r.mu.Lock()
	switch r.state {
	case recording:
	case paused:
		r.dropped += uint64(frameCount)
		r.mu.Unlock()
		return
	default:
		r.mu.Unlock()
		return
	}
	r.pcm = append(r.pcm, data...)
	r.frames += uint64(frameCount)
	level := audio.Level(data)
	if level >= speechLevel {
		r.speech = true
	}
	r.mu.Unlock()

	if r.levels != nil {
		r.levels.PushLevel(level)
	}
}

func (r *Recorder) StartRecording() (uint64, error) {
	r.mu.Lock()
	if r.state != idle {
		r.mu.Unlock()
		return 0, ErrAlreadyActive
	}
	r.seq++
	id := r.seq
	r.state = recording
	r.pcm = nil
	r.frames = 0
	r.dropped = 0
	r.speech = false
	r.mu.Unlock()

	if r.levels != nil {
		r.levels.Reset()
	}
	r.capture.SetCallback(r.onData)
	if err := r.capture.Start(); err != nil {
		r.capture.ClearCallback()
		r.mu.Lock()
		r.state = idle
		r.mu.Unlock()
		return 0, fmt.Errorf("capture start: %w", err)
	}
	log.Info("recording_start")
	return id, nil
}

// StopRecording ends the capture and encodes the buffered audio on a new
// goroutine. Stopping an idle recorder does nothing.
func (r *Recorder) StopRecording() {
	r.mu.Lock()
	if r.state == idle {
		r.mu.Unlock()
		return
	}
	r.state = idle
	id, pcm, dropped := r.seq, r.pcm, r.dropped
	r.pcm = nil
	subs := make([]func(session.Completion), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	r.wg.Add(1)
	r.mu.Unlock()

	r.capture.Stop()
	r.capture.ClearCallback()
	log.Info("recording_stop")

	go func() {
		defer r.wg.Done()
		done := r.finish(id, pcm, dropped)
		for _, fn := range subs {
			fn(done)
		}
	}()
}

func (r *Recorder) finish(id uint64, pcm []byte, dropped uint64) session.Completion {
	done := session.Completion{Capture: id, Format: r.format}
	enc, err := encoder.EncodePCM(r.format, pcm)
	if err != nil {
		log.Errorf("encode capture %d: %v", id, err)
		done.Err = fmt.Errorf("encode: %w", err)
		return done
	}
	done.Payload = enc.Bytes()

	frames := len(pcm) / 2
	log.Capture(log.CaptureStats{
		Capture:    id,
		Format:     r.format,
		AudioS:     float64(frames) / encoder.SampleRate,
		RawKB:      float64(len(pcm)) / 1024,
		PayloadKB:  float64(len(done.Payload)) / 1024,
		EncodeMs:   float64(enc.EncodeTime().Microseconds()) / 1000,
		PausedDrop: int(dropped),
	})
	return done
}

func (r *Recorder) PauseRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == recording {
		r.state = paused
	}
}

func (r *Recorder) ResumeRecording() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == paused {
		r.state = recording
	}
}

// IsRecording is false while paused.
func (r *Recorder) IsRecording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == recording
}

func (r *Recorder) IsPaused() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == paused
}

func (r *Recorder) IsActive() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state != idle
}

func (r *Recorder) OnRecordEnd(fn func(session.Completion)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.nextSub
	r.nextSub++
	r.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, id)
			r.mu.Unlock()
		})
	}
}

// Captured is the audio kept so far in the current capture, excluding
// paused stretches.
func (r *Recorder) Captured() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return time.Duration(r.frames) * time.Second / encoder.SampleRate
}

// HasSpeechTick reports whether voice was heard since the previous call.
func (r *Recorder) HasSpeechTick() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.speech
	r.speech = false
	return v
}

func (r *Recorder) DeviceName() string {
	return r.capture.DeviceName()
}

// Wait blocks until every pending completion has been delivered.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

func (r *Recorder) Close() {
	r.StopRecording()
	r.Wait()
	r.capture.Close()
}
