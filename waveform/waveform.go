// Package waveform holds what the terminal draws: live amplitude while
// recording and the peaks and cursor of a finished note during review.
package waveform

import (
	"math"
	"sync"
	"time"

	"notecap/audio"
	"notecap/encoder"
	"notecap/log"
)

// LevelsPerSecond is the nominal rate of PushLevel calls used to size the
// live ring.
const LevelsPerSecond = 16

type Surface struct {
	mu sync.Mutex

	live    []float64
	liveLen int
	livePos int

	samples  []int16
	rate     int
	duration time.Duration

	playing   bool
	offset    time.Duration
	startedAt time.Time

	out audio.PlaybackDevice
	now func() time.Time
}

// New keeps the last seconds of live levels. out may be nil, in which case
// review playback only moves the cursor.
func New(seconds int, out audio.PlaybackDevice) *Surface {
	if seconds <= 0 {
		seconds = 30
	}
	return &Surface{
		live: make([]float64, seconds*LevelsPerSecond),
		out:  out,
		now:  time.Now,
	}
}

func (s *Surface) PushLevel(level float64) {
	s.mu.Lock()
	s.live[s.livePos] = level
	s.livePos = (s.livePos + 1) % len(s.live)
	if s.liveLen < len(s.live) {
		s.liveLen++
	}
	s.mu.Unlock()
}

func (s *Surface) Reset() {
	s.mu.Lock()
	clear(s.live)
	s.liveLen = 0
	s.livePos = 0
	s.mu.Unlock()
}

// Live returns up to width of the most recent levels, oldest first.
func (s *Surface) Live(width int) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := min(width, s.liveLen)
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	start := s.livePos - n
	for i := range out {
		out[i] = s.live[(start+i+len(s.live))%len(s.live)]
	}
	return out
}

// Load decodes a WAV or FLAC payload for review. Multi-channel audio is
// mixed down to mono.
func (s *Surface) Load(data []byte) error {
	pcm, err := encoder.Decode(data)
	if err != nil {
		return err
	}
	mono := pcm.Samples
	if pcm.Channels > 1 {
		mono = make([]int16, pcm.Frames())
		for i := range mono {
			var sum int
			for ch := 0; ch < pcm.Channels; ch++ {
				sum += int(pcm.Samples[i*pcm.Channels+ch])
			}
			mono[i] = int16(sum / pcm.Channels)
		}
	}

	s.mu.Lock()
	wasPlaying := s.playing
	s.samples = mono
	s.rate = pcm.SampleRate
	s.duration = pcm.Duration()
	s.playing = false
	s.offset = 0
	out := s.out
	s.mu.Unlock()

	if wasPlaying && out != nil {
		out.Stop()
	}
	return nil
}

func (s *Surface) Clear() {
	s.Stop()
	s.mu.Lock()
	s.samples = nil
	s.rate = 0
	s.duration = 0
	s.mu.Unlock()
}

// Peaks returns width buckets of absolute peak amplitude in 0..1.
func (s *Surface) Peaks(width int) []float64 {
	s.mu.Lock()
	samples := s.samples
	s.mu.Unlock()
	if width <= 0 || len(samples) == 0 {
		return nil
	}

	peaks := make([]float64, width)
	for i := range peaks {
		lo := i * len(samples) / width
		hi := (i + 1) * len(samples) / width
		if hi <= lo {
			hi = min(lo+1, len(samples))
		}
		var peak float64
		for _, v := range samples[lo:hi] {
			peak = math.Max(peak, math.Abs(float64(v))/32768.0)
		}
		peaks[i] = peak
	}
	return peaks
}

func (s *Surface) positionLocked() time.Duration {
	if !s.playing {
		return s.offset
	}
	return s.offset + s.now().Sub(s.startedAt)
}

// settleLocked stops and rewinds once the cursor has passed the end. It
// reports whether the output must be stopped.
func (s *Surface) settleLocked() bool {
	if s.playing && s.positionLocked() >= s.duration {
		s.playing = false
		s.offset = 0
		return true
	}
	return false
}

func (s *Surface) stopOutput(stop bool) {
	if stop && s.out != nil {
		s.out.Stop()
	}
}

// PlayPause toggles review playback and reports whether it is now playing.
// With nothing loaded it does nothing.
func (s *Surface) PlayPause() bool {
	s.mu.Lock()
	ended := s.settleLocked()
	if len(s.samples) == 0 {
		s.mu.Unlock()
		s.stopOutput(ended)
		return false
	}
	if s.playing {
		s.offset = s.positionLocked()
		s.playing = false
		s.mu.Unlock()
		s.stopOutput(true)
		return false
	}

	s.playing = true
	s.startedAt = s.now()
	src := s.sourceLocked()
	s.mu.Unlock()

	if s.out != nil {
		s.stopOutput(ended)
		if err := s.out.Start(src); err != nil {
			log.Warnf("playback start: %v", err)
		}
	}
	return true
}

// sourceLocked streams samples from the current offset. It reads only the
// slice captured here so it never takes the surface lock.
func (s *Surface) sourceLocked() audio.SampleSource {
	samples := s.samples
	pos := int(int64(s.offset) * int64(s.rate) / int64(time.Second))
	return func(buf []int16) int {
		if pos >= len(samples) {
			return 0
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n
	}
}

func (s *Surface) Pause() {
	s.mu.Lock()
	ended := s.settleLocked()
	wasPlaying := s.playing
	if s.playing {
		s.offset = s.positionLocked()
		s.playing = false
	}
	s.mu.Unlock()
	s.stopOutput(ended || wasPlaying)
}

// Stop halts playback and rewinds the cursor.
func (s *Surface) Stop() {
	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = false
	s.offset = 0
	s.mu.Unlock()
	s.stopOutput(wasPlaying)
}

func (s *Surface) IsPlaying() bool {
	s.mu.Lock()
	ended := s.settleLocked()
	playing := s.playing
	s.mu.Unlock()
	s.stopOutput(ended)
	return playing
}

func (s *Surface) Position() time.Duration {
	s.mu.Lock()
	ended := s.settleLocked()
	pos := s.positionLocked()
	s.mu.Unlock()
	s.stopOutput(ended)
	return pos
}

func (s *Surface) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}
