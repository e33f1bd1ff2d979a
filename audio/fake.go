package audio

import (
	"os"
	"sync"
	"time"

	"notecap/encoder"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext replays PCM from a WAV file instead of a microphone.
type FakeContext struct {
	pcm      []byte
	realtime bool
}

func NewFakeContext(wavPath string, realtime bool) (*FakeContext, error) {
	data, err := os.ReadFile(wavPath)
	if err != nil {
		return nil, err
	}
	if len(data) > WAVHeaderSize {
		data = data[WAVHeaderSize:]
	}
	return NewFakeContextPCM(data, realtime), nil
}

func NewFakeContextPCM(pcm []byte, realtime bool) *FakeContext {
	return &FakeContext{pcm: pcm, realtime: realtime}
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	return []DeviceInfo{{ID: "fake", Name: "fake"}}, nil
}

func (f *FakeContext) Close() {}

func (f *FakeContext) NewCapture(_ *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	return NewFakeCapture(f.pcm, f.realtime), nil
}

func (f *FakeContext) NewPlayback(_ CaptureConfig) (PlaybackDevice, error) {
	return &FakePlayback{}, nil
}

// FakeCapture feeds its PCM to the callback once per Start, then silence
// until Stop. In non-realtime mode the whole clip is delivered inside Start.
type FakeCapture struct {
	pcm      []byte
	realtime bool

	mu        sync.Mutex
	cb        DataCallback
	audioDone chan struct{}
	stopCh    chan struct{}
	feedDone  chan struct{}
	starts    int
}

func NewFakeCapture(pcm []byte, realtime bool) *FakeCapture {
	return &FakeCapture{pcm: pcm, realtime: realtime, audioDone: make(chan struct{})}
}

// AudioDone is closed once the clip has been fully delivered.
func (f *FakeCapture) AudioDone() <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.audioDone
}

// Starts reports how many times Start has been called.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return "fake" }

func (f *FakeCapture) callback() DataCallback {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cb
}

func (f *FakeCapture) feedChunk(cb DataCallback, pos, chunkBytes int) int {
	end := min(pos+chunkBytes, len(f.pcm))
	chunk := make([]byte, end-pos)
	copy(chunk, f.pcm[pos:end])
	cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
	return end
}

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.starts++
	stopCh := make(chan struct{})
	feedDone := make(chan struct{})
	audioDone := f.audioDone
	f.stopCh = stopCh
	f.feedDone = feedDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	silence := make([]byte, chunkBytes)

	if !f.realtime {
		if cb := f.callback(); cb != nil {
			for pos := 0; pos < len(f.pcm); {
				pos = f.feedChunk(cb, pos, chunkBytes)
			}
		}
		close(audioDone)

		go func() {
			defer close(feedDone)
			for {
				select {
				case <-stopCh:
					return
				case <-time.After(time.Millisecond):
				}
				if cb := f.callback(); cb != nil {
					cb(silence, fakeFrameSize)
				}
			}
		}()
		return nil
	}

	interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
	go func() {
		defer close(feedDone)
		pos := 0
		audioFinished := false
		for {
			select {
			case <-stopCh:
				return
			default:
			}

			cb := f.callback()
			if cb == nil {
				time.Sleep(time.Millisecond)
				continue
			}

			if pos < len(f.pcm) {
				pos = f.feedChunk(cb, pos, chunkBytes)
			} else {
				if !audioFinished {
					audioFinished = true
					close(audioDone)
				}
				cb(silence, fakeFrameSize)
			}

			select {
			case <-stopCh:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	stopCh, feedDone := f.stopCh, f.feedDone
	f.stopCh, f.feedDone = nil, nil
	if stopCh != nil {
		// reset for the next Start
		select {
		case <-f.audioDone:
			f.audioDone = make(chan struct{})
		default:
		}
	}
	f.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-feedDone
}

func (f *FakeCapture) Close() { f.Stop() }

// FakePlayback drains its source on a goroutine at real time.
type FakePlayback struct {
	mu      sync.Mutex
	stop    chan struct{}
	done    chan struct{}
	samples int
}

func (p *FakePlayback) Start(src SampleSource) error {
	p.Stop()

	stop := make(chan struct{})
	done := make(chan struct{})
	p.mu.Lock()
	p.stop, p.done = stop, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		buf := make([]int16, fakeFrameSize)
		interval := time.Duration(fakeFrameSize) * time.Second / time.Duration(encoder.SampleRate)
		for {
			n := src(buf)
			if n == 0 {
				return
			}
			p.mu.Lock()
			p.samples += n
			p.mu.Unlock()
			select {
			case <-stop:
				return
			case <-time.After(interval):
			}
		}
	}()
	return nil
}

// Samples reports how many samples have been pulled from sources so far.
func (p *FakePlayback) Samples() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.samples
}

func (p *FakePlayback) Stop() {
	p.mu.Lock()
	stop, done := p.stop, p.done
	p.stop, p.done = nil, nil
	p.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (p *FakePlayback) Close() { p.Stop() }
