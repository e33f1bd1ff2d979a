package audio

import (
	"encoding/binary"
	"math"
	"strings"
)

const WAVHeaderSize = 44

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"bluetooth", " bt ", " bt)", " bt]",
}

func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Level returns the RMS of little-endian 16-bit PCM, normalized to 0..1.
func Level(data []byte) float64 {
	if len(data) < 2 {
		return 0
	}
	var sumSquares float64
	n := 0
	for i := 0; i+1 < len(data); i += 2 {
		sample := int16(binary.LittleEndian.Uint16(data[i:]))
		normalized := float64(sample) / 32768.0
		sumSquares += normalized * normalized
		n++
	}
	return math.Sqrt(sumSquares / float64(n))
}

// Amplify scales little-endian 16-bit PCM in place, clipping at full scale.
// A gain of 0 or 1 leaves data untouched.
func Amplify(data []byte, gain float64) {
	if gain == 0 || gain == 1 {
		return
	}
	for i := 0; i+1 < len(data); i += 2 {
		v := float64(int16(binary.LittleEndian.Uint16(data[i:]))) * gain
		v = math.Max(-32768, math.Min(32767, math.Round(v)))
		binary.LittleEndian.PutUint16(data[i:], uint16(int16(v)))
	}
}

type DataCallback func(data []byte, frameCount uint32)

// SampleSource fills buf with interleaved samples and returns how many it
// wrote. Returning 0 ends playback.
type SampleSource func(buf []int16) int

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
	Gain       float64 // capture only; 0 means unity
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	NewPlayback(config CaptureConfig) (PlaybackDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

type PlaybackDevice interface {
	Start(src SampleSource) error
	Stop()
	Close()
}
