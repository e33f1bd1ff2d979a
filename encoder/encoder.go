package encoder

import (
	"encoding/binary"
	"fmt"
	"time"
)

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

const (
	FormatWAV  = "wav"
	FormatFLAC = "flac"
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
	EncodeTime() time.Duration
}

// New returns an encoder for the named container format.
func New(format string) (Encoder, error) {
	switch format {
	case FormatWAV, "":
		return NewWav(), nil
	case FormatFLAC:
		return NewFlac()
	default:
		return nil, fmt.Errorf("unknown format %q (use wav or flac)", format)
	}
}

// EncodePCM runs little-endian 16-bit PCM through a fresh encoder in
// BlockSize chunks and returns the finished container.
func EncodePCM(format string, pcm []byte) (Encoder, error) {
	enc, err := New(format)
	if err != nil {
		return nil, err
	}
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	for i := 0; i < len(samples); i += BlockSize {
		end := min(i+BlockSize, len(samples))
		if err := enc.EncodeBlock(samples[i:end]); err != nil {
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("closing %s encoder: %w", format, err)
	}
	return enc, nil
}
