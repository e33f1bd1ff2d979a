package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/mewkiz/flac"
)

var ErrUnknownFormat = errors.New("unrecognized audio container")

// PCM is decoded, interleaved 16-bit audio.
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

func (p PCM) Frames() int {
	if p.Channels == 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

func (p PCM) Duration() time.Duration {
	if p.SampleRate == 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// Info describes a container without keeping its samples.
type Info struct {
	Format     string
	SampleRate int
	Channels   int
	Frames     int
	Duration   time.Duration
}

// Sniff reports the container format from its magic bytes.
func Sniff(data []byte) string {
	switch {
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE":
		return FormatWAV
	case len(data) >= 4 && string(data[:4]) == "fLaC":
		return FormatFLAC
	}
	return ""
}

func Decode(data []byte) (PCM, error) {
	switch Sniff(data) {
	case FormatWAV:
		return decodeWAV(data)
	case FormatFLAC:
		return decodeFLAC(data)
	}
	return PCM{}, ErrUnknownFormat
}

// Probe reads only the WAV header; FLAC streams written without a seekable
// sink carry no sample count, so they are decoded.
func Probe(data []byte) (Info, error) {
	format := Sniff(data)
	if format == FormatWAV {
		f, pcm, err := parseWAV(data)
		if err != nil {
			return Info{}, err
		}
		frames := len(pcm) / (f.channels * 2)
		return Info{
			Format:     FormatWAV,
			SampleRate: f.sampleRate,
			Channels:   f.channels,
			Frames:     frames,
			Duration:   time.Duration(frames) * time.Second / time.Duration(f.sampleRate),
		}, nil
	}

	p, err := Decode(data)
	if err != nil {
		return Info{}, err
	}
	return Info{
		Format:     format,
		SampleRate: p.SampleRate,
		Channels:   p.Channels,
		Frames:     p.Frames(),
		Duration:   p.Duration(),
	}, nil
}

type wavFormat struct {
	channels   int
	sampleRate int
	bits       int
}

func parseWAV(data []byte) (wavFormat, []byte, error) {
	var f wavFormat
	if Sniff(data) != FormatWAV {
		return f, nil, ErrUnknownFormat
	}
	haveFmt := false
	pos := 12
	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(binary.LittleEndian.Uint32(data[pos+4:]))
		body := data[pos+8:]
		if size > len(body) {
			size = len(body)
		}
		switch id {
		case "fmt ":
			if size < 16 {
				return f, nil, fmt.Errorf("wav: short fmt chunk (%d bytes)", size)
			}
			if tag := binary.LittleEndian.Uint16(body); tag != 1 {
				return f, nil, fmt.Errorf("wav: unsupported format tag %d", tag)
			}
			f.channels = int(binary.LittleEndian.Uint16(body[2:]))
			f.sampleRate = int(binary.LittleEndian.Uint32(body[4:]))
			f.bits = int(binary.LittleEndian.Uint16(body[14:]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return f, nil, fmt.Errorf("wav: data chunk before fmt chunk")
			}
			if f.bits != 16 || f.channels == 0 || f.sampleRate == 0 {
				return f, nil, fmt.Errorf("wav: unsupported layout %d-bit %dch %dHz", f.bits, f.channels, f.sampleRate)
			}
			return f, body[:size], nil
		}
		pos += 8 + size + size%2
	}
	return f, nil, fmt.Errorf("wav: missing data chunk")
}

func decodeWAV(data []byte) (PCM, error) {
	f, raw, err := parseWAV(data)
	if err != nil {
		return PCM{}, err
	}
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}
	return PCM{Samples: samples, SampleRate: f.sampleRate, Channels: f.channels}, nil
}

func decodeFLAC(data []byte) (PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return PCM{}, fmt.Errorf("opening flac stream: %w", err)
	}
	defer stream.Close()

	p := PCM{
		SampleRate: int(stream.Info.SampleRate),
		Channels:   int(stream.Info.NChannels),
	}
	if stream.Info.BitsPerSample != 16 {
		return PCM{}, fmt.Errorf("flac: unsupported bit depth %d", stream.Info.BitsPerSample)
	}

	for {
		f, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return PCM{}, fmt.Errorf("decoding flac frame: %w", err)
		}
		if len(f.Subframes) == 0 {
			continue
		}
		n := len(f.Subframes[0].Samples)
		for i := 0; i < n; i++ {
			for _, sub := range f.Subframes {
				p.Samples = append(p.Samples, int16(sub.Samples[i]))
			}
		}
	}
	return p, nil
}
