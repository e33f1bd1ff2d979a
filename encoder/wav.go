package encoder

import (
	"bytes"
	"encoding/binary"
	"sync"
	"time"
)

const wavHeaderSize = 44

type WavEncoder struct {
	buf         bytes.Buffer
	pcm         []byte
	totalFrames uint64
	encodeTime  time.Duration
	closed      bool
	mu          sync.Mutex
}

func NewWav() *WavEncoder {
	return &WavEncoder{}
}

func (e *WavEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()
	for _, s := range block {
		e.pcm = binary.LittleEndian.AppendUint16(e.pcm, uint16(s))
	}
	e.totalFrames += uint64(len(block)) / Channels
	e.encodeTime += time.Since(start)
	return nil
}

// Close writes the RIFF header followed by the buffered samples.
func (e *WavEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true

	start := time.Now()
	writeWAVHeader(&e.buf, len(e.pcm))
	e.buf.Write(e.pcm)
	e.pcm = nil
	e.encodeTime += time.Since(start)
	return nil
}

func writeWAVHeader(buf *bytes.Buffer, dataLen int) {
	byteRate := SampleRate * Channels * BitsPerSample / 8
	blockAlign := Channels * BitsPerSample / 8

	buf.WriteString("RIFF")
	binary.Write(buf, binary.LittleEndian, uint32(36+dataLen))
	buf.WriteString("WAVE")

	buf.WriteString("fmt ")
	binary.Write(buf, binary.LittleEndian, uint32(16))
	binary.Write(buf, binary.LittleEndian, uint16(1)) // PCM
	binary.Write(buf, binary.LittleEndian, uint16(Channels))
	binary.Write(buf, binary.LittleEndian, uint32(SampleRate))
	binary.Write(buf, binary.LittleEndian, uint32(byteRate))
	binary.Write(buf, binary.LittleEndian, uint16(blockAlign))
	binary.Write(buf, binary.LittleEndian, uint16(BitsPerSample))

	buf.WriteString("data")
	binary.Write(buf, binary.LittleEndian, uint32(dataLen))
}

func (e *WavEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *WavEncoder) TotalFrames() uint64 {
	return e.totalFrames
}

func (e *WavEncoder) EncodeTime() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeTime
}
