// Package artifact owns finalized recordings. Each artifact's bytes live
// behind a revocable handle, and reads through a revoked handle fail.
package artifact

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"notecap/encoder"
)

var (
	ErrEmptyPayload = errors.New("recording is empty")
	ErrUnusable     = errors.New("recording is unreadable")
	ErrRevoked      = errors.New("resource handle has been released")
)

type Handle string

// Artifact is immutable after Materialize returns it.
type Artifact struct {
	ID           uuid.UUID
	Handle       Handle
	Format       string
	Size         int
	DurationHint time.Duration
	CreatedAt    time.Time
}

type Manager struct {
	mu      sync.Mutex
	blobs   map[Handle][]byte
	current *Artifact
	now     func() time.Time
}

func NewManager() *Manager {
	return &Manager{
		blobs: make(map[Handle][]byte),
		now:   time.Now,
	}
}

// Materialize copies payload behind a new handle and makes the result the
// current artifact. The previous current artifact is left live; releasing it
// is the caller's decision.
func (m *Manager) Materialize(payload []byte, format string) (*Artifact, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}
	info, err := encoder.Probe(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnusable, err)
	}
	if info.Frames == 0 {
		return nil, ErrEmptyPayload
	}
	if format == "" {
		format = info.Format
	}

	id := uuid.New()
	a := &Artifact{
		ID:           id,
		Handle:       Handle("blob:notecap/" + id.String()),
		Format:       format,
		Size:         len(payload),
		DurationHint: info.Duration,
		CreatedAt:    m.now(),
	}

	blob := make([]byte, len(payload))
	copy(blob, payload)

	m.mu.Lock()
	m.blobs[a.Handle] = blob
	m.current = a
	m.mu.Unlock()
	return a, nil
}

// Release revokes the artifact's handle. Releasing twice is a no-op.
func (m *Manager) Release(a *Artifact) {
	if a == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, a.Handle)
	if m.current == a {
		m.current = nil
	}
}

func (m *Manager) Current() *Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Bytes returns the stored payload. Callers must not modify it.
func (m *Manager) Bytes(h Handle) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[h]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRevoked, h)
	}
	return blob, nil
}

func (m *Manager) Open(h Handle) (io.ReadSeeker, error) {
	blob, err := m.Bytes(h)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(blob), nil
}

// Live reports how many handles have not been released.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.blobs)
}

// Close releases every handle.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.blobs)
	m.current = nil
}
