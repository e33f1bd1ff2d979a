// Package playback toggles review playback of the current artifact.
package playback

import (
	"fmt"
	"sync"

	"notecap/artifact"
)

type Source interface {
	Bytes(h artifact.Handle) ([]byte, error)
}

type Surface interface {
	Load(data []byte) error
	PlayPause() bool
	Stop()
	IsPlaying() bool
	Clear()
}

// Controller reads an artifact's handle once at Bind; the surface keeps its
// own decoded copy so the handle may be released afterwards.
type Controller struct {
	mu      sync.Mutex
	src     Source
	surface Surface
	bound   *artifact.Artifact
}

func New(src Source, surface Surface) *Controller {
	return &Controller{src: src, surface: surface}
}

func (c *Controller) Bind(a *artifact.Artifact) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.surface.Stop()
	data, err := c.src.Bytes(a.Handle)
	if err == nil {
		err = c.surface.Load(data)
	}
	if err != nil {
		c.bound = nil
		c.surface.Clear()
		return fmt.Errorf("bind %s: %w", a.ID, err)
	}
	c.bound = a
	return nil
}

func (c *Controller) Unbind() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bound = nil
	c.surface.Clear()
}

// TogglePlayback does nothing without a bound artifact.
func (c *Controller) TogglePlayback() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.bound == nil {
		return false
	}
	return c.surface.PlayPause()
}

func (c *Controller) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.Stop()
}

func (c *Controller) Playing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound != nil && c.surface.IsPlaying()
}

func (c *Controller) Bound() *artifact.Artifact {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bound
}
