// Package hotkey delivers the global Ctrl+Shift+R chord that starts and
// stops a note while the terminal is not focused.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}

const Chord = "Ctrl+Shift+R"
