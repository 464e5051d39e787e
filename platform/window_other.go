//go:build !windows

package platform

import "context"

// unsupportedWindow stands in for the agent window outside Windows.
// No native events are produced there.
type unsupportedWindow struct{}

// NewWindow returns a window whose operations all fail with ErrUnsupported
func NewWindow() Window {
	return unsupportedWindow{}
}

func (unsupportedWindow) Run(ctx context.Context, hook MessageHook, ready func()) error {
	return ErrUnsupported
}

func (unsupportedWindow) RegisterHotKey(id int, mods Modifiers, vk int) error {
	return ErrUnsupported
}

func (unsupportedWindow) UnregisterHotKey(id int) error {
	return ErrUnsupported
}

type unsupportedKeyboard struct{}

// NewKeyReleaser returns a releaser that fails with ErrUnsupported
func NewKeyReleaser() KeyReleaser {
	return unsupportedKeyboard{}
}

func (unsupportedKeyboard) ReleaseModifiers() error {
	return ErrUnsupported
}
