package platform

import (
	"context"
	"errors"
	"image"
	"strings"
)

var (
	// ErrClipboardLocked is returned when another process keeps the clipboard open
	ErrClipboardLocked = errors.New("clipboard is locked by another process")

	// ErrUnsupported is returned by operations that have no backend on this OS
	ErrUnsupported = errors.New("not supported on this platform")
)

// Modifiers is the RegisterHotKey modifier mask
type Modifiers uint32

const (
	ModAlt      Modifiers = 0x0001
	ModCtrl     Modifiers = 0x0002
	ModShift    Modifiers = 0x0004
	ModWin      Modifiers = 0x0008
	ModNoRepeat Modifiers = 0x4000
)

// String renders the mask as a "ctrl+alt" style list
func (m Modifiers) String() string {
	var parts []string
	if m&ModCtrl != 0 {
		parts = append(parts, "ctrl")
	}
	if m&ModAlt != 0 {
		parts = append(parts, "alt")
	}
	if m&ModShift != 0 {
		parts = append(parts, "shift")
	}
	if m&ModWin != 0 {
		parts = append(parts, "win")
	}
	if m&ModNoRepeat != 0 {
		parts = append(parts, "norepeat")
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, "+")
}

// MessageHook observes every message delivered to the agent window.
// It must not block; the window procedure continues with default handling after it returns.
type MessageHook func(msg uint32, wParam, lParam uintptr)

// Window owns the native message loop
type Window interface {
	// Run creates the window and pumps messages until ctx is cancelled.
	// ready, if set, is called once the window exists and accepts hotkey calls.
	Run(ctx context.Context, hook MessageHook, ready func()) error
	HotkeyRegistrar
}

// HotkeyRegistrar binds global key chords to ids.
// Errors carry the native error code (syscall.Errno) when the OS rejected the call.
type HotkeyRegistrar interface {
	RegisterHotKey(id int, mods Modifiers, vk int) error
	UnregisterHotKey(id int) error
}

// Clipboard provides clipboard access.
// Read methods report false when the requested representation is absent.
type Clipboard interface {
	ReadText() (string, bool, error)
	ReadImage() (image.Image, bool, error)
	WriteText(text string) error
	WriteImage(img image.Image) error
}

// KeyReleaser lifts any modifier keys the guest still believes are held
type KeyReleaser interface {
	ReleaseModifiers() error
}
