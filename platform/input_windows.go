//go:build windows

package platform

import (
	"fmt"
	"unsafe"
)

var (
	sendInput      = user32.NewProc("SendInput")
	mapVirtualKeyW = user32.NewProc("MapVirtualKeyW")
)

const (
	inputKeyboard        = 1
	keyeventfExtendedKey = 0x0001
	keyeventfKeyup       = 0x0002
	mapvkVkToVsc         = 0
)

type keyboardInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type input struct {
	inputType uint32
	ki        keyboardInput
	padding   [8]byte // Padding to match C struct size
}

// modifierKeys are lifted by ReleaseModifiers; extended marks the right-hand variants
var modifierKeys = []struct {
	vk       uint16
	extended bool
}{
	{0x10, false}, // VK_SHIFT
	{0x11, false}, // VK_CONTROL
	{0x12, false}, // VK_MENU
	{0xA0, false}, // VK_LSHIFT
	{0xA1, false}, // VK_RSHIFT
	{0xA2, false}, // VK_LCONTROL
	{0xA3, true},  // VK_RCONTROL
	{0xA4, false}, // VK_LMENU
	{0xA5, true},  // VK_RMENU
	{0x5B, true},  // VK_LWIN
	{0x5C, true},  // VK_RWIN
}

// WindowsKeyboard injects key-up events through SendInput
type WindowsKeyboard struct{}

// NewKeyReleaser creates a new Windows key releaser
func NewKeyReleaser() KeyReleaser {
	return &WindowsKeyboard{}
}

// ReleaseModifiers sends a key-up for every modifier. The host asks for this when
// input focus leaves the guest while a chord was held, which would otherwise leave
// the guest with a stuck modifier.
func (k *WindowsKeyboard) ReleaseModifiers() error {
	inputs := make([]input, 0, len(modifierKeys))
	for _, key := range modifierKeys {
		scan, _, _ := mapVirtualKeyW.Call(uintptr(key.vk), mapvkVkToVsc)
		flags := uint32(keyeventfKeyup)
		if key.extended {
			flags |= keyeventfExtendedKey
		}
		inputs = append(inputs, input{
			inputType: inputKeyboard,
			ki: keyboardInput{
				wVk:     key.vk,
				wScan:   uint16(scan),
				dwFlags: flags,
			},
		})
	}

	ret, _, err := sendInput.Call(
		uintptr(len(inputs)),
		uintptr(unsafe.Pointer(&inputs[0])),
		unsafe.Sizeof(inputs[0]),
	)
	if int(ret) != len(inputs) {
		return fmt.Errorf("SendInput injected %d of %d events: %w", ret, len(inputs), err)
	}
	return nil
}
