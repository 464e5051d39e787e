//go:build windows

package platform

import (
	"fmt"
	"image"
	"sync/atomic"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32                     = windows.NewLazySystemDLL("user32.dll")
	kernel32                   = windows.NewLazySystemDLL("kernel32.dll")
	openClipboard              = user32.NewProc("OpenClipboard")
	closeClipboard             = user32.NewProc("CloseClipboard")
	emptyClipboard             = user32.NewProc("EmptyClipboard")
	getClipboardData           = user32.NewProc("GetClipboardData")
	setClipboardData           = user32.NewProc("SetClipboardData")
	isClipboardFormatAvailable = user32.NewProc("IsClipboardFormatAvailable")
	globalAlloc                = kernel32.NewProc("GlobalAlloc")
	globalFree                 = kernel32.NewProc("GlobalFree")
	globalLock                 = kernel32.NewProc("GlobalLock")
	globalUnlock               = kernel32.NewProc("GlobalUnlock")
	globalSize                 = kernel32.NewProc("GlobalSize")
)

const (
	cfDIB         = 8
	cfUnicodeText = 13
	gmemMoveable  = 0x0002
)

// clipboardOwner is the agent window handle once it exists.
// EmptyClipboard with a NULL owner makes SetClipboardData fail on some builds.
var clipboardOwner atomic.Uintptr

// WindowsClipboard implements the Clipboard interface for Windows
type WindowsClipboard struct {
	retries int
	delay   time.Duration
}

// NewClipboard creates a new Windows clipboard instance.
// OpenClipboard is attempted retries times, delay apart, before giving up with ErrClipboardLocked.
func NewClipboard(retries int, delay time.Duration) Clipboard {
	if retries < 1 {
		retries = 1
	}
	return &WindowsClipboard{retries: retries, delay: delay}
}

// ReadText retrieves CF_UNICODETEXT from the clipboard
func (c *WindowsClipboard) ReadText() (string, bool, error) {
	if err := c.open(); err != nil {
		return "", false, err
	}
	defer c.close()

	if r, _, _ := isClipboardFormatAvailable.Call(cfUnicodeText); r == 0 {
		return "", false, nil
	}

	data, err := readGlobal(cfUnicodeText)
	if err != nil {
		return "", false, err
	}
	if len(data) < 2 {
		return "", true, nil
	}

	units := unsafe.Slice((*uint16)(unsafe.Pointer(&data[0])), len(data)/2)
	return windows.UTF16ToString(units), true, nil
}

// ReadImage retrieves CF_DIB from the clipboard and decodes it
func (c *WindowsClipboard) ReadImage() (image.Image, bool, error) {
	if err := c.open(); err != nil {
		return nil, false, err
	}
	data, err := func() ([]byte, error) {
		defer c.close()
		if r, _, _ := isClipboardFormatAvailable.Call(cfDIB); r == 0 {
			return nil, nil
		}
		return readGlobal(cfDIB)
	}()
	if err != nil || data == nil {
		return nil, false, err
	}

	img, err := dibToImage(data)
	if err != nil {
		return nil, false, err
	}
	return img, true, nil
}

// WriteText replaces the clipboard with CF_UNICODETEXT
func (c *WindowsClipboard) WriteText(text string) error {
	utf16, err := windows.UTF16FromString(text)
	if err != nil {
		return fmt.Errorf("UTF16 conversion failed: %w", err)
	}
	data := unsafe.Slice((*byte)(unsafe.Pointer(&utf16[0])), len(utf16)*2)

	return c.replace(cfUnicodeText, data)
}

// WriteImage replaces the clipboard with a CF_DIB rendering of img
func (c *WindowsClipboard) WriteImage(img image.Image) error {
	dib, err := imageToDIB(img)
	if err != nil {
		return err
	}
	return c.replace(cfDIB, dib)
}

func (c *WindowsClipboard) replace(format uintptr, data []byte) error {
	if err := c.open(); err != nil {
		return err
	}
	defer c.close()

	if r, _, err := emptyClipboard.Call(); r == 0 {
		return fmt.Errorf("EmptyClipboard failed: %w", err)
	}
	return writeGlobal(format, data)
}

func (c *WindowsClipboard) open() error {
	err := attempt(c.retries, c.delay, time.Sleep, func() error {
		if r, _, err := openClipboard.Call(clipboardOwner.Load()); r == 0 {
			return err
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: OpenClipboard: %v", ErrClipboardLocked, err)
	}
	return nil
}

func (c *WindowsClipboard) close() {
	closeClipboard.Call()
}

// readGlobal copies the HGLOBAL behind format out of the open clipboard
func readGlobal(format uintptr) ([]byte, error) {
	h, _, err := getClipboardData.Call(format)
	if h == 0 {
		return nil, fmt.Errorf("GetClipboardData failed: %w", err)
	}

	size, _, _ := globalSize.Call(h)
	l, _, err := globalLock.Call(h)
	if l == 0 {
		return nil, fmt.Errorf("GlobalLock failed: %w", err)
	}
	defer globalUnlock.Call(h)

	data := make([]byte, size)
	copy(data, unsafe.Slice((*byte)(unsafe.Pointer(l)), size))
	return data, nil
}

// writeGlobal hands a moveable copy of data to the open clipboard
func writeGlobal(format uintptr, data []byte) error {
	h, _, err := globalAlloc.Call(gmemMoveable, uintptr(len(data)))
	if h == 0 {
		return fmt.Errorf("GlobalAlloc failed: %w", err)
	}

	l, _, err := globalLock.Call(h)
	if l == 0 {
		globalFree.Call(h)
		return fmt.Errorf("GlobalLock failed: %w", err)
	}
	copy(unsafe.Slice((*byte)(unsafe.Pointer(l)), len(data)), data)
	globalUnlock.Call(h)

	// The system owns h after a successful SetClipboardData
	if r, _, err := setClipboardData.Call(format, h); r == 0 {
		globalFree.Call(h)
		if errno, ok := err.(syscall.Errno); ok && errno == 0 {
			return fmt.Errorf("SetClipboardData failed")
		}
		return fmt.Errorf("SetClipboardData failed: %w", err)
	}
	return nil
}
