package bridge

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"time"
	"unicode/utf16"

	"markestedt/guestagent/platform"
)

// Text is clipboard text as UTF-16 code units
type Text []uint16

// NewText encodes s as UTF-16
func NewText(s string) Text {
	return Text(utf16.Encode([]rune(s)))
}

func (t Text) String() string {
	return string(utf16.Decode(t))
}

// ClipboardError is returned by Clipboard operations
type ClipboardError struct {
	Op  string
	Err error
}

func (e *ClipboardError) Error() string {
	return fmt.Sprintf("clipboard %s: %v", e.Op, e.Err)
}

func (e *ClipboardError) Unwrap() error { return e.Err }

// Temporary reports whether retrying later may succeed
func (e *ClipboardError) Temporary() bool {
	return errors.Is(e.Err, platform.ErrClipboardLocked)
}

// Clipboard wraps the platform clipboard. A locked clipboard is retried before
// an error is returned, and everything handed out is a private copy.
type Clipboard struct {
	backend platform.Clipboard
	retries int
	delay   time.Duration
}

// NewClipboard wraps backend. Locked-clipboard failures are retried up to retries
// extra times, delay apart.
func NewClipboard(backend platform.Clipboard, retries int, delay time.Duration) *Clipboard {
	return &Clipboard{backend: backend, retries: retries, delay: delay}
}

// ReadText returns the clipboard text, or false when the clipboard holds none
func (c *Clipboard) ReadText() (Text, bool, error) {
	var (
		text string
		ok   bool
	)
	err := c.retry(func() (err error) {
		text, ok, err = c.backend.ReadText()
		return err
	})
	if err != nil {
		return nil, false, &ClipboardError{Op: "read text", Err: err}
	}
	if !ok {
		return nil, false, nil
	}
	return NewText(text), true, nil
}

// ReadImage returns a copy of the clipboard image, or false when the clipboard holds none
func (c *Clipboard) ReadImage() (*image.NRGBA, bool, error) {
	var (
		img image.Image
		ok  bool
	)
	err := c.retry(func() (err error) {
		img, ok, err = c.backend.ReadImage()
		return err
	})
	if err != nil {
		return nil, false, &ClipboardError{Op: "read image", Err: err}
	}
	if !ok || img == nil {
		return nil, false, nil
	}
	return cloneNRGBA(img), true, nil
}

// WriteText replaces the clipboard with text
func (c *Clipboard) WriteText(text Text) error {
	s := text.String()
	if err := c.retry(func() error { return c.backend.WriteText(s) }); err != nil {
		return &ClipboardError{Op: "write text", Err: err}
	}
	return nil
}

// WriteImage replaces the clipboard with img
func (c *Clipboard) WriteImage(img image.Image) error {
	if img == nil {
		return &ClipboardError{Op: "write image", Err: errors.New("nil image")}
	}
	snapshot := cloneNRGBA(img)
	if err := c.retry(func() error { return c.backend.WriteImage(snapshot) }); err != nil {
		return &ClipboardError{Op: "write image", Err: err}
	}
	return nil
}

func (c *Clipboard) retry(op func() error) error {
	err := op()
	for i := 0; i < c.retries && errors.Is(err, platform.ErrClipboardLocked); i++ {
		time.Sleep(c.delay)
		err = op()
	}
	return err
}

func cloneNRGBA(src image.Image) *image.NRGBA {
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}
