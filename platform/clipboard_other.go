//go:build !windows

package platform

import (
	"image"
	"time"

	"github.com/atotto/clipboard"
)

// textClipboard is the fallback used outside Windows. It only carries text.
type textClipboard struct{}

// NewClipboard returns a text-only clipboard backed by the desktop's clipboard tool
func NewClipboard(retries int, delay time.Duration) Clipboard {
	return textClipboard{}
}

func (textClipboard) ReadText() (string, bool, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", false, err
	}
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}

func (textClipboard) ReadImage() (image.Image, bool, error) {
	return nil, false, nil
}

func (textClipboard) WriteText(text string) error {
	return clipboard.WriteAll(text)
}

func (textClipboard) WriteImage(img image.Image) error {
	return ErrUnsupported
}
