package bridge

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"markestedt/guestagent/platform"
)

func TestClipboardTextRoundTrip(t *testing.T) {
	c := NewClipboard(&memoryClipboard{}, 0, 0)

	_, ok, err := c.ReadText()
	require.NoError(t, err)
	assert.False(t, ok)

	want := NewText("grüße 🎮")
	require.NoError(t, c.WriteText(want))

	got, ok, err := c.ReadText()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want, got)
	assert.Equal(t, "grüße 🎮", got.String())
	assert.Len(t, got, 8, "the emoji is a surrogate pair")
}

func TestClipboardTextAbsentWhenImageHeld(t *testing.T) {
	backend := &memoryClipboard{}
	c := NewClipboard(backend, 0, 0)

	require.NoError(t, c.WriteText(NewText("old")))
	require.NoError(t, c.WriteImage(image.NewNRGBA(image.Rect(0, 0, 2, 2))))

	text, ok, err := c.ReadText()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, text)

	_, ok, err = c.ReadImage()
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestClipboardImageIsCopied(t *testing.T) {
	src := image.NewRGBA(image.Rect(10, 10, 13, 12))
	src.Set(10, 10, color.RGBA{R: 200, A: 255})
	backend := &memoryClipboard{img: src}
	c := NewClipboard(backend, 0, 0)

	got, ok, err := c.ReadImage()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, image.Rect(0, 0, 3, 2), got.Bounds())
	assert.Equal(t, color.NRGBA{R: 200, A: 255}, got.NRGBAAt(0, 0))

	// Mutating the copy leaves the clipboard untouched
	got.SetNRGBA(0, 0, color.NRGBA{G: 1, A: 255})
	assert.Equal(t, color.RGBA{R: 200, A: 255}, src.RGBAAt(10, 10))
}

func TestClipboardRetriesWhileLocked(t *testing.T) {
	backend := &memoryClipboard{locked: 2}
	c := NewClipboard(backend, 3, 0)

	require.NoError(t, c.WriteText(NewText("hi")))
	assert.Equal(t, 1, backend.writes)
}

func TestClipboardLockedIsTemporary(t *testing.T) {
	backend := &memoryClipboard{locked: 10}
	c := NewClipboard(backend, 2, 0)

	err := c.WriteText(NewText("hi"))
	var clipErr *ClipboardError
	require.ErrorAs(t, err, &clipErr)
	assert.True(t, clipErr.Temporary())
	assert.ErrorIs(t, err, platform.ErrClipboardLocked)
	assert.Equal(t, "write text", clipErr.Op)
	assert.Equal(t, 7, backend.locked, "one attempt plus two retries")
}

func TestClipboardOtherFailuresAreNotTemporary(t *testing.T) {
	c := NewClipboard(&memoryClipboard{}, 0, 0)

	err := c.WriteImage(nil)
	var clipErr *ClipboardError
	require.ErrorAs(t, err, &clipErr)
	assert.False(t, clipErr.Temporary())

	unsupported := &ClipboardError{Op: "write image", Err: platform.ErrUnsupported}
	assert.False(t, unsupported.Temporary())
	assert.True(t, errors.Is(unsupported, platform.ErrUnsupported))
}
