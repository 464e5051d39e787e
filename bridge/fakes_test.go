package bridge

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"runtime"
	"sync"

	"markestedt/guestagent/platform"
)

// recordingConn is a Conn that captures everything written to it
type recordingConn struct {
	sync.Mutex
	buf    bytes.Buffer
	writes int
	// failAt makes the nth Write (1-based) fail, 0 disables
	failAt int
	// shortAt makes the nth Write report one byte less than given
	shortAt int
}

func (c *recordingConn) Write(p []byte) (int, error) {
	c.writes++
	if c.failAt == c.writes {
		return 0, errors.New("connection reset")
	}
	if c.shortAt == c.writes {
		c.buf.Write(p[:len(p)-1])
		return len(p) - 1, nil
	}
	// Give other producers a chance to run between the parts of a command
	runtime.Gosched()
	return c.buf.Write(p)
}

func (c *recordingConn) Bytes() []byte {
	c.Lock()
	defer c.Unlock()
	return bytes.Clone(c.buf.Bytes())
}

// decodeCommands splits a captured stream back into commands
func decodeCommands(data []byte) ([]Command, error) {
	var out []Command
	for len(data) > 0 {
		code := Code(data[0])
		data = data[1:]

		var size int
		switch code {
		case ReportBoot, EnteringSuspend, Pong, ClipboardEmpty:
			size = 0
		case HotKeyFired:
			size = 4
		case HotKeyBindingFailed, ClipboardText, ClipboardImage, ClipboardFailed:
			if len(data) < 4 {
				return out, fmt.Errorf("truncated length for %s", code)
			}
			size = 4 + int(binary.LittleEndian.Uint32(data))
		default:
			return out, fmt.Errorf("unexpected code %d", code)
		}
		if len(data) < size {
			return out, fmt.Errorf("truncated payload for %s", code)
		}

		cmd := Command{Code: code}
		if size > 0 {
			cmd.Payload = bytes.Clone(data[:size])
		}
		out = append(out, cmd)
		data = data[size:]
	}
	return out, nil
}

type recordingSender struct {
	mu   sync.Mutex
	sent []Command
	err  error
}

func (s *recordingSender) Send(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, cmd)
	return nil
}

// fakeRegistrar stands in for the OS hotkey table
type fakeRegistrar struct {
	registerCalls   int
	unregisterCalls int
	err             error
}

func (r *fakeRegistrar) RegisterHotKey(id int, mods platform.Modifiers, vk int) error {
	r.registerCalls++
	return r.err
}

func (r *fakeRegistrar) UnregisterHotKey(id int) error {
	r.unregisterCalls++
	return r.err
}

// memoryClipboard holds either text or an image, like the real clipboard
type memoryClipboard struct {
	text   *string
	img    image.Image
	locked int
	writes int
}

func (c *memoryClipboard) busy() bool {
	if c.locked > 0 {
		c.locked--
		return true
	}
	return false
}

func (c *memoryClipboard) ReadText() (string, bool, error) {
	if c.busy() {
		return "", false, platform.ErrClipboardLocked
	}
	if c.text == nil {
		return "", false, nil
	}
	return *c.text, true, nil
}

func (c *memoryClipboard) ReadImage() (image.Image, bool, error) {
	if c.busy() {
		return nil, false, platform.ErrClipboardLocked
	}
	if c.img == nil {
		return nil, false, nil
	}
	return c.img, true, nil
}

func (c *memoryClipboard) WriteText(text string) error {
	if c.busy() {
		return platform.ErrClipboardLocked
	}
	c.writes++
	c.text, c.img = &text, nil
	return nil
}

func (c *memoryClipboard) WriteImage(img image.Image) error {
	if c.busy() {
		return platform.ErrClipboardLocked
	}
	c.writes++
	c.text, c.img = nil, img
	return nil
}
