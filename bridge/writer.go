package bridge

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrChannelBroken marks a send that failed after the connection may have
// received part of a command. The connection must be discarded.
var ErrChannelBroken = errors.New("connection broken during send")

// Conn is the shared connection. Lock guards a complete command; Write is only
// valid while it is held.
type Conn interface {
	sync.Locker
	io.Writer
}

// Sender delivers commands to the host
type Sender interface {
	Send(cmd Command) error
}

// Writer sends commands over a connection shared with other writers
type Writer struct {
	conn Conn
}

// NewWriter creates a writer for conn. Every Writer built on the same conn
// serializes through conn's lock.
func NewWriter(conn Conn) *Writer {
	return &Writer{conn: conn}
}

// Send writes the command code followed by its payload. No other sender's bytes
// can land between the two.
func (w *Writer) Send(cmd Command) error {
	w.conn.Lock()
	defer w.conn.Unlock()

	if err := writeFull(w.conn, []byte{byte(cmd.Code)}); err != nil {
		return fmt.Errorf("send %s: %w: %w", cmd.Code, ErrChannelBroken, err)
	}
	if len(cmd.Payload) == 0 {
		return nil
	}
	if err := writeFull(w.conn, cmd.Payload); err != nil {
		return fmt.Errorf("send %s payload: %w: %w", cmd.Code, ErrChannelBroken, err)
	}
	return nil
}

func writeFull(w io.Writer, data []byte) error {
	n, err := w.Write(data)
	if err != nil {
		return err
	}
	if n != len(data) {
		return io.ErrShortWrite
	}
	return nil
}
