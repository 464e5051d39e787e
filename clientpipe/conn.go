// Package clientpipe is the guest end of the host connection.
package clientpipe

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"github.com/gorilla/websocket"
)

// DefaultAddress is where QEMU's user network forwards the guest to the host driver
const DefaultAddress = "tcp://10.0.2.1:31337"

// Conn is a connection to the host. Lock/Unlock guard writes so that whole
// commands go out back to back; reads belong to a single goroutine.
type Conn struct {
	mu   sync.Mutex
	rwc  io.ReadWriteCloser
	r    *bufio.Reader
	addr string

	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established byte stream
func NewConn(rwc io.ReadWriteCloser, addr string) *Conn {
	return &Conn{
		rwc:  rwc,
		r:    bufio.NewReader(rwc),
		addr: addr,
	}
}

// Dial connects to address. Plain "host:port" and "tcp://host:port" use TCP;
// "ws://" and "wss://" tunnel the same byte stream over a websocket.
func Dial(ctx context.Context, address string) (*Conn, error) {
	scheme, rest, found := strings.Cut(address, "://")
	if !found {
		scheme, rest = "tcp", address
	}

	switch scheme {
	case "tcp":
		var d net.Dialer
		nc, err := d.DialContext(ctx, "tcp", rest)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", address, err)
		}
		return NewConn(nc, address), nil

	case "ws", "wss":
		ws, _, err := websocket.DefaultDialer.DialContext(ctx, address, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to dial %s: %w", address, err)
		}
		return NewConn(newWSStream(ws), address), nil

	default:
		return nil, fmt.Errorf("unsupported address scheme %q", scheme)
	}
}

func (c *Conn) Lock()   { c.mu.Lock() }
func (c *Conn) Unlock() { c.mu.Unlock() }

// Write sends raw bytes. Callers must hold the lock.
func (c *Conn) Write(p []byte) (int, error) {
	return c.rwc.Write(p)
}

// ReadRequest blocks until the next complete request arrives
func (c *Conn) ReadRequest() (Request, error) {
	return ReadRequest(c.r)
}

// Addr is the address the connection was made to
func (c *Conn) Addr() string {
	return c.addr
}

// Close shuts the connection down. It may be called from any goroutine, any number of times.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.rwc.Close()
	})
	return c.closeErr
}

// wsStream presents a websocket as a byte stream. Each Write is one binary
// message; Read concatenates incoming binary messages.
type wsStream struct {
	ws *websocket.Conn
	r  io.Reader
}

func newWSStream(ws *websocket.Conn) *wsStream {
	return &wsStream{ws: ws}
}

func (s *wsStream) Read(p []byte) (int, error) {
	for {
		if s.r == nil {
			typ, r, err := s.ws.NextReader()
			if err != nil {
				return 0, err
			}
			if typ != websocket.BinaryMessage {
				continue
			}
			s.r = r
		}

		n, err := s.r.Read(p)
		if err == io.EOF {
			s.r = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (s *wsStream) Write(p []byte) (int, error) {
	if err := s.ws.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (s *wsStream) Close() error {
	return s.ws.Close()
}
