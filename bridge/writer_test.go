package bridge

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterSend(t *testing.T) {
	conn := &recordingConn{}
	w := NewWriter(conn)

	require.NoError(t, w.Send(Booted()))
	require.NoError(t, w.Send(HotKey(0x01020304)))
	require.NoError(t, w.Send(BindingFailed("nope")))

	want := []byte{
		1,
		5, 0x04, 0x03, 0x02, 0x01,
		6, 4, 0, 0, 0, 'n', 'o', 'p', 'e',
	}
	assert.Equal(t, want, conn.Bytes())
	assert.Equal(t, 5, conn.writes, "payload-less commands take a single write")
}

func TestWriterConcurrentSendsDoNotInterleave(t *testing.T) {
	const (
		producers = 8
		perProd   = 200
	)

	conn := &recordingConn{}
	w := NewWriter(conn)

	var wg sync.WaitGroup
	errs := make(chan error, producers)
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			// A second Writer on the same connection must serialize as well
			sender := w
			if p%2 == 1 {
				sender = NewWriter(conn)
			}
			for i := 0; i < perProd; i++ {
				var cmd Command
				switch i % 3 {
				case 0:
					cmd = HotKey(uint32(p*perProd + i))
				case 1:
					cmd = BindingFailed(fmt.Sprintf("producer %d message %d", p, i))
				default:
					cmd = Suspending()
				}
				if err := sender.Send(cmd); err != nil {
					errs <- err
					return
				}
			}
		}(p)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	cmds, err := decodeCommands(conn.Bytes())
	require.NoError(t, err)
	require.Len(t, cmds, producers*perProd)

	// Every producer's hotkeys arrive complete and in the order it sent them
	last := make(map[int]int)
	for _, cmd := range cmds {
		switch cmd.Code {
		case HotKeyFired:
			require.Len(t, cmd.Payload, 4)
			v := int(binary.LittleEndian.Uint32(cmd.Payload))
			p, i := v/perProd, v%perProd
			if prev, ok := last[p]; ok {
				assert.Greater(t, i, prev)
			}
			last[p] = i
		case HotKeyBindingFailed:
			n := binary.LittleEndian.Uint32(cmd.Payload)
			assert.Contains(t, string(cmd.Payload[4:4+n]), "producer")
		case EnteringSuspend:
			assert.Empty(t, cmd.Payload)
		default:
			t.Fatalf("unexpected command %s", cmd)
		}
	}
	assert.Len(t, last, producers)
}

func TestWriterFailureReleasesLock(t *testing.T) {
	t.Run("code write fails", func(t *testing.T) {
		conn := &recordingConn{failAt: 1}
		err := NewWriter(conn).Send(HotKey(1))
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrChannelBroken))
		assert.True(t, conn.TryLock(), "lock must be released after a failed send")
	})

	t.Run("payload write fails", func(t *testing.T) {
		conn := &recordingConn{failAt: 2}
		err := NewWriter(conn).Send(HotKey(1))
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrChannelBroken)
		assert.True(t, conn.TryLock())
	})

	t.Run("short write", func(t *testing.T) {
		conn := &recordingConn{shortAt: 2}
		err := NewWriter(conn).Send(HotKey(1))
		assert.ErrorIs(t, err, ErrChannelBroken)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		assert.True(t, conn.TryLock())
	})
}

func TestCommandEncoding(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want []byte
	}{
		{"boot", Booted(), []byte{1}},
		{"resumed is boot", Resumed(), []byte{1}},
		{"suspending", Suspending(), []byte{3}},
		{"pong", PongReply(), []byte{4}},
		{"hotkey", HotKey(7), []byte{5, 7, 0, 0, 0}},
		{"binding failed", BindingFailed("x"), []byte{6, 1, 0, 0, 0, 'x'}},
		{"clipboard text", ClipboardTextReply("hé"), []byte{7, 3, 0, 0, 0, 'h', 0xC3, 0xA9}},
		{"clipboard image", ClipboardImageReply([]byte{0x89, 'P'}), []byte{8, 2, 0, 0, 0, 0x89, 'P'}},
		{"clipboard empty", ClipboardEmptyReply(), []byte{9}},
		{"clipboard failed", ClipboardFailedReply(""), []byte{10, 0, 0, 0, 0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			conn := &recordingConn{}
			require.NoError(t, NewWriter(conn).Send(tt.cmd))
			assert.Equal(t, tt.want, conn.Bytes())
		})
	}
}

func TestCodeString(t *testing.T) {
	assert.Equal(t, "HotKeyFired", HotKeyFired.String())
	assert.Equal(t, "ReportBoot", ResumedFromSuspend.String())
	assert.Equal(t, "Code(2)", Code(2).String())
	assert.Equal(t, "HotKeyFired(4 bytes)", HotKey(1).String())
}
