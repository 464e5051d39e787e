package main

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"log/slog"
	"sync/atomic"
	"time"

	"markestedt/guestagent/bridge"
	"markestedt/guestagent/clientpipe"
	"markestedt/guestagent/config"
	"markestedt/guestagent/platform"
)

// Agent connects to the host, forwards native events to it and serves its requests
type Agent struct {
	cfg       *config.Config
	window    platform.Window
	keyboard  platform.KeyReleaser
	hotkeys   *bridge.Hotkeys
	clipboard *bridge.Clipboard
	dial      func(ctx context.Context, address string) (*clientpipe.Conn, error)

	current atomic.Pointer[session]

	// OnStatus, if set, receives a short description of the connection state
	OnStatus func(status string)
}

// session is one live host connection
type session struct {
	conn   *clientpipe.Conn
	writer *bridge.Writer
}

// NewAgent creates a new agent instance
func NewAgent(cfg *config.Config) *Agent {
	window := platform.NewWindow()
	backend := platform.NewClipboard(
		cfg.Clipboard.OpenRetries,
		time.Duration(cfg.Clipboard.RetryDelayMs)*time.Millisecond,
	)
	clipboard := bridge.NewClipboard(
		backend,
		cfg.Clipboard.LockedRetries,
		time.Duration(cfg.Clipboard.LockedDelayMs)*time.Millisecond,
	)

	return &Agent{
		cfg:       cfg,
		window:    window,
		keyboard:  platform.NewKeyReleaser(),
		hotkeys:   bridge.NewHotkeys(window),
		clipboard: clipboard,
		dial:      clientpipe.Dial,
	}
}

// Run starts the native event source and keeps a host connection up until ctx is cancelled
func (a *Agent) Run(ctx context.Context) error {
	// Send tears down the failing session itself
	interceptor := bridge.NewInterceptor(a, nil)

	ready := make(chan struct{})
	windowDone := make(chan struct{})
	go func() {
		defer close(windowDone)
		if err := a.window.Run(ctx, interceptor.Intercept, func() { close(ready) }); err != nil {
			slog.Error("Native event source unavailable, hotkeys and power events are disabled", "error", err)
		}
	}()
	defer func() { <-windowDone }()

	// Hotkey registrations may follow ReportBoot immediately; dial only once the window exists
	select {
	case <-ready:
	case <-windowDone:
	case <-ctx.Done():
		return nil
	}

	slog.Info("Guest agent started", "host", a.cfg.Host.Address)

	for {
		err := a.runSession(ctx)
		if ctx.Err() != nil {
			return nil
		}
		slog.Warn("Host connection lost", "error", err, "retry_in", a.cfg.ReconnectInterval())
		a.setStatus("Disconnected")

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(a.cfg.ReconnectInterval()):
		}
	}
}

func (a *Agent) runSession(ctx context.Context) error {
	conn, err := a.dial(ctx, a.cfg.Host.Address)
	if err != nil {
		return err
	}
	defer conn.Close()

	s := &session{conn: conn, writer: bridge.NewWriter(conn)}
	a.current.Store(s)
	defer a.current.CompareAndSwap(s, nil)

	if err := s.writer.Send(bridge.Booted()); err != nil {
		return err
	}
	slog.Info("Connected to host", "addr", conn.Addr())
	a.setStatus("Connected")

	return clientpipe.Serve(ctx, conn, clientpipe.HandlerFunc(func(ctx context.Context, req clientpipe.Request) error {
		return a.handleRequest(s, req)
	}))
}

// Send forwards a command to the current connection. Without one the command
// is dropped: the host re-learns state from ReportBoot when it reconnects.
func (a *Agent) Send(cmd bridge.Command) error {
	s := a.current.Load()
	if s == nil {
		slog.Debug("No host connection, dropping command", "command", cmd.Code)
		return nil
	}
	if err := s.writer.Send(cmd); err != nil {
		a.dropSession(s, err)
		return err
	}
	return nil
}

// dropSession closes s after a failed send so the connect loop starts over with
// a clean stream. A newer session that replaced s is left alone.
func (a *Agent) dropSession(s *session, err error) {
	a.current.CompareAndSwap(s, nil)
	slog.Warn("Closing host connection after failed send", "addr", s.conn.Addr(), "error", err)
	s.conn.Close()
}

func (a *Agent) handleRequest(s *session, req clientpipe.Request) error {
	switch req.Kind {
	case clientpipe.Ping:
		return s.writer.Send(bridge.PongReply())

	case clientpipe.RegisterHotKey:
		if err := a.registerHotkey(req.ID, req.Combo); err != nil {
			slog.Warn("Hotkey binding failed", "id", req.ID, "combo", req.Combo, "error", err)
			return s.writer.Send(bridge.BindingFailed(err.Error()))
		}
		return nil

	case clientpipe.UnregisterHotKey:
		if err := a.hotkeys.Unregister(int(req.ID)); err != nil {
			slog.Warn("Hotkey unbinding failed", "id", req.ID, "error", err)
		}
		return nil

	case clientpipe.ReleaseModifiers:
		if err := a.keyboard.ReleaseModifiers(); err != nil {
			slog.Warn("Failed to release modifier keys", "error", err)
		}
		return nil

	case clientpipe.GetClipboard:
		return s.writer.Send(a.readClipboard(req.Format))

	case clientpipe.SetClipboardText:
		if err := a.clipboard.WriteText(bridge.NewText(string(req.Data))); err != nil {
			slog.Warn("Failed to set clipboard text", "error", err)
			return s.writer.Send(bridge.ClipboardFailedReply(err.Error()))
		}
		return nil

	case clientpipe.SetClipboardImage:
		if err := a.writeClipboardImage(req.Data); err != nil {
			slog.Warn("Failed to set clipboard image", "error", err)
			return s.writer.Send(bridge.ClipboardFailedReply(err.Error()))
		}
		return nil
	}

	return fmt.Errorf("unhandled request %s", req.Kind)
}

func (a *Agent) registerHotkey(id uint32, combo string) error {
	kc, err := config.ParseHotkey(combo)
	if err != nil {
		return err
	}
	vk, err := platform.VKCode(kc.Key)
	if err != nil {
		return err
	}
	return a.hotkeys.Register(int(id), kc.Modifiers(), vk)
}

func (a *Agent) readClipboard(format clientpipe.ClipboardFormat) bridge.Command {
	switch format {
	case clientpipe.FormatText:
		text, ok, err := a.clipboard.ReadText()
		if err != nil {
			return bridge.ClipboardFailedReply(err.Error())
		}
		if !ok {
			return bridge.ClipboardEmptyReply()
		}
		return bridge.ClipboardTextReply(text.String())

	case clientpipe.FormatImage:
		img, ok, err := a.clipboard.ReadImage()
		if err != nil {
			return bridge.ClipboardFailedReply(err.Error())
		}
		if !ok {
			return bridge.ClipboardEmptyReply()
		}
		var buf bytes.Buffer
		if err := png.Encode(&buf, img); err != nil {
			return bridge.ClipboardFailedReply(fmt.Sprintf("failed to encode image: %v", err))
		}
		return bridge.ClipboardImageReply(buf.Bytes())
	}

	return bridge.ClipboardFailedReply(fmt.Sprintf("unknown clipboard format %d", format))
}

func (a *Agent) writeClipboardImage(data []byte) error {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode image: %w", err)
	}
	return a.clipboard.WriteImage(img)
}

func (a *Agent) setStatus(status string) {
	if a.OnStatus != nil {
		a.OnStatus(status)
	}
}
