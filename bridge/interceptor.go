package bridge

import "log/slog"

// Native message identifiers the interceptor understands
const (
	wmPowerBroadcast = 0x0218
	wmHotkey         = 0x0312

	pbtAPMSuspend         = 0x04
	pbtAPMResumeAutomatic = 0x12
)

// Classify maps a window message to at most one command. Messages and power
// sub-codes outside the table produce nothing.
func Classify(msg uint32, wParam uintptr) (Command, bool) {
	switch msg {
	case wmHotkey:
		return HotKey(uint32(wParam)), true
	case wmPowerBroadcast:
		switch wParam {
		case pbtAPMSuspend:
			return Suspending(), true
		case pbtAPMResumeAutomatic:
			return Resumed(), true
		}
	}
	return Command{}, false
}

// Interceptor forwards classified window messages to the host
type Interceptor struct {
	sender  Sender
	onError func(error)
}

// NewInterceptor creates an interceptor sending through sender. onError, if set,
// receives every failed send so the connection owner can reconnect.
func NewInterceptor(sender Sender, onError func(error)) *Interceptor {
	return &Interceptor{sender: sender, onError: onError}
}

// Intercept handles one window message. It never consumes the message; the
// window procedure continues with default processing regardless.
func (i *Interceptor) Intercept(msg uint32, wParam, lParam uintptr) {
	cmd, ok := Classify(msg, wParam)
	if !ok {
		return
	}

	slog.Debug("Forwarding native event", "command", cmd.Code)
	if err := i.sender.Send(cmd); err != nil {
		slog.Warn("Failed to forward native event", "command", cmd.Code, "error", err)
		if i.onError != nil {
			i.onError(err)
		}
	}
}
