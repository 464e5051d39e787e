package systray

import (
	"log/slog"
	"sync"

	"github.com/getlantern/systray"
)

// SystrayManager shows the agent's connection state in the system tray
type SystrayManager struct {
	iconData []byte

	mu     sync.Mutex
	status *systray.MenuItem
	last   string
}

// NewSystrayManager creates a new systray manager
func NewSystrayManager(iconData []byte) *SystrayManager {
	return &SystrayManager{
		iconData: iconData,
		last:     "Starting",
	}
}

// Run starts the system tray (blocking call)
func (m *SystrayManager) Run() {
	systray.Run(m.onReady, m.onExit)
}

// Stop stops the system tray
func (m *SystrayManager) Stop() {
	systray.Quit()
}

// SetStatus updates the status line. Calls before the tray is ready are kept
// and shown once it is.
func (m *SystrayManager) SetStatus(status string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.last = status
	if m.status == nil {
		return
	}
	m.status.SetTitle(status)
	systray.SetTooltip("Guest Agent - " + status)
}

// onReady is called when the systray is ready
func (m *SystrayManager) onReady() {
	if len(m.iconData) > 0 {
		systray.SetIcon(m.iconData)
	}
	systray.SetTitle("Guest Agent")

	m.mu.Lock()
	m.status = systray.AddMenuItem(m.last, "Host connection state")
	m.status.Disable()
	systray.SetTooltip("Guest Agent - " + m.last)
	m.mu.Unlock()

	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit the guest agent")

	go func() {
		<-mQuit.ClickedCh
		slog.Info("User requested quit from system tray")
		systray.Quit()
	}()
}

// onExit is called when the systray is exiting
func (m *SystrayManager) onExit() {
	slog.Info("System tray exited")
}
