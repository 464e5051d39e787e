package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"syscall"

	"markestedt/guestagent/platform"
)

// errnoHotkeyAlreadyRegistered is ERROR_HOTKEY_ALREADY_REGISTERED
const errnoHotkeyAlreadyRegistered = syscall.Errno(1409)

// BindErrorKind classifies why a hotkey operation failed
type BindErrorKind int

const (
	// BindUnknown is any OS failure without a more specific kind
	BindUnknown BindErrorKind = iota
	// BindAlreadyClaimed means another registrant owns the chord
	BindAlreadyClaimed
	// BindInvalidID means the id is negative or already bound to another chord
	BindInvalidID
)

func (k BindErrorKind) String() string {
	switch k {
	case BindAlreadyClaimed:
		return "already claimed"
	case BindInvalidID:
		return "invalid id"
	default:
		return "unknown"
	}
}

// BindError is returned by Hotkeys. Code is the native error code, 0 when there is none.
type BindError struct {
	Kind    BindErrorKind
	Binding HotkeyBinding
	Code    uint32
	Err     error
}

func (e *BindError) Error() string {
	msg := fmt.Sprintf("bind hotkey %d (%s): %s", e.Binding.ID, e.Binding, e.Kind)
	if e.Code != 0 {
		msg += fmt.Sprintf(" (code %d)", e.Code)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *BindError) Unwrap() error { return e.Err }

// HotkeyBinding is a chord registered under a caller-chosen id
type HotkeyBinding struct {
	ID   int
	Mods platform.Modifiers
	Key  int
}

func (b HotkeyBinding) String() string {
	return fmt.Sprintf("%s+0x%02X", b.Mods, b.Key)
}

// Hotkeys tracks which ids this process has bound. The OS is only asked when the
// registry does not already hold the identical binding.
type Hotkeys struct {
	mu       sync.Mutex
	os       platform.HotkeyRegistrar
	bindings map[int]HotkeyBinding
}

// NewHotkeys creates an empty registry over the given OS registrar
func NewHotkeys(registrar platform.HotkeyRegistrar) *Hotkeys {
	return &Hotkeys{
		os:       registrar,
		bindings: make(map[int]HotkeyBinding),
	}
}

// Register binds mods+key to id. Repeating an identical registration succeeds
// without touching the OS.
func (h *Hotkeys) Register(id int, mods platform.Modifiers, key int) error {
	binding := HotkeyBinding{ID: id, Mods: mods, Key: key}
	if id < 0 {
		return &BindError{Kind: BindInvalidID, Binding: binding, Err: errors.New("negative id")}
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.bindings[id]; ok {
		if existing == binding {
			return nil
		}
		return &BindError{
			Kind:    BindInvalidID,
			Binding: binding,
			Err:     fmt.Errorf("id already bound to %s", existing),
		}
	}

	if err := h.os.RegisterHotKey(id, mods, key); err != nil {
		return classifyBindError(binding, err)
	}

	h.bindings[id] = binding
	slog.Info("Hotkey registered", "id", id, "binding", binding.String())
	return nil
}

// Unregister releases id. Unknown ids succeed without touching the OS.
func (h *Hotkeys) Unregister(id int) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	binding, ok := h.bindings[id]
	if !ok {
		return nil
	}

	if err := h.os.UnregisterHotKey(id); err != nil {
		return classifyBindError(binding, err)
	}

	delete(h.bindings, id)
	slog.Info("Hotkey unregistered", "id", id)
	return nil
}

// Bindings returns the active bindings ordered by id
func (h *Hotkeys) Bindings() []HotkeyBinding {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]HotkeyBinding, 0, len(h.bindings))
	for _, b := range h.bindings {
		out = append(out, b)
	}
	slices.SortFunc(out, func(a, b HotkeyBinding) int { return a.ID - b.ID })
	return out
}

func classifyBindError(binding HotkeyBinding, err error) *BindError {
	var errno syscall.Errno
	if !errors.As(err, &errno) {
		return &BindError{Kind: BindUnknown, Binding: binding, Err: err}
	}

	kind := BindUnknown
	if errno == errnoHotkeyAlreadyRegistered {
		kind = BindAlreadyClaimed
	}
	return &BindError{Kind: kind, Binding: binding, Code: uint32(errno), Err: err}
}
