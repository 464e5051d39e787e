//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	registerClassEx  = user32.NewProc("RegisterClassExW")
	createWindowEx   = user32.NewProc("CreateWindowExW")
	destroyWindow    = user32.NewProc("DestroyWindow")
	defWindowProc    = user32.NewProc("DefWindowProcW")
	getMessage       = user32.NewProc("GetMessageW")
	translateMessage = user32.NewProc("TranslateMessage")
	dispatchMessage  = user32.NewProc("DispatchMessageW")
	postMessage      = user32.NewProc("PostMessageW")
	postQuitMessage  = user32.NewProc("PostQuitMessage")
	registerHotKey   = user32.NewProc("RegisterHotKey")
	unregisterHotKey = user32.NewProc("UnregisterHotKey")
	getModuleHandle  = kernel32.NewProc("GetModuleHandleW")
)

const (
	wmDestroy = 0x0002
	wmClose   = 0x0010
	wmApp     = 0x8000
	wmInvoke  = wmApp + 1
)

const windowClass = "GuestAgentWindow"

var errWindowClosed = errors.New("agent window is not running")

type wndClassEx struct {
	cbSize        uint32
	style         uint32
	lpfnWndProc   uintptr
	cbClsExtra    int32
	cbWndExtra    int32
	hInstance     uintptr
	hIcon         uintptr
	hCursor       uintptr
	hbrBackground uintptr
	lpszMenuName  *uint16
	lpszClassName *uint16
	hIconSm       uintptr
}

type msg struct {
	hwnd    uintptr
	message uint32
	wParam  uintptr
	lParam  uintptr
	time    uint32
	pt      struct{ x, y int32 }
}

// WindowsWindow is a hidden top-level window that receives WM_HOTKEY and
// WM_POWERBROADCAST. Message-only windows never see broadcasts, so this one
// is a regular window that is simply never shown.
//
// Hotkeys are bound to the window, and RegisterHotKey refuses a window owned by
// another thread, so registration calls are marshalled onto the loop thread.
type WindowsWindow struct {
	mu    sync.Mutex
	hwnd  uintptr
	calls chan func()
	done  chan struct{}
}

// NewWindow creates the agent window. Run may be called once.
func NewWindow() Window {
	return &WindowsWindow{
		calls: make(chan func(), 16),
		done:  make(chan struct{}),
	}
}

// Run creates the window and pumps its messages until ctx is cancelled
func (w *WindowsWindow) Run(ctx context.Context, hook MessageHook, ready func()) error {
	created := make(chan error, 1)
	go w.loop(hook, created)

	if err := <-created; err != nil {
		return err
	}
	if ready != nil {
		ready()
	}

	select {
	case <-ctx.Done():
		postMessage.Call(w.handle(), wmClose, 0, 0)
		<-w.done
		return nil
	case <-w.done:
		return errors.New("message loop exited unexpectedly")
	}
}

func (w *WindowsWindow) loop(hook MessageHook, created chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(w.done)

	className, err := windows.UTF16PtrFromString(windowClass)
	if err != nil {
		created <- err
		return
	}
	instance, _, _ := getModuleHandle.Call(0)

	wndProc := windows.NewCallback(func(hwnd, m, wParam, lParam uintptr) uintptr {
		return w.wndProc(hwnd, uint32(m), wParam, lParam, hook)
	})

	wc := wndClassEx{
		lpfnWndProc:   wndProc,
		hInstance:     instance,
		lpszClassName: className,
	}
	wc.cbSize = uint32(unsafe.Sizeof(wc))
	if r, _, err := registerClassEx.Call(uintptr(unsafe.Pointer(&wc))); r == 0 {
		created <- fmt.Errorf("RegisterClassEx failed: %w", err)
		return
	}

	hwnd, _, err := createWindowEx.Call(
		0,
		uintptr(unsafe.Pointer(className)),
		uintptr(unsafe.Pointer(className)),
		0,
		0, 0, 0, 0,
		0,
		0,
		instance,
		0,
	)
	if hwnd == 0 {
		created <- fmt.Errorf("CreateWindowEx failed: %w", err)
		return
	}

	w.mu.Lock()
	w.hwnd = hwnd
	w.mu.Unlock()
	clipboardOwner.Store(hwnd)
	created <- nil

	var m msg
	for {
		r, _, _ := getMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		// 0 is WM_QUIT, -1 is an error
		if int32(r) <= 0 {
			break
		}
		translateMessage.Call(uintptr(unsafe.Pointer(&m)))
		dispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}

	clipboardOwner.Store(0)
	w.mu.Lock()
	w.hwnd = 0
	w.mu.Unlock()
}

func (w *WindowsWindow) wndProc(hwnd uintptr, m uint32, wParam, lParam uintptr, hook MessageHook) uintptr {
	switch m {
	case wmInvoke:
		w.drain()
		return 0
	case wmClose:
		destroyWindow.Call(hwnd)
		return 0
	case wmDestroy:
		postQuitMessage.Call(0)
		return 0
	}

	if hook != nil {
		hook(m, wParam, lParam)
	}
	r, _, _ := defWindowProc.Call(hwnd, uintptr(m), wParam, lParam)
	return r
}

func (w *WindowsWindow) handle() uintptr {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.hwnd
}

func (w *WindowsWindow) drain() {
	for {
		select {
		case fn := <-w.calls:
			fn()
		default:
			return
		}
	}
}

// invoke runs fn on the message loop thread and waits for its result
func (w *WindowsWindow) invoke(fn func(hwnd uintptr) error) error {
	hwnd := w.handle()
	if hwnd == 0 {
		return errWindowClosed
	}

	result := make(chan error, 1)
	call := func() { result <- fn(hwnd) }
	select {
	case w.calls <- call:
	case <-w.done:
		return errWindowClosed
	}

	if r, _, err := postMessage.Call(hwnd, wmInvoke, 0, 0); r == 0 {
		return fmt.Errorf("PostMessage failed: %w", err)
	}

	select {
	case err := <-result:
		return err
	case <-w.done:
		return errWindowClosed
	}
}

// RegisterHotKey binds a global chord to id on the agent window.
// A rejected call returns the raw syscall.Errno.
func (w *WindowsWindow) RegisterHotKey(id int, mods Modifiers, vk int) error {
	return w.invoke(func(hwnd uintptr) error {
		r, _, err := registerHotKey.Call(hwnd, uintptr(id), uintptr(mods), uintptr(vk))
		if r == 0 {
			return err
		}
		return nil
	})
}

// UnregisterHotKey releases a chord bound with RegisterHotKey
func (w *WindowsWindow) UnregisterHotKey(id int) error {
	return w.invoke(func(hwnd uintptr) error {
		r, _, err := unregisterHotKey.Call(hwnd, uintptr(id))
		if r == 0 {
			return err
		}
		return nil
	})
}
