//go:build windows

package capture

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/zjrosen/keysound/internal/keys"
)

const (
	whKeyboardLL = 13
	hcAction     = 0
	wmQuit       = 0x0012
	wmKeyDown    = 0x0100
	wmKeyUp      = 0x0101
	wmSysKeyDown = 0x0104
	wmSysKeyUp   = 0x0105
)

var (
	user32                  = windows.NewLazySystemDLL("user32.dll")
	kernel32                = windows.NewLazySystemDLL("kernel32.dll")
	procSetWindowsHookEx    = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx      = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage          = user32.NewProc("GetMessageW")
	procPostThreadMessage   = user32.NewProc("PostThreadMessageW")
	procGetModuleHandle     = kernel32.NewProc("GetModuleHandleW")
)

// kbdllHookStruct mirrors KBDLLHOOKSTRUCT.
type kbdllHookStruct struct {
	VkCode    uint32
	ScanCode  uint32
	Flags     uint32
	Time      uint32
	ExtraInfo uintptr
}

// winMsg mirrors MSG.
type winMsg struct {
	Hwnd    uintptr
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
	Private uint32
}

// Only one low-level hook can be active per process; the callback finds it here.
var (
	activeHook   atomic.Pointer[LowLevelHook]
	callbackOnce sync.Once
	callbackPtr  uintptr
)

// LowLevelHook is a WH_KEYBOARD_LL hook serviced by a message loop on a
// dedicated, locked OS thread.
type LowLevelHook struct {
	mu       sync.Mutex
	threadID uint32
	done     chan struct{}
	sink     Sink

	// down tracks held keys to flag auto-repeat; touched only on the hook thread.
	down [256]bool
}

// NewSystemHook returns the platform keyboard hook.
func NewSystemHook() (Hook, error) {
	return &LowLevelHook{}, nil
}

// Decode implements Decoder for virtual-key codes.
func (h *LowLevelHook) Decode(r Raw) (keys.Key, error) {
	return VirtualKeyDecoder(r)
}

// Install implements Hook.
func (h *LowLevelHook) Install(sink Sink) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done != nil {
		return nil
	}
	if !activeHook.CompareAndSwap(nil, h) {
		return errors.New("another keyboard hook is already installed")
	}
	callbackOnce.Do(func() { callbackPtr = windows.NewCallback(hookProc) })

	h.sink = sink
	h.down = [256]bool{}
	started := make(chan error, 1)
	done := make(chan struct{})
	go h.loop(started, done)
	if err := <-started; err != nil {
		activeHook.CompareAndSwap(h, nil)
		return err
	}
	h.done = done
	return nil
}

func (h *LowLevelHook) loop(started chan<- error, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	h.threadID = windows.GetCurrentThreadId()
	module, _, _ := procGetModuleHandle.Call(0)
	hhook, _, err := procSetWindowsHookEx.Call(whKeyboardLL, callbackPtr, module, 0)
	if hhook == 0 {
		started <- fmt.Errorf("SetWindowsHookEx: %w", err)
		return
	}
	started <- nil

	var m winMsg
	for {
		r, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(r) <= 0 {
			break
		}
	}
	_, _, _ = procUnhookWindowsHookEx.Call(hhook)
}

// Uninstall implements Hook. It returns after the hook is removed.
func (h *LowLevelHook) Uninstall() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done == nil {
		return nil
	}
	r, _, err := procPostThreadMessage.Call(uintptr(h.threadID), wmQuit, 0, 0)
	if r == 0 {
		return fmt.Errorf("PostThreadMessage: %w", err)
	}
	<-h.done
	h.done = nil
	activeHook.CompareAndSwap(h, nil)
	return nil
}

func (h *LowLevelHook) event(msg uintptr, vk uint32) {
	idx := vk & 0xff
	switch msg {
	case wmKeyDown, wmSysKeyDown:
		repeat := h.down[idx]
		h.down[idx] = true
		h.sink(Raw{Code: vk, System: msg == wmSysKeyDown, Repeat: repeat})
	case wmKeyUp, wmSysKeyUp:
		h.down[idx] = false
	}
}

func hookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	if nCode == hcAction {
		if h := activeHook.Load(); h != nil && h.sink != nil {
			kb := (*kbdllHookStruct)(unsafe.Pointer(lParam)) //nolint:govet // lParam points at a KBDLLHOOKSTRUCT owned by the OS
			h.event(wParam, kb.VkCode)
		}
	}
	r, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
	return r
}
