//go:build windows

package input

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"syscall"
	"unsafe"

	"golang.org/x/sys/windows"
)

// Windows implementation of the suppressed capture using low-level hooks.
// Returning a non-zero value from a hook procedure without chaining swallows
// the event system-wide, which is exactly the suppression the session needs.

var (
	user32                   = windows.NewLazySystemDLL("user32.dll")
	procSetWindowsHookEx     = user32.NewProc("SetWindowsHookExW")
	procCallNextHookEx       = user32.NewProc("CallNextHookEx")
	procUnhookWindowsHookEx  = user32.NewProc("UnhookWindowsHookEx")
	procGetMessage           = user32.NewProc("GetMessageW")
	procTranslateMessage     = user32.NewProc("TranslateMessage")
	procDispatchMessage      = user32.NewProc("DispatchMessageW")
	procPostThreadMessage    = user32.NewProc("PostThreadMessageW")
	procGetCursorPos         = user32.NewProc("GetCursorPos")
	procSetCursorPos         = user32.NewProc("SetCursorPos")
	kernel32                 = windows.NewLazySystemDLL("kernel32.dll")
	procGetModuleHandle      = kernel32.NewProc("GetModuleHandleW")
	procGetCurrentThreadId   = kernel32.NewProc("GetCurrentThreadId")
)

const (
	whKeyboardLL = 13
	whMouseLL    = 14

	wmQuit        = 0x0012
	wmKeyDown     = 0x0100
	wmKeyUp       = 0x0101
	wmSysKeyDown  = 0x0104
	wmSysKeyUp    = 0x0105
	wmMouseMove   = 0x0200
	wmLButtonDown = 0x0201
	wmLButtonUp   = 0x0202
	wmRButtonDown = 0x0204
	wmRButtonUp   = 0x0205
	wmMButtonDown = 0x0207
	wmMButtonUp   = 0x0208
	wmMouseWheel  = 0x020A
	wmXButtonDown = 0x020B
	wmXButtonUp   = 0x020C
	wmMouseHWheel = 0x020E

	wheelDelta = 120
)

type kbdllHookStruct struct {
	VkCode      uint32
	ScanCode    uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msllHookStruct struct {
	Point       struct{ X, Y int32 }
	MouseData   uint32
	Flags       uint32
	Time        uint32
	DwExtraInfo uintptr
}

type msg struct {
	Hwnd    syscall.Handle
	Message uint32
	Wparam  uintptr
	Lparam  uintptr
	Time    uint32
	Pt      struct{ X, Y int32 }
}

// hookCapture owns the hook thread. Hook procedures are per-thread callbacks,
// so a single package-level instance is active at a time, matching the one
// control session per process.
type hookCapture struct {
	mu       sync.Mutex
	running  bool
	handlers CaptureHandlers
	threadID uint32
	stopped  chan struct{}
}

var activeCapture *hookCapture

// NewCapture returns the suppressing Windows capture.
func NewCapture() Capture {
	return &hookCapture{}
}

// Start installs the suppressing mouse and keyboard hooks. A second Start
// while already running is a no-op.
func (c *hookCapture) Start(h CaptureHandlers) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return nil
	}
	c.handlers = h
	c.running = true
	c.stopped = make(chan struct{})
	activeCapture = c

	ready := make(chan error, 1)
	go c.hookThread(ready)
	if err := <-ready; err != nil {
		c.running = false
		return err
	}
	return nil
}

// hookThread installs the hooks and pumps messages until WM_QUIT. Hooks must
// live on the thread that runs the message loop.
func (c *hookCapture) hookThread(ready chan<- error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(c.stopped)

	tid, _, _ := procGetCurrentThreadId.Call()
	c.threadID = uint32(tid)

	hMod, _, _ := procGetModuleHandle.Call(0)

	mouseHook, _, err := procSetWindowsHookEx.Call(
		whMouseLL, syscall.NewCallback(mouseHookProc), hMod, 0)
	if mouseHook == 0 {
		ready <- fmt.Errorf("install mouse hook: %v", err)
		return
	}
	keyHook, _, err := procSetWindowsHookEx.Call(
		whKeyboardLL, syscall.NewCallback(keyboardHookProc), hMod, 0)
	if keyHook == 0 {
		procUnhookWindowsHookEx.Call(mouseHook)
		ready <- fmt.Errorf("install keyboard hook: %v", err)
		return
	}
	ready <- nil
	log.Printf("Capture: suppressing hooks installed")

	var m msg
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if int32(ret) <= 0 {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}

	procUnhookWindowsHookEx.Call(mouseHook)
	procUnhookWindowsHookEx.Call(keyHook)
	log.Printf("Capture: suppressing hooks removed")
}

// Stop removes the hooks and blocks until the hook thread has exited, so a
// rapid re-toggle cannot race a listener that is still shutting down.
func (c *hookCapture) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	threadID := c.threadID
	stopped := c.stopped
	c.mu.Unlock()

	procPostThreadMessage.Call(uintptr(threadID), wmQuit, 0, 0)
	<-stopped

	c.mu.Lock()
	activeCapture = nil
	c.mu.Unlock()
	return nil
}

func mouseHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	c := activeCapture
	if nCode < 0 || c == nil {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	ms := (*msllHookStruct)(unsafe.Pointer(lParam))
	h := c.handlers

	switch wParam {
	case wmMouseMove:
		if h.OnMove != nil {
			h.OnMove(int(ms.Point.X), int(ms.Point.Y))
		}
	case wmLButtonDown:
		click(h, ButtonLeft, true)
	case wmLButtonUp:
		click(h, ButtonLeft, false)
	case wmRButtonDown:
		click(h, ButtonRight, true)
	case wmRButtonUp:
		click(h, ButtonRight, false)
	case wmMButtonDown:
		click(h, ButtonMiddle, true)
	case wmMButtonUp:
		click(h, ButtonMiddle, false)
	case wmXButtonDown, wmXButtonUp:
		btn := ButtonX1
		if (ms.MouseData >> 16) == 2 {
			btn = ButtonX2
		}
		click(h, btn, wParam == wmXButtonDown)
	case wmMouseWheel:
		if h.OnScroll != nil {
			h.OnScroll(0, int(int16(ms.MouseData>>16))/wheelDelta)
		}
	case wmMouseHWheel:
		if h.OnScroll != nil {
			h.OnScroll(int(int16(ms.MouseData>>16))/wheelDelta, 0)
		}
	}

	// Swallow the event: suppression is the whole point.
	return 1
}

func click(h CaptureHandlers, button string, pressed bool) {
	if h.OnClick != nil {
		h.OnClick(button, pressed)
	}
}

func keyboardHookProc(nCode int, wParam uintptr, lParam uintptr) uintptr {
	c := activeCapture
	if nCode < 0 || c == nil {
		ret, _, _ := procCallNextHookEx.Call(0, uintptr(nCode), wParam, lParam)
		return ret
	}

	kbd := (*kbdllHookStruct)(unsafe.Pointer(lParam))
	if h := c.handlers; h.OnKey != nil {
		pressed := wParam == wmKeyDown || wParam == wmSysKeyDown
		h.OnKey(Key{VK: int(kbd.VkCode)}, pressed)
	}
	return 1
}

type point struct{ X, Y int32 }

type cursorPointer struct{}

// NewPointer returns the Windows pointer control.
func NewPointer() Pointer {
	return cursorPointer{}
}

func (cursorPointer) Position() (Point, error) {
	var pt point
	ret, _, err := procGetCursorPos.Call(uintptr(unsafe.Pointer(&pt)))
	if ret == 0 {
		return Point{}, fmt.Errorf("GetCursorPos: %v", err)
	}
	return Point{X: int(pt.X), Y: int(pt.Y)}, nil
}

func (cursorPointer) Move(p Point) error {
	ret, _, err := procSetCursorPos.Call(uintptr(p.X), uintptr(p.Y))
	if ret == 0 {
		return fmt.Errorf("SetCursorPos: %v", err)
	}
	return nil
}
