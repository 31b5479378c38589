//go:build windows

package input

import (
	"fmt"
	"unsafe"
)

// Windows injection via SendInput.

var procSendInput = user32.NewProc("SendInput")

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseEventMove       = 0x0001
	mouseEventLeftDown   = 0x0002
	mouseEventLeftUp     = 0x0004
	mouseEventRightDown  = 0x0008
	mouseEventRightUp    = 0x0010
	mouseEventMiddleDown = 0x0020
	mouseEventMiddleUp   = 0x0040
	mouseEventXDown      = 0x0080
	mouseEventXUp        = 0x0100
	mouseEventWheel      = 0x0800
	mouseEventHWheel     = 0x1000

	keyEventKeyUp   = 0x0002
	keyEventUnicode = 0x0004

	xButton1 = 1
	xButton2 = 2
)

// mouseInput mirrors INPUT{type, MOUSEINPUT} with amd64 padding.
type mouseInput struct {
	inputType uint32
	_         uint32
	dx        int32
	dy        int32
	mouseData uint32
	flags     uint32
	time      uint32
	_         uint32
	extraInfo uintptr
}

// kbdInput mirrors INPUT{type, KEYBDINPUT} with amd64 padding. The trailing
// pad brings it to the size of the full INPUT union.
type kbdInput struct {
	inputType uint32
	_         uint32
	vk        uint16
	scan      uint16
	flags     uint32
	time      uint32
	_         uint32
	extraInfo uintptr
	_         [8]byte
}

type sysInjector struct{}

// NewInjector returns the Windows event injector.
func NewInjector() Injector {
	return sysInjector{}
}

func sendMouse(in mouseInput) error {
	in.inputType = inputMouse
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret != 1 {
		return fmt.Errorf("SendInput mouse: %v", err)
	}
	return nil
}

func sendKey(in kbdInput) error {
	in.inputType = inputKeyboard
	ret, _, err := procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	if ret != 1 {
		return fmt.Errorf("SendInput keyboard: %v", err)
	}
	return nil
}

func (sysInjector) MoveRelative(dx, dy int) error {
	return sendMouse(mouseInput{dx: int32(dx), dy: int32(dy), flags: mouseEventMove})
}

func (sysInjector) Button(button string, pressed bool) error {
	var in mouseInput
	switch button {
	case ButtonLeft:
		if pressed {
			in.flags = mouseEventLeftDown
		} else {
			in.flags = mouseEventLeftUp
		}
	case ButtonRight:
		if pressed {
			in.flags = mouseEventRightDown
		} else {
			in.flags = mouseEventRightUp
		}
	case ButtonMiddle:
		if pressed {
			in.flags = mouseEventMiddleDown
		} else {
			in.flags = mouseEventMiddleUp
		}
	case ButtonX1, ButtonX2:
		if pressed {
			in.flags = mouseEventXDown
		} else {
			in.flags = mouseEventXUp
		}
		in.mouseData = xButton1
		if button == ButtonX2 {
			in.mouseData = xButton2
		}
	default:
		return fmt.Errorf("unknown mouse button %q", button)
	}
	return sendMouse(in)
}

func (sysInjector) Scroll(dx, dy int) error {
	if dy != 0 {
		if err := sendMouse(mouseInput{flags: mouseEventWheel, mouseData: uint32(int32(dy * wheelDelta))}); err != nil {
			return err
		}
	}
	if dx != 0 {
		return sendMouse(mouseInput{flags: mouseEventHWheel, mouseData: uint32(int32(dx * wheelDelta))})
	}
	return nil
}

func (sysInjector) Key(k Key, pressed bool) error {
	var flags uint32
	if !pressed {
		flags = keyEventKeyUp
	}
	switch {
	case k.VK > 0:
		return sendKey(kbdInput{vk: uint16(k.VK), flags: flags})
	case k.Char != 0:
		// Layout-independent character injection.
		return sendKey(kbdInput{scan: uint16(k.Char), flags: flags | keyEventUnicode})
	default:
		return fmt.Errorf("unmapped key %+v", k)
	}
}
