package input

import "fmt"

// Virtual-key codes for the named keys this tool understands. The values are
// Windows VK codes, which also serve as the layout-independent codes carried
// on the wire.
const (
	vkBackspace   = 0x08
	vkTab         = 0x09
	vkEnter       = 0x0D
	vkShift       = 0x10
	vkCtrl        = 0x11
	vkAlt         = 0x12
	vkPause       = 0x13
	vkCapsLock    = 0x14
	vkEsc         = 0x1B
	vkSpace       = 0x20
	vkPageUp      = 0x21
	vkPageDown    = 0x22
	vkEnd         = 0x23
	vkHome        = 0x24
	vkLeft        = 0x25
	vkUp          = 0x26
	vkRight       = 0x27
	vkDown        = 0x28
	vkPrintScreen = 0x2C
	vkInsert      = 0x2D
	vkDelete      = 0x2E
	vkCmdL        = 0x5B
	vkCmdR        = 0x5C
	vkMenu        = 0x5D
	vkNumLock     = 0x90
	vkScrollLock  = 0x91
	vkShiftL      = 0xA0
	vkShiftR      = 0xA1
	vkCtrlL       = 0xA2
	vkCtrlR       = 0xA3
	vkAltL        = 0xA4
	vkAltR        = 0xA5
	vkF1          = 0x70
)

// specialKeys is the fixed symbolic-name table used to reconstruct a key
// from its wire name. Lookups that miss are reported as unmapped, not fatal.
var specialKeys = map[string]int{
	"alt":          vkAlt,
	"alt_l":        vkAltL,
	"alt_r":        vkAltR,
	"ctrl":         vkCtrl,
	"ctrl_l":       vkCtrlL,
	"ctrl_r":       vkCtrlR,
	"shift":        vkShift,
	"shift_l":      vkShiftL,
	"shift_r":      vkShiftR,
	"cmd":          vkCmdL,
	"cmd_l":        vkCmdL,
	"cmd_r":        vkCmdR,
	"enter":        vkEnter,
	"esc":          vkEsc,
	"backspace":    vkBackspace,
	"tab":          vkTab,
	"space":        vkSpace,
	"caps_lock":    vkCapsLock,
	"page_up":      vkPageUp,
	"page_down":    vkPageDown,
	"end":          vkEnd,
	"home":         vkHome,
	"left":         vkLeft,
	"up":           vkUp,
	"right":        vkRight,
	"down":         vkDown,
	"print_screen": vkPrintScreen,
	"insert":       vkInsert,
	"delete":       vkDelete,
	"pause":        vkPause,
	"num_lock":     vkNumLock,
	"scroll_lock":  vkScrollLock,
	"menu":         vkMenu,
}

func init() {
	for i := 0; i < 12; i++ {
		specialKeys[fmt.Sprintf("f%d", i+1)] = vkF1 + i
	}
}

// SpecialKey resolves a symbolic name from the wire into an injectable Key.
func SpecialKey(name string) (Key, bool) {
	vk, ok := specialKeys[name]
	if !ok {
		return Key{}, false
	}
	return Key{VK: vk, Name: name}, true
}

// KeyName returns the hotkey-engine name for a key: modifier and special
// names in upper case ("CTRL", "F5"), letters and digits as themselves.
// Unnameable keys return "".
func KeyName(k Key) string {
	switch k.VK {
	case vkCtrl, vkCtrlL, vkCtrlR:
		return "CTRL"
	case vkAlt, vkAltL, vkAltR:
		return "ALT"
	case vkShift, vkShiftL, vkShiftR:
		return "SHIFT"
	case vkCmdL, vkCmdR:
		return "CMD"
	case vkSpace:
		return "SPACE"
	case vkEnter:
		return "ENTER"
	case vkEsc:
		return "ESC"
	case vkTab:
		return "TAB"
	}
	if k.VK >= 0x41 && k.VK <= 0x5A { // A-Z
		return string(rune(k.VK))
	}
	if k.VK >= 0x30 && k.VK <= 0x39 { // 0-9
		return string(rune(k.VK))
	}
	if k.VK >= vkF1 && k.VK <= vkF1+11 {
		return fmt.Sprintf("F%d", k.VK-vkF1+1)
	}
	if k.Char != 0 {
		if k.Char >= 'a' && k.Char <= 'z' {
			return string(k.Char - 'a' + 'A')
		}
		return string(k.Char)
	}
	return ""
}
