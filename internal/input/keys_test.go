package input

import "testing"

func TestSpecialKeyModifiers(t *testing.T) {
	names := []string{
		"alt", "alt_l", "alt_r",
		"ctrl", "ctrl_l", "ctrl_r",
		"shift", "shift_l", "shift_r",
		"cmd", "cmd_l", "cmd_r",
	}
	for _, name := range names {
		k, ok := SpecialKey(name)
		if !ok {
			t.Errorf("modifier %q not in the special key table", name)
			continue
		}
		if k.VK == 0 {
			t.Errorf("modifier %q resolved without a VK code", name)
		}
	}
}

func TestSpecialKeyFunctionRow(t *testing.T) {
	k, ok := SpecialKey("f1")
	if !ok || k.VK != 0x70 {
		t.Errorf("f1 resolved to %+v, want VK 0x70", k)
	}
	k, ok = SpecialKey("f12")
	if !ok || k.VK != 0x7B {
		t.Errorf("f12 resolved to %+v, want VK 0x7B", k)
	}
}

func TestSpecialKeyUnknown(t *testing.T) {
	if _, ok := SpecialKey("hyper"); ok {
		t.Error("unknown name resolved to a key")
	}
}

func TestKeyName(t *testing.T) {
	cases := []struct {
		k    Key
		want string
	}{
		{Key{VK: 0x11}, "CTRL"},
		{Key{VK: 0xA4}, "ALT"},
		{Key{VK: 0xA1}, "SHIFT"},
		{Key{VK: 0x5B}, "CMD"},
		{Key{VK: 0x41}, "A"},
		{Key{VK: 0x39}, "9"},
		{Key{VK: 0x74}, "F5"},
		{Key{Char: 'q'}, "Q"},
		{Key{Char: 'Q'}, "Q"},
		{Key{}, ""},
	}
	for _, tc := range cases {
		if got := KeyName(tc.k); got != tc.want {
			t.Errorf("KeyName(%+v) = %q, want %q", tc.k, got, tc.want)
		}
	}
}
