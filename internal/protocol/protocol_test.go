package protocol

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestKeyValueEncoding(t *testing.T) {
	data, err := json.Marshal(VKValue(65))
	if err != nil {
		t.Fatalf("marshal vk value: %v", err)
	}
	if string(data) != "65" {
		t.Errorf("vk value encoded as %s, want 65", data)
	}

	data, err = json.Marshal(TextValue("ctrl_l"))
	if err != nil {
		t.Fatalf("marshal text value: %v", err)
	}
	if string(data) != `"ctrl_l"` {
		t.Errorf("text value encoded as %s, want \"ctrl_l\"", data)
	}
}

func TestKeyValueDecoding(t *testing.T) {
	var v KeyValue
	if err := json.Unmarshal([]byte("65"), &v); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if !v.IsNum || v.Num != 65 {
		t.Errorf("got %+v, want numeric 65", v)
	}

	if err := json.Unmarshal([]byte(`"shift_r"`), &v); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if v.IsNum || v.Text != "shift_r" {
		t.Errorf("got %+v, want text shift_r", v)
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	messages := []Message{
		ControlAcquire(),
		ControlRelease(),
		ForceDisconnect(),
		MouseMove(3, -7),
		MouseClick("left", true),
		MouseClick("x2", false),
		MouseScroll(0, -1),
		KeyEvent(true, KeyVK, VKValue(0x41)),
		KeyEvent(false, KeyChar, TextValue("a")),
		KeyEvent(true, KeySpecial, TextValue("f5")),
	}

	for _, m := range messages {
		body, err := Encode(m)
		if err != nil {
			t.Fatalf("encode %s: %v", m.Type, err)
		}
		got, err := Decode(body)
		if err != nil {
			t.Fatalf("decode %s: %v", m.Type, err)
		}
		if got.Type != m.Type || got.DX != m.DX || got.DY != m.DY ||
			got.Button != m.Button || got.Action != m.Action || got.KeyType != m.KeyType {
			t.Errorf("round trip changed %s: got %+v, want %+v", m.Type, got, m)
		}
		if m.Key != nil {
			if got.Key == nil || *got.Key != *m.Key {
				t.Errorf("round trip changed key of %s: got %v, want %v", m.Type, got.Key, m.Key)
			}
		}
	}
}

func TestDecodeRejectsUnknownType(t *testing.T) {
	_, err := Decode([]byte(`{"type":"teleport"}`))
	if err == nil {
		t.Fatal("expected an error for an unknown type")
	}
	if !strings.Contains(err.Error(), "unknown message type") {
		t.Errorf("got error %v, want unknown message type", err)
	}
}

func TestDecodeRejectsMalformedJSON(t *testing.T) {
	if _, err := Decode([]byte(`{"type":`)); err == nil {
		t.Fatal("expected an error for truncated JSON")
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		m       Message
		wantErr bool
	}{
		{"click without button", Message{Type: TypeMouseClick, Action: ActionDown}, true},
		{"click with bad action", Message{Type: TypeMouseClick, Button: "left", Action: "held"}, true},
		{"key without value", Message{Type: TypeKeyPress, KeyType: KeyVK}, true},
		{"vk with text value", KeyEvent(true, KeyVK, TextValue("a")), true},
		{"char with numeric value", KeyEvent(true, KeyChar, VKValue(65)), true},
		{"key with unknown keyType", KeyEvent(true, "scan", TextValue("a")), true},
		{"valid click", MouseClick("middle", true), false},
		{"valid move", MouseMove(0, 0), false},
	}

	for _, tc := range cases {
		err := tc.m.Validate()
		if tc.wantErr && err == nil {
			t.Errorf("%s: expected an error", tc.name)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("%s: unexpected error %v", tc.name, err)
		}
	}
}

func TestModifierNamesComplete(t *testing.T) {
	if len(ModifierNames) != 12 {
		t.Fatalf("modifier set has %d names, want 12", len(ModifierNames))
	}
	seen := make(map[string]bool)
	for _, name := range ModifierNames {
		if seen[name] {
			t.Errorf("duplicate modifier name %q", name)
		}
		seen[name] = true
	}
	for _, base := range []string{"alt", "ctrl", "shift", "cmd"} {
		for _, suffix := range []string{"", "_l", "_r"} {
			if !seen[base+suffix] {
				t.Errorf("missing modifier name %q", base+suffix)
			}
		}
	}
}
