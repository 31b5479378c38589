// Package protocol defines the KVM session wire format: the tagged message
// record exchanged over the framed stream, plus the well-known ports and the
// discovery payload shared by server and client.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Well-known constants. The discovery payload is matched byte-for-byte by
// scanners, so it must never change between releases.
const (
	DefaultSessionPort   = 65432
	DefaultDiscoveryPort = 65433
	DiscoveryPayload     = "KVM_SERVER_DISCOVERY_PING_V3"
)

// MessageType is the discriminator for the session message record.
type MessageType string

const (
	// TypeControlAcquire tells the client the server is now driving its input.
	TypeControlAcquire MessageType = "control_acquire"

	// TypeControlRelease tells the client the server has let go.
	TypeControlRelease MessageType = "control_release"

	// TypeForceDisconnect is a best-effort ordered shutdown notice.
	TypeForceDisconnect MessageType = "force_disconnect"

	// TypeMouseMove carries a relative pointer delta.
	TypeMouseMove MessageType = "mouse_move"

	// TypeMouseClick carries a button press or release.
	TypeMouseClick MessageType = "mouse_click"

	// TypeMouseScroll carries scroll wheel deltas.
	TypeMouseScroll MessageType = "mouse_scroll"

	// TypeKeyPress and TypeKeyRelease carry one keyboard transition each.
	TypeKeyPress   MessageType = "key_press"
	TypeKeyRelease MessageType = "key_release"
)

// KeyType selects the wire representation of a key, in preference order:
// vk (layout-independent virtual-key code), char (literal character),
// special (symbolic name such as "ctrl_l" or "f5").
type KeyType string

const (
	KeyVK      KeyType = "vk"
	KeyChar    KeyType = "char"
	KeySpecial KeyType = "special"
)

// Click actions.
const (
	ActionDown = "down"
	ActionUp   = "up"
)

// ModifierNames is the fixed set of modifier keys released on every
// Remote -> Local transition, regardless of what was actually pressed.
var ModifierNames = []string{
	"alt", "alt_l", "alt_r",
	"ctrl", "ctrl_l", "ctrl_r",
	"shift", "shift_l", "shift_r",
	"cmd", "cmd_l", "cmd_r",
}

// ErrUnknownType marks a frame whose discriminator is not one of the
// enumerated message types. The frame is dropped; the stream survives.
var ErrUnknownType = errors.New("protocol: unknown message type")

// Message is the tagged record for all session traffic. Exactly one subset of
// fields is populated per type; Validate enforces the mapping.
type Message struct {
	Type    MessageType `json:"type"`
	DX      int         `json:"dx,omitempty"`
	DY      int         `json:"dy,omitempty"`
	Button  string      `json:"button,omitempty"`
	Action  string      `json:"action,omitempty"`
	KeyType KeyType     `json:"keyType,omitempty"`
	Key     *KeyValue   `json:"keyValue,omitempty"`
}

// KeyValue is the key payload: a number for vk, a string for char and special.
type KeyValue struct {
	Num   int
	Text  string
	IsNum bool
}

// String renders the value for log output.
func (v KeyValue) String() string {
	if v.IsNum {
		return fmt.Sprintf("%d", v.Num)
	}
	return v.Text
}

// MarshalJSON encodes the value in its wire shape.
func (v KeyValue) MarshalJSON() ([]byte, error) {
	if v.IsNum {
		return json.Marshal(v.Num)
	}
	return json.Marshal(v.Text)
}

// UnmarshalJSON accepts either a JSON number or a JSON string.
func (v *KeyValue) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && (data[0] == '-' || (data[0] >= '0' && data[0] <= '9')) {
		v.IsNum = true
		return json.Unmarshal(data, &v.Num)
	}
	v.IsNum = false
	return json.Unmarshal(data, &v.Text)
}

// ControlAcquire builds a control_acquire message.
func ControlAcquire() Message { return Message{Type: TypeControlAcquire} }

// ControlRelease builds a control_release message.
func ControlRelease() Message { return Message{Type: TypeControlRelease} }

// ForceDisconnect builds a force_disconnect message.
func ForceDisconnect() Message { return Message{Type: TypeForceDisconnect} }

// MouseMove builds a relative move message.
func MouseMove(dx, dy int) Message {
	return Message{Type: TypeMouseMove, DX: dx, DY: dy}
}

// MouseClick builds a button transition message.
func MouseClick(button string, pressed bool) Message {
	action := ActionUp
	if pressed {
		action = ActionDown
	}
	return Message{Type: TypeMouseClick, Button: button, Action: action}
}

// MouseScroll builds a scroll message.
func MouseScroll(dx, dy int) Message {
	return Message{Type: TypeMouseScroll, DX: dx, DY: dy}
}

// KeyEvent builds a key_press or key_release message.
func KeyEvent(pressed bool, kt KeyType, value KeyValue) Message {
	t := TypeKeyRelease
	if pressed {
		t = TypeKeyPress
	}
	return Message{Type: t, KeyType: kt, Key: &value}
}

// VKValue wraps a virtual-key code for KeyEvent.
func VKValue(vk int) KeyValue { return KeyValue{Num: vk, IsNum: true} }

// TextValue wraps a char or special-key name for KeyEvent.
func TextValue(s string) KeyValue { return KeyValue{Text: s} }

// Validate checks the message is a well-formed instance of its type.
func (m Message) Validate() error {
	switch m.Type {
	case TypeControlAcquire, TypeControlRelease, TypeForceDisconnect,
		TypeMouseMove, TypeMouseScroll:
		return nil
	case TypeMouseClick:
		if m.Button == "" {
			return errors.New("protocol: mouse_click without button")
		}
		if m.Action != ActionDown && m.Action != ActionUp {
			return fmt.Errorf("protocol: mouse_click with action %q", m.Action)
		}
		return nil
	case TypeKeyPress, TypeKeyRelease:
		if m.Key == nil {
			return fmt.Errorf("protocol: %s without keyValue", m.Type)
		}
		switch m.KeyType {
		case KeyVK:
			if !m.Key.IsNum {
				return errors.New("protocol: vk keyValue must be numeric")
			}
		case KeyChar, KeySpecial:
			if m.Key.IsNum || m.Key.Text == "" {
				return fmt.Errorf("protocol: %s keyValue must be a non-empty string", m.KeyType)
			}
		default:
			return fmt.Errorf("protocol: unknown keyType %q", m.KeyType)
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
}

// Encode serializes a validated message to its UTF-8 body.
func Encode(m Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return json.Marshal(m)
}

// Decode parses and validates a frame body.
func Decode(body []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(body, &m); err != nil {
		return Message{}, fmt.Errorf("protocol: undecodable body: %w", err)
	}
	if err := m.Validate(); err != nil {
		return Message{}, err
	}
	return m, nil
}
