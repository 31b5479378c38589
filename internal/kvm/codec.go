// Package kvm implements the control session: the server-side LOCAL/REMOTE
// state machine with its serialized toggle worker and mouse re-centering, and
// the client-side event receiver that replays the server's input locally.
package kvm

import (
	"github.com/GautamMIH/SimpleKVM/internal/input"
	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

// encodeKey classifies a captured key into its wire representation.
// Virtual-key codes win over characters because raw key identity is ambiguous
// across keyboard layouts; characters win over symbolic names.
func encodeKey(k input.Key) (protocol.KeyType, protocol.KeyValue, bool) {
	switch {
	case k.VK > 0:
		return protocol.KeyVK, protocol.VKValue(k.VK), true
	case k.Char != 0:
		return protocol.KeyChar, protocol.TextValue(string(k.Char)), true
	case k.Name != "":
		return protocol.KeySpecial, protocol.TextValue(k.Name), true
	}
	return "", protocol.KeyValue{}, false
}

// decodeKey reconstructs an injectable key from its wire representation.
// A false return means the key cannot be reconstructed; the caller reports
// it and skips the event.
func decodeKey(kt protocol.KeyType, v protocol.KeyValue) (input.Key, bool) {
	switch kt {
	case protocol.KeyVK:
		if v.IsNum && v.Num > 0 {
			return input.Key{VK: v.Num}, true
		}
	case protocol.KeySpecial:
		return input.SpecialKey(v.Text)
	case protocol.KeyChar:
		if r := []rune(v.Text); len(r) > 0 {
			return input.Key{Char: r[0]}, true
		}
	}
	return input.Key{}, false
}
