// Package hotkey provides global hotkey pattern parsing and matching.
package hotkey

import (
	"fmt"
	"log"
	"strings"
	"sync"
)

// Manager tracks pressed keys and fires registered hotkey callbacks. It is
// fed by the platform hook while input is live, and by the suppressed
// capture while input is being forwarded, so the toggle hotkey keeps working
// in both states.
type Manager struct {
	mu           sync.RWMutex
	hotkeys      []*registeredHotkey
	currentState map[string]bool
}

type registeredHotkey struct {
	parts    []string
	original string
	callback func()
}

// NewManager creates a new hotkey manager.
func NewManager() *Manager {
	return &Manager{
		currentState: make(map[string]bool),
	}
}

// Parse splits a pattern like "Ctrl+Alt+Z" into its normalized parts.
// An empty pattern is a configuration error.
func Parse(pattern string) ([]string, error) {
	if strings.TrimSpace(pattern) == "" {
		return nil, fmt.Errorf("hotkey pattern is empty")
	}
	parts := strings.Split(strings.ToUpper(pattern), "+")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, fmt.Errorf("hotkey pattern %q has an empty part", pattern)
		}
		parts[i] = p
	}
	return parts, nil
}

// Register registers a hotkey pattern and a callback.
func (m *Manager) Register(pattern string, callback func()) error {
	parts, err := Parse(pattern)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = append(m.hotkeys, &registeredHotkey{
		parts:    parts,
		original: pattern,
		callback: callback,
	})
	return nil
}

// Clear removes all registered hotkeys.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hotkeys = nil
}

// UpdateState records a key transition and checks for matches on press.
func (m *Manager) UpdateState(key string, isDown bool) {
	m.mu.Lock()
	key = strings.ToUpper(key)
	if isDown {
		m.currentState[key] = true
	} else {
		delete(m.currentState, key)
	}
	m.mu.Unlock()

	if isDown {
		m.checkMatches()
	}
}

func (m *Manager) checkMatches() {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, hk := range m.hotkeys {
		match := true
		for _, part := range hk.parts {
			if !m.currentState[part] {
				match = false
				break
			}
		}

		if match {
			log.Printf("Hotkey triggered: %s", hk.original)
			go hk.callback()
		}
	}
}

// Start initiates the platform-specific global hooks. While a suppressed
// capture is active these hooks see nothing; the capture feeds UpdateState
// instead.
func (m *Manager) Start() error {
	return m.startPlatform()
}
