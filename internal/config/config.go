// Package config provides configuration management for the KVM session.
package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

// Roles this machine can run as.
const (
	RoleServer = "server"
	RoleClient = "client"
)

// Config represents the application configuration
type Config struct {
	// Role determines if this machine is a "server" or "client"
	Role string `json:"role"`

	// ServerAddr is the address of the server machine, "host" or "host:port".
	// Clients use it when set; otherwise they rely on discovery.
	ServerAddr string `json:"server_addr,omitempty"`

	// ToggleHotkey is the keyboard shortcut that flips LOCAL/REMOTE control
	ToggleHotkey string `json:"toggle_hotkey"`

	// SessionPort is the TCP port for the input session stream
	SessionPort int `json:"session_port"`

	// DiscoveryPort is the UDP port for server discovery broadcasts
	DiscoveryPort int `json:"discovery_port"`

	// StartOnBoot determines if the app starts on system boot
	StartOnBoot bool `json:"start_on_boot"`

	// StartMinimized starts the app minimized to tray
	StartMinimized bool `json:"start_minimized"`

	// APIEnabled enables the HTTP status API server
	APIEnabled bool `json:"api_enabled"`

	// APIPort is the port for the status API server
	APIPort int `json:"api_port"`

	// APIToken is an optional authentication token for API requests
	APIToken string `json:"api_token,omitempty"`
}

// DefaultConfig returns a new Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Role:           RoleServer,
		ToggleHotkey:   "Ctrl+Alt+Z",
		SessionPort:    protocol.DefaultSessionPort,
		DiscoveryPort:  protocol.DefaultDiscoveryPort,
		StartMinimized: true,
		APIEnabled:     true,
		APIPort:        18080,
	}
}

// Manager handles loading and saving configuration
type Manager struct {
	mu         sync.Mutex
	configPath string
	config     *Config
	onChanged  func()
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	configPath, err := getConfigPath()
	if err != nil {
		return nil, err
	}

	return &Manager{
		configPath: configPath,
		config:     DefaultConfig(),
	}, nil
}

// getConfigPath returns the path to the configuration file
func getConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, "Library", "Application Support", "simplekvm")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			appData = filepath.Join(home, "AppData", "Roaming")
		}
		configDir = filepath.Join(appData, "simplekvm")
	default:
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		configDir = filepath.Join(home, ".config", "simplekvm")
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return filepath.Join(configDir, "config.json"), nil
}

// Load reads the configuration from disk
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if os.IsNotExist(err) {
		// No config file, use defaults
		return nil
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, m.config); err != nil {
		return err
	}
	if m.onChanged != nil {
		m.onChanged()
	}
	return nil
}

// Save writes the configuration to disk
func (m *Manager) Save() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := json.MarshalIndent(m.config, "", "  ")
	if err != nil {
		return err
	}

	log.Printf("Config: Saving configuration to %s (%d bytes)", m.configPath, len(data))
	return os.WriteFile(m.configPath, data, 0644)
}

// Get returns the current configuration
func (m *Manager) Get() *Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Set updates the configuration
func (m *Manager) Set(config *Config) {
	m.mu.Lock()
	m.config = config
	m.mu.Unlock()
	if m.onChanged != nil {
		m.onChanged()
	}
}

// RegisterChangeCallback registers a function to be called when config changes
func (m *Manager) RegisterChangeCallback(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChanged = fn
}
