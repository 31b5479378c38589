//go:build !windows

package hotkey

// No global hook on this platform; the manager still matches state fed to it
// by the suppressed capture.
func (m *Manager) startPlatform() error {
	return nil
}
