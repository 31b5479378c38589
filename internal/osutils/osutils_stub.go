//go:build !windows

// Package osutils provides OS-level helpers: privilege checks and firewall
// provisioning for the session port.
package osutils

// IsAdmin reports false on platforms without the elevation model.
func IsAdmin() bool {
	return false
}

// EnsureFirewallRule is a no-op on platforms where the user manages the
// firewall directly.
func EnsureFirewallRule(port int) error {
	return nil
}
