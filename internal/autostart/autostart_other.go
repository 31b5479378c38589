//go:build !windows

package autostart

import "fmt"

func enableWindows() error {
	return fmt.Errorf("windows auto-start unavailable on this build")
}

func disableWindows() error {
	return fmt.Errorf("windows auto-start unavailable on this build")
}

func isEnabledWindows() bool {
	return false
}
