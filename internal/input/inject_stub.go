//go:build !windows

package input

import "fmt"

// Stub injector for platforms without injection support.

type stubInjector struct{}

// NewInjector returns a stub injector.
func NewInjector() Injector {
	return stubInjector{}
}

func (stubInjector) MoveRelative(dx, dy int) error {
	return fmt.Errorf("input injection not supported on this platform")
}

func (stubInjector) Button(button string, pressed bool) error {
	return fmt.Errorf("input injection not supported on this platform")
}

func (stubInjector) Scroll(dx, dy int) error {
	return fmt.Errorf("input injection not supported on this platform")
}

func (stubInjector) Key(k Key, pressed bool) error {
	return fmt.Errorf("input injection not supported on this platform")
}
