//go:build !windows

package input

import "fmt"

// Stub implementations for platforms without suppressed capture support.

type stubCapture struct{}

// NewCapture returns a stub capture.
func NewCapture() Capture {
	return stubCapture{}
}

func (stubCapture) Start(CaptureHandlers) error {
	return fmt.Errorf("suppressed capture not supported on this platform")
}

func (stubCapture) Stop() error {
	return nil
}

type stubPointer struct{}

// NewPointer returns a stub pointer.
func NewPointer() Pointer {
	return stubPointer{}
}

func (stubPointer) Position() (Point, error) {
	return Point{}, fmt.Errorf("pointer control not supported on this platform")
}

func (stubPointer) Move(Point) error {
	return fmt.Errorf("pointer control not supported on this platform")
}
