// Package input provides the input capabilities the control session depends
// on: suppressed capture, event injection, and pointer positioning. Platform
// files supply the real implementations; non-supported platforms get stubs.
package input

// Point is an absolute pointer coordinate.
type Point struct {
	X int
	Y int
}

// Mouse button identifiers used on the wire and by the injector.
const (
	ButtonLeft   = "left"
	ButtonRight  = "right"
	ButtonMiddle = "middle"
	ButtonX1     = "x1"
	ButtonX2     = "x2"
)

// Key identifies one keyboard key. Fields are tried in order: a virtual-key
// code when the platform provides one, a literal character, a symbolic name
// for named keys. A zero Key is unmapped.
type Key struct {
	VK   int
	Char rune
	Name string
}

// CaptureHandlers receives events from a suppressed capture. Callbacks run on
// capture-owned goroutines; their only job is to hand the event off, never to
// start or stop listeners.
type CaptureHandlers struct {
	OnMove   func(x, y int)
	OnClick  func(button string, pressed bool)
	OnScroll func(dx, dy int)
	OnKey    func(k Key, pressed bool)
}

// Capture intercepts mouse and keyboard events before the OS delivers them to
// other applications. Start is idempotent; Stop blocks until the underlying
// listeners have fully terminated.
type Capture interface {
	Start(h CaptureHandlers) error
	Stop() error
}

// Pointer reads and forces the local pointer position.
type Pointer interface {
	Position() (Point, error)
	Move(p Point) error
}

// Injector replays events into the local OS input stream.
type Injector interface {
	MoveRelative(dx, dy int) error
	Button(button string, pressed bool) error
	Scroll(dx, dy int) error
	Key(k Key, pressed bool) error
}
