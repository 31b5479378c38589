package kvm

import (
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/GautamMIH/SimpleKVM/internal/hotkey"
	"github.com/GautamMIH/SimpleKVM/internal/input"
	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

type fakeCapture struct {
	mu       sync.Mutex
	running  bool
	handlers input.CaptureHandlers
	startErr error
}

func (f *fakeCapture) Start(h input.CaptureHandlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.running = true
	f.handlers = h
	return nil
}

func (f *fakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	return nil
}

func (f *fakeCapture) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *fakeCapture) Handlers() input.CaptureHandlers {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handlers
}

type fakePointer struct {
	mu    sync.Mutex
	pos   input.Point
	moves []input.Point
}

func (f *fakePointer) Position() (input.Point, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos, nil
}

func (f *fakePointer) Move(p input.Point) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = p
	f.moves = append(f.moves, p)
	return nil
}

func (f *fakePointer) LastMove() (input.Point, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.moves) == 0 {
		return input.Point{}, false
	}
	return f.moves[len(f.moves)-1], true
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func newTestServer(t *testing.T) (*Server, *fakeCapture, *fakePointer) {
	t.Helper()
	fc := &fakeCapture{}
	fp := &fakePointer{pos: input.Point{X: 100, Y: 100}}
	srv, err := NewServer(ServerConfig{
		Hotkey: "Ctrl+Alt+Z",
	}, ServerDeps{
		Capture: fc,
		Pointer: fp,
		Hotkeys: hotkey.NewManager(),
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	return srv, fc, fp
}

func dialServer(t *testing.T, srv *Server) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", srv.Addr().String())
	if err != nil {
		t.Fatalf("dial server: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	waitFor(t, "server to register the connection", srv.Connected)
	return conn
}

func readMessage(t *testing.T, conn net.Conn) protocol.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	m, err := protocol.ReadFrame(conn)
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return m
}

func TestNewServerRejectsEmptyHotkey(t *testing.T) {
	_, err := NewServer(ServerConfig{Hotkey: "  "}, ServerDeps{
		Capture: &fakeCapture{},
		Pointer: &fakePointer{},
		Hotkeys: hotkey.NewManager(),
	})
	if err == nil {
		t.Fatal("expected an error for a blank hotkey pattern")
	}
}

func TestToggleWithoutClientStaysLocal(t *testing.T) {
	srv, fc, _ := newTestServer(t)

	srv.Toggle()
	time.Sleep(100 * time.Millisecond)

	if got := srv.State(); got != "LOCAL" {
		t.Errorf("state is %s after toggling with no client, want LOCAL", got)
	}
	if fc.Running() {
		t.Error("capture started without a client")
	}
}

func TestToggleToRemoteSendsControlAcquire(t *testing.T) {
	srv, fc, _ := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })

	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Errorf("first message was %s, want control_acquire", m.Type)
	}
	waitFor(t, "capture to start", fc.Running)
}

func TestRapidTogglesPreserveParity(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialServer(t, srv)

	// Five queued toggles must land on REMOTE, never lose or double a
	// transition. The frame stream proves each transition happened.
	for i := 0; i < 5; i++ {
		srv.Toggle()
	}

	acquires, releases, keyReleases := 0, 0, 0
	for acquires < 3 || releases < 2 {
		m := readMessage(t, conn)
		switch m.Type {
		case protocol.TypeControlAcquire:
			acquires++
		case protocol.TypeControlRelease:
			releases++
		case protocol.TypeKeyRelease:
			keyReleases++
		default:
			t.Fatalf("unexpected message %s in toggle stream", m.Type)
		}
	}

	if acquires != 3 || releases != 2 {
		t.Errorf("got %d acquires and %d releases, want 3 and 2", acquires, releases)
	}
	if want := 2 * len(protocol.ModifierNames); keyReleases != want {
		t.Errorf("got %d modifier releases, want %d", keyReleases, want)
	}
	waitFor(t, "final REMOTE state", func() bool { return srv.State() == "REMOTE" })
}

func TestMoveRecentersPointer(t *testing.T) {
	srv, fc, fp := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })
	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}

	// Anchor was captured at (100,100); the pointer drifts to (103,97).
	fc.Handlers().OnMove(103, 97)

	m := readMessage(t, conn)
	if m.Type != protocol.TypeMouseMove {
		t.Fatalf("got %s, want mouse_move", m.Type)
	}
	if m.DX != 3 || m.DY != -3 {
		t.Errorf("got delta (%d,%d), want (3,-3)", m.DX, m.DY)
	}

	last, ok := fp.LastMove()
	if !ok {
		t.Fatal("pointer was never snapped back")
	}
	if last != (input.Point{X: 100, Y: 100}) {
		t.Errorf("pointer snapped to %+v, want the (100,100) anchor", last)
	}
}

func TestMoveWithoutDeltaSendsNothing(t *testing.T) {
	srv, fc, fp := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })
	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}

	// The snap-back itself surfaces as a move to the anchor position. It must
	// not echo another frame or another snap-back.
	fc.Handlers().OnMove(100, 100)
	time.Sleep(50 * time.Millisecond)

	if _, ok := fp.LastMove(); ok {
		t.Error("zero-delta move still repositioned the pointer")
	}
	fc.Handlers().OnMove(101, 100)
	if m := readMessage(t, conn); m.Type != protocol.TypeMouseMove || m.DX != 1 {
		t.Errorf("got %s dx=%d, want mouse_move dx=1", m.Type, m.DX)
	}
}

func TestReturnToLocalReleasesEveryModifier(t *testing.T) {
	srv, fc, _ := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })
	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}

	srv.Toggle()
	waitFor(t, "LOCAL state", func() bool { return srv.State() == "LOCAL" })

	released := make(map[string]int)
	for range protocol.ModifierNames {
		m := readMessage(t, conn)
		if m.Type != protocol.TypeKeyRelease {
			t.Fatalf("got %s before the modifier releases finished", m.Type)
		}
		if m.KeyType != protocol.KeySpecial || m.Key == nil {
			t.Fatalf("modifier release carried %s %v", m.KeyType, m.Key)
		}
		released[m.Key.Text]++
	}
	for _, name := range protocol.ModifierNames {
		if released[name] != 1 {
			t.Errorf("modifier %q released %d times, want exactly once", name, released[name])
		}
	}

	if m := readMessage(t, conn); m.Type != protocol.TypeControlRelease {
		t.Errorf("got %s after the releases, want control_release", m.Type)
	}
	waitFor(t, "capture to stop", func() bool { return !fc.Running() })
}

func TestPeerLossWhileRemoteFallsBackToLocal(t *testing.T) {
	srv, fc, _ := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })
	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}

	conn.Close()

	// Keep forwarding events until a write trips over the dead peer. The
	// failure must drop the session back to LOCAL on its own.
	go func() {
		for i := 0; i < 400 && srv.State() == "REMOTE"; i++ {
			fc.Handlers().OnMove(101+i%10, 100)
			time.Sleep(5 * time.Millisecond)
		}
	}()

	waitFor(t, "fallback to LOCAL", func() bool { return srv.State() == "LOCAL" })
	waitFor(t, "capture to stop", func() bool { return !fc.Running() })
	if srv.Connected() {
		t.Error("dead connection was not cleared")
	}
}

func TestCaptureFailureAbortsRemote(t *testing.T) {
	srv, fc, _ := newTestServer(t)
	conn := dialServer(t, srv)

	fc.mu.Lock()
	fc.startErr = errors.New("hook install failed")
	fc.mu.Unlock()

	srv.Toggle()

	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}
	if m := readMessage(t, conn); m.Type != protocol.TypeControlRelease {
		t.Fatalf("got %s after the failed capture, want control_release", m.Type)
	}
	waitFor(t, "LOCAL state", func() bool { return srv.State() == "LOCAL" })
}

func TestStopSendsForceDisconnect(t *testing.T) {
	srv, _, _ := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Stop()

	if m := readMessage(t, conn); m.Type != protocol.TypeForceDisconnect {
		t.Errorf("got %s on stop, want force_disconnect", m.Type)
	}
}

func TestStopWhileRemoteTearsDownCapture(t *testing.T) {
	srv, fc, _ := newTestServer(t)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })
	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}

	// Stop joins the toggle worker before returning, so by the time it comes
	// back the suppressing capture must be gone and the peer must have seen
	// the full modifier sweep ahead of the disconnect notice.
	srv.Stop()

	if fc.Running() {
		t.Error("capture still running after Stop")
	}
	for range protocol.ModifierNames {
		if m := readMessage(t, conn); m.Type != protocol.TypeKeyRelease {
			t.Fatalf("got %s during the shutdown sweep, want key_release", m.Type)
		}
	}
	if m := readMessage(t, conn); m.Type != protocol.TypeForceDisconnect {
		t.Errorf("got %s after the sweep, want force_disconnect", m.Type)
	}
}

func TestStopDrainsPendingTogglesBeforeTeardown(t *testing.T) {
	srv, fc, _ := newTestServer(t)
	dialServer(t, srv)

	// A toggle still queued when Stop runs must be fully processed (or
	// skipped) by the worker before shutdown completes; either way Stop may
	// not return while the capture is live.
	srv.Toggle()
	srv.Stop()

	if fc.Running() {
		t.Error("capture still running after Stop with a pending toggle")
	}
	if got := srv.State(); got != "LOCAL" {
		t.Errorf("state is %s after Stop, want LOCAL", got)
	}
}

func TestKeyEventsFeedHotkeyEngine(t *testing.T) {
	fc := &fakeCapture{}
	fp := &fakePointer{pos: input.Point{X: 100, Y: 100}}
	hk := hotkey.NewManager()
	srv, err := NewServer(ServerConfig{Hotkey: "Ctrl+Alt+Z"}, ServerDeps{
		Capture: fc,
		Pointer: fp,
		Hotkeys: hk,
	})
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("start server: %v", err)
	}
	t.Cleanup(srv.Stop)
	conn := dialServer(t, srv)

	srv.Toggle()
	waitFor(t, "REMOTE state", func() bool { return srv.State() == "REMOTE" })
	if m := readMessage(t, conn); m.Type != protocol.TypeControlAcquire {
		t.Fatalf("first message was %s, want control_acquire", m.Type)
	}

	// Pressing the hotkey through the suppressed capture must both forward
	// the keys and trigger the registered toggle, returning control to LOCAL.
	fc.Handlers().OnKey(input.Key{VK: 0x11}, true) // ctrl
	fc.Handlers().OnKey(input.Key{VK: 0x12}, true) // alt
	fc.Handlers().OnKey(input.Key{VK: 0x5A}, true) // z

	waitFor(t, "hotkey-driven return to LOCAL", func() bool { return srv.State() == "LOCAL" })

	m := readMessage(t, conn)
	if m.Type != protocol.TypeKeyPress || m.KeyType != protocol.KeyVK || !m.Key.IsNum || m.Key.Num != 0x11 {
		t.Errorf("first forwarded key was %+v, want vk 0x11 press", m)
	}
}
