package kvm

import (
	"fmt"
	"log"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GautamMIH/SimpleKVM/internal/hotkey"
	"github.com/GautamMIH/SimpleKVM/internal/input"
	"github.com/GautamMIH/SimpleKVM/internal/network"
	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

// StatusFunc receives every user-visible status change.
type StatusFunc func(msg string, isError bool)

// teardownTimeout bounds best-effort sends during shutdown so stopping can
// never hang on an unresponsive peer.
const teardownTimeout = 500 * time.Millisecond

// ServerConfig configures a control-session server.
type ServerConfig struct {
	// Hotkey toggles LOCAL/REMOTE control, e.g. "Ctrl+Alt+Z".
	Hotkey string

	// SessionPort is the TCP port for the session stream. Zero picks an
	// ephemeral port (useful in tests).
	SessionPort int

	// DiscoveryPort is the UDP port for discovery broadcasts. Zero disables
	// broadcasting.
	DiscoveryPort int

	// BroadcastInterval overrides the discovery cadence when positive.
	BroadcastInterval time.Duration
}

// ServerDeps are the capabilities the server consumes.
type ServerDeps struct {
	Capture input.Capture
	Pointer input.Pointer
	Hotkeys *hotkey.Manager
	Status  StatusFunc
}

type toggleRequest struct {
	quit bool
}

// Server owns one control session. State transitions are serialized through a
// single worker draining the toggle queue; all writes to the held client
// connection pass through one mutex so frames never interleave.
type Server struct {
	cfg     ServerConfig
	capture input.Capture
	pointer input.Pointer
	hk      *hotkey.Manager
	status  StatusFunc

	ln          net.Listener
	broadcaster *network.Broadcaster
	toggles     chan toggleRequest
	running     atomic.Bool
	wg          sync.WaitGroup
	workerWg    sync.WaitGroup

	// mu guards conn, remote and anchor. They are mutated only by the toggle
	// worker and the accept loop; capture callbacks and the send path take
	// the lock to read them.
	mu     sync.Mutex
	conn   net.Conn
	remote bool
	anchor *input.Point
}

// NewServer validates the configuration and builds a server. The hotkey
// pattern is checked here, before any goroutine is spawned.
func NewServer(cfg ServerConfig, deps ServerDeps) (*Server, error) {
	if _, err := hotkey.Parse(cfg.Hotkey); err != nil {
		return nil, fmt.Errorf("invalid toggle hotkey: %w", err)
	}
	if deps.Capture == nil || deps.Pointer == nil || deps.Hotkeys == nil {
		return nil, fmt.Errorf("server requires capture, pointer and hotkey capabilities")
	}
	status := deps.Status
	if status == nil {
		status = func(msg string, isError bool) {}
	}
	return &Server{
		cfg:     cfg,
		capture: deps.Capture,
		pointer: deps.Pointer,
		hk:      deps.Hotkeys,
		status:  status,
		toggles: make(chan toggleRequest, 16),
	}, nil
}

// Start binds the session port, begins broadcasting, and spawns the accept
// loop and the toggle worker.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}
	s.status("Starting server...", false)

	ln, err := net.Listen("tcp4", fmt.Sprintf("0.0.0.0:%d", s.cfg.SessionPort))
	if err != nil {
		s.running.Store(false)
		return fmt.Errorf("session listener: %w", err)
	}
	s.ln = ln

	if s.cfg.DiscoveryPort > 0 {
		s.broadcaster = network.NewBroadcaster(s.cfg.DiscoveryPort, s.cfg.BroadcastInterval)
		if err := s.broadcaster.Start(); err != nil {
			// Discovery is advisory; the server still serves direct connects.
			s.status(fmt.Sprintf("Discovery broadcast unavailable: %v", err), true)
			s.broadcaster = nil
		}
	}

	if err := s.hk.Register(s.cfg.Hotkey, s.Toggle); err != nil {
		ln.Close()
		s.running.Store(false)
		return err
	}

	s.wg.Add(1)
	go s.acceptLoop()
	s.workerWg.Add(1)
	go s.toggleWorker()

	s.status(fmt.Sprintf("Server running. Press '%s' to toggle control.", s.cfg.Hotkey), false)
	s.status("Waiting for a client to connect...", false)
	return nil
}

// Addr returns the bound session listener address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// State reports "REMOTE" while the server is controlling the peer.
func (s *Server) State() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remote {
		return "REMOTE"
	}
	return "LOCAL"
}

// Connected reports whether a client connection is currently held.
func (s *Server) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.conn != nil
}

// Toggle requests a LOCAL/REMOTE flip. Safe to call from any goroutine,
// including hotkey callbacks: the request is only queued here, never acted
// on, because starting or stopping the suppressed listeners from a listener
// callback can deadlock.
func (s *Server) Toggle() {
	if !s.running.Load() {
		return
	}
	s.toggles <- toggleRequest{}
}

// acceptLoop serves inbound connections serially. A new connection replaces
// any previous one; only one peer is live at a time.
func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.running.Load() {
				s.status(fmt.Sprintf("TCP server error: %v", err), true)
			}
			return
		}
		if !s.running.Load() {
			conn.Close()
			return
		}

		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
		}
		s.conn = conn
		s.mu.Unlock()
		s.status(fmt.Sprintf("Client connected from %s", conn.RemoteAddr()), false)
	}
}

// toggleWorker drains the toggle queue one request at a time, so transitions
// are strictly serialized: never concurrent, never skipped, never duplicated.
// The worker is also the only place session state is mutated, so the quit
// sentinel hands it the Remote teardown too; doing that anywhere else could
// interleave with a transition still in flight.
func (s *Server) toggleWorker() {
	defer s.workerWg.Done()
	for req := range s.toggles {
		if req.quit {
			s.teardownRemote()
			return
		}
		if !s.running.Load() {
			continue
		}
		s.transition()
	}
}

// teardownRemote leaves REMOTE on shutdown: modifier sweep so nothing stays
// stuck on the peer, then a blocking capture stop.
func (s *Server) teardownRemote() {
	s.mu.Lock()
	wasRemote := s.remote
	s.remote = false
	s.anchor = nil
	s.mu.Unlock()

	if !wasRemote {
		return
	}
	s.releaseAllModifiers()
	if err := s.capture.Stop(); err != nil {
		s.status(fmt.Sprintf("Error stopping capture: %v", err), true)
	}
}

func (s *Server) transition() {
	s.mu.Lock()
	toRemote := !s.remote
	connected := s.conn != nil
	s.mu.Unlock()

	if toRemote {
		if !connected {
			s.status("Cannot switch to REMOTE: No client connected.", true)
			return
		}
		pos, err := s.pointer.Position()
		if err != nil {
			s.status(fmt.Sprintf("Cannot switch to REMOTE: %v", err), true)
			return
		}

		s.mu.Lock()
		anchor := pos
		s.anchor = &anchor
		s.remote = true
		s.mu.Unlock()
		s.status("--- Switched control to REMOTE ---", false)

		s.send(protocol.ControlAcquire())
		if err := s.capture.Start(s.captureHandlers()); err != nil {
			// Without suppression, input would leak to both machines.
			s.status(fmt.Sprintf("Failed to start suppressed capture: %v", err), true)
			s.mu.Lock()
			s.remote = false
			s.anchor = nil
			s.mu.Unlock()
			s.send(protocol.ControlRelease())
			return
		}
		s.status("Local input is now suppressed.", false)
		return
	}

	s.mu.Lock()
	s.remote = false
	s.anchor = nil
	s.mu.Unlock()
	s.status("--- Switched control to LOCAL ---", false)

	s.releaseAllModifiers()
	s.send(protocol.ControlRelease())
	if err := s.capture.Stop(); err != nil {
		s.status(fmt.Sprintf("Error stopping capture: %v", err), true)
	}
	s.status("Local input is now active.", false)
}

// captureHandlers wires the suppressed listeners. Each callback only builds a
// message and hands it to the locked send path or the hotkey engine; no
// business logic runs on capture goroutines.
func (s *Server) captureHandlers() input.CaptureHandlers {
	return input.CaptureHandlers{
		OnMove:   s.onMove,
		OnClick:  s.onClick,
		OnScroll: s.onScroll,
		OnKey:    s.onKey,
	}
}

// onMove implements re-centering: deltas are computed against the anchor
// recorded on entry to REMOTE, and the local pointer is snapped back so it
// never visibly drifts or hits a screen edge.
func (s *Server) onMove(x, y int) {
	s.mu.Lock()
	if !s.remote || s.anchor == nil {
		s.mu.Unlock()
		return
	}
	anchor := *s.anchor
	s.mu.Unlock()

	dx := x - anchor.X
	dy := y - anchor.Y
	if dx == 0 && dy == 0 {
		return
	}
	s.send(protocol.MouseMove(dx, dy))
	if err := s.pointer.Move(anchor); err != nil {
		log.Printf("Server: failed to re-center pointer: %v", err)
	}
}

func (s *Server) onClick(button string, pressed bool) {
	if !s.isRemote() {
		return
	}
	s.send(protocol.MouseClick(button, pressed))
}

func (s *Server) onScroll(dx, dy int) {
	if !s.isRemote() {
		return
	}
	s.send(protocol.MouseScroll(dx, dy))
}

// onKey feeds the hotkey engine first, so the toggle combination still works
// while the key is being suppressed, then forwards the key to the peer.
func (s *Server) onKey(k input.Key, pressed bool) {
	if name := input.KeyName(k); name != "" {
		s.hk.UpdateState(name, pressed)
	}
	if !s.isRemote() {
		return
	}
	kt, value, ok := encodeKey(k)
	if !ok {
		s.status(fmt.Sprintf("Unmapped key skipped: %+v", k), true)
		return
	}
	s.send(protocol.KeyEvent(pressed, kt, value))
}

func (s *Server) isRemote() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remote
}

// releaseAllModifiers sends a key_release for every key in the fixed modifier
// set so nothing is left stuck down on the peer, regardless of what was
// actually pressed when control returned to LOCAL.
func (s *Server) releaseAllModifiers() {
	s.status("Releasing all modifier keys...", false)
	for _, name := range protocol.ModifierNames {
		s.send(protocol.KeyEvent(false, protocol.KeySpecial, protocol.TextValue(name)))
	}
}

// send writes one frame to the held connection under the write lock. A write
// failure is peer loss: the connection is closed and cleared, and if control
// was REMOTE a fallback toggle is queued so the session returns to LOCAL
// instead of driving an absent peer.
func (s *Server) send(m protocol.Message) {
	s.sendTimeout(m, 0)
}

func (s *Server) sendTimeout(m protocol.Message, timeout time.Duration) {
	s.mu.Lock()
	conn := s.conn
	if conn == nil {
		s.mu.Unlock()
		return
	}
	if timeout > 0 {
		conn.SetWriteDeadline(time.Now().Add(timeout))
	}
	err := protocol.WriteFrame(conn, m)
	if timeout > 0 {
		conn.SetWriteDeadline(time.Time{})
	}
	if err == nil {
		s.mu.Unlock()
		return
	}

	s.conn = nil
	wasRemote := s.remote
	s.mu.Unlock()
	conn.Close()
	s.status("Lost connection to client.", true)
	if wasRemote && s.running.Load() {
		// Non-blocking: this can run on the worker goroutine itself, and a
		// full queue already holds a transition that will observe the loss.
		select {
		case s.toggles <- toggleRequest{}:
		default:
		}
	}
}

// Stop shuts the session down in order: worker sentinel, join on the worker
// (which performs the Remote teardown at the sentinel, after any transition
// still in flight), best-effort disconnect notice, then sockets, broadcaster,
// and finally a join on the accept loop.
func (s *Server) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}

	s.toggles <- toggleRequest{quit: true}
	s.workerWg.Wait()

	s.sendTimeout(protocol.ForceDisconnect(), teardownTimeout)

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
		s.conn = nil
	}
	s.mu.Unlock()

	if s.ln != nil {
		s.ln.Close()
	}
	if s.broadcaster != nil {
		s.broadcaster.Stop()
	}

	s.wg.Wait()
	s.status("Server stopped.", false)
}
