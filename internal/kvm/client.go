package kvm

import (
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/GautamMIH/SimpleKVM/internal/input"
	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

const connectTimeout = 5 * time.Second

// ClientDeps are the capabilities the client consumes.
type ClientDeps struct {
	Injector input.Injector
	Status   StatusFunc

	// OnDisconnect fires once per session after the receive loop ends, for
	// whatever reason. Discovery-driven reconnection hangs off this.
	OnDisconnect func()
}

// Client holds one session to a server and replays every received event into
// the local input stream. Stream-level errors end the session; malformed or
// unreplayable messages are reported and skipped so one bad frame never kills
// an otherwise healthy stream.
type Client struct {
	injector     input.Injector
	status       StatusFunc
	onDisconnect func()

	mu      sync.Mutex
	conn    net.Conn
	running atomic.Bool
	wg      sync.WaitGroup
}

// NewClient builds a client around an injector.
func NewClient(deps ClientDeps) (*Client, error) {
	if deps.Injector == nil {
		return nil, fmt.Errorf("client requires an injector")
	}
	status := deps.Status
	if status == nil {
		status = func(msg string, isError bool) {}
	}
	return &Client{
		injector:     deps.Injector,
		status:       status,
		onDisconnect: deps.OnDisconnect,
	}, nil
}

// Connect dials the server and starts the receive loop. An address without a
// port gets the default session port.
func (c *Client) Connect(addr string) error {
	if !c.running.CompareAndSwap(false, true) {
		return fmt.Errorf("client already connected")
	}

	if !strings.Contains(addr, ":") {
		addr = fmt.Sprintf("%s:%d", addr, protocol.DefaultSessionPort)
	}

	c.status(fmt.Sprintf("Connecting to %s...", addr), false)
	conn, err := net.DialTimeout("tcp4", addr, connectTimeout)
	if err != nil {
		c.running.Store(false)
		return fmt.Errorf("connect to server: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	c.status(fmt.Sprintf("Connected to server at %s.", addr), false)

	c.wg.Add(1)
	go c.receiveLoop(conn)
	return nil
}

// Connected reports whether a session is live.
func (c *Client) Connected() bool {
	return c.running.Load()
}

// Stop tears the session down and waits for the receive loop to exit.
func (c *Client) Stop() {
	c.close()
	c.wg.Wait()
}

// close ends the session without joining the receive loop, so the loop can
// call it on its own way out. Reports whether this call did the teardown.
func (c *Client) close() bool {
	if !c.running.CompareAndSwap(true, false) {
		return false
	}
	c.mu.Lock()
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.mu.Unlock()
	return true
}

func (c *Client) receiveLoop(conn net.Conn) {
	defer c.wg.Done()
	for {
		body, err := protocol.ReadFrameBody(conn)
		if err != nil {
			if c.running.Load() {
				c.status("Disconnected from server.", true)
			}
			break
		}
		m, err := protocol.Decode(body)
		if err != nil {
			// Frame boundaries are intact, so a bad body is droppable.
			c.status(fmt.Sprintf("Dropped malformed message: %v", err), true)
			continue
		}
		if !c.process(m) {
			break
		}
	}

	c.close()
	if c.onDisconnect != nil {
		c.onDisconnect()
	}
}

// process replays one message. A false return ends the session.
func (c *Client) process(m protocol.Message) bool {
	switch m.Type {
	case protocol.TypeForceDisconnect:
		c.status("Server requested disconnect.", false)
		return false

	case protocol.TypeControlAcquire:
		c.status("--- Server has taken control ---", false)

	case protocol.TypeControlRelease:
		c.status("--- Server has released control ---", false)
		// The wire releases arrive before this message, but inject our own
		// pass anyway so a lost release frame cannot leave a modifier stuck.
		c.releaseAllModifiers()

	case protocol.TypeMouseMove:
		if err := c.injector.MoveRelative(m.DX, m.DY); err != nil {
			c.status(fmt.Sprintf("Mouse move failed: %v", err), true)
		}

	case protocol.TypeMouseClick:
		if err := c.injector.Button(m.Button, m.Action == protocol.ActionDown); err != nil {
			c.status(fmt.Sprintf("Mouse click failed: %v", err), true)
		}

	case protocol.TypeMouseScroll:
		if err := c.injector.Scroll(m.DX, m.DY); err != nil {
			c.status(fmt.Sprintf("Mouse scroll failed: %v", err), true)
		}

	case protocol.TypeKeyPress, protocol.TypeKeyRelease:
		if m.Key == nil {
			c.status(fmt.Sprintf("Dropped %s without a key value", m.Type), true)
			return true
		}
		k, ok := decodeKey(m.KeyType, *m.Key)
		if !ok {
			c.status(fmt.Sprintf("Unmapped key skipped: %s %v", m.KeyType, *m.Key), true)
			return true
		}
		if err := c.injector.Key(k, m.Type == protocol.TypeKeyPress); err != nil {
			c.status(fmt.Sprintf("Key event failed: %v", err), true)
		}
	}
	return true
}

func (c *Client) releaseAllModifiers() {
	for _, name := range protocol.ModifierNames {
		k, ok := input.SpecialKey(name)
		if !ok {
			continue
		}
		if err := c.injector.Key(k, false); err != nil {
			c.status(fmt.Sprintf("Modifier release failed: %v", err), true)
		}
	}
}
