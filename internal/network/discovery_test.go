package network

import (
	"fmt"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

func TestScannerSurfacesServerOnce(t *testing.T) {
	var mu sync.Mutex
	var found []string

	s := NewScanner(0)
	s.OnFound = func(addr string) {
		mu.Lock()
		found = append(found, addr)
		mu.Unlock()
	}
	if err := s.Start(); err != nil {
		t.Fatalf("scanner start: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", s.Addr().(*net.UDPAddr).Port))
	if err != nil {
		t.Fatalf("dial scanner: %v", err)
	}
	defer conn.Close()

	// Same sender pings repeatedly, as a real broadcaster does. It must be
	// surfaced exactly once per scan session.
	for i := 0; i < 3; i++ {
		if _, err := conn.Write([]byte(protocol.DiscoveryPayload)); err != nil {
			t.Fatalf("send ping: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		n := len(found)
		mu.Unlock()
		if n > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Give duplicate pings a moment to (incorrectly) surface.
	time.Sleep(100 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if len(found) != 1 {
		t.Fatalf("sender surfaced %d times, want 1 (%v)", len(found), found)
	}
	if found[0] != "127.0.0.1" {
		t.Errorf("surfaced address %q, want 127.0.0.1", found[0])
	}
}

func TestScannerIgnoresForeignPayload(t *testing.T) {
	var mu sync.Mutex
	count := 0

	s := NewScanner(0)
	s.OnFound = func(addr string) {
		mu.Lock()
		count++
		mu.Unlock()
	}
	if err := s.Start(); err != nil {
		t.Fatalf("scanner start: %v", err)
	}
	defer s.Stop()

	conn, err := net.Dial("udp4", fmt.Sprintf("127.0.0.1:%d", s.Addr().(*net.UDPAddr).Port))
	if err != nil {
		t.Fatalf("dial scanner: %v", err)
	}
	defer conn.Close()

	for _, payload := range []string{
		"SOMETHING_ELSE",
		protocol.DiscoveryPayload + "_EXTRA",
		protocol.DiscoveryPayload[:len(protocol.DiscoveryPayload)-1],
	} {
		if _, err := conn.Write([]byte(payload)); err != nil {
			t.Fatalf("send payload: %v", err)
		}
	}

	time.Sleep(200 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	if count != 0 {
		t.Errorf("foreign payloads surfaced %d servers, want 0", count)
	}
}

func TestBroadcasterDefaultInterval(t *testing.T) {
	b := NewBroadcaster(protocol.DefaultDiscoveryPort, 0)
	if b.interval != DefaultBroadcastInterval {
		t.Errorf("got interval %v, want %v", b.interval, DefaultBroadcastInterval)
	}
	b = NewBroadcaster(protocol.DefaultDiscoveryPort, time.Second)
	if b.interval != time.Second {
		t.Errorf("got interval %v, want 1s", b.interval)
	}
}
