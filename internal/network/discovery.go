// Package network provides UDP server discovery and address utilities.
package network

import (
	"bytes"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/GautamMIH/SimpleKVM/internal/protocol"
)

// DefaultBroadcastInterval is the cadence of discovery pings.
const DefaultBroadcastInterval = 3 * time.Second

// Broadcaster periodically announces a server's presence by sending the fixed
// discovery payload to the local broadcast address. Broadcasting is cheap and
// best-effort: a send failure is logged and the loop terminates.
type Broadcaster struct {
	port     int
	interval time.Duration
	conn     net.Conn
	done     chan struct{}
	wg       sync.WaitGroup
}

// NewBroadcaster creates a broadcaster for the given discovery port.
// A non-positive interval falls back to DefaultBroadcastInterval.
func NewBroadcaster(port int, interval time.Duration) *Broadcaster {
	if interval <= 0 {
		interval = DefaultBroadcastInterval
	}
	return &Broadcaster{
		port:     port,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start opens the broadcast socket and begins the announce loop.
func (b *Broadcaster) Start() error {
	conn, err := net.Dial("udp4", fmt.Sprintf("255.255.255.255:%d", b.port))
	if err != nil {
		return fmt.Errorf("discovery broadcast socket: %w", err)
	}
	b.conn = conn

	b.wg.Add(1)
	go b.loop()
	return nil
}

func (b *Broadcaster) loop() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	// Announce immediately so a waiting scanner does not sit out a full
	// interval before the first ping.
	if !b.send() {
		return
	}
	for {
		select {
		case <-ticker.C:
			if !b.send() {
				return
			}
		case <-b.done:
			return
		}
	}
}

func (b *Broadcaster) send() bool {
	if _, err := b.conn.Write([]byte(protocol.DiscoveryPayload)); err != nil {
		select {
		case <-b.done:
		default:
			log.Printf("Discovery: broadcast error: %v", err)
		}
		return false
	}
	return true
}

// Stop terminates the announce loop and waits for it to exit.
func (b *Broadcaster) Stop() {
	close(b.done)
	if b.conn != nil {
		b.conn.Close()
	}
	b.wg.Wait()
}

// Scanner listens on the discovery port and reports each distinct server
// address at most once per scan session.
type Scanner struct {
	port int
	conn *net.UDPConn
	done chan struct{}
	wg   sync.WaitGroup

	// OnFound is invoked once per distinct sender address whose payload
	// matches the discovery constant exactly. Set before Start.
	OnFound func(addr string)
}

// NewScanner creates a scanner for the given discovery port.
func NewScanner(port int) *Scanner {
	return &Scanner{
		port: port,
		done: make(chan struct{}),
	}
}

// Start binds the discovery port and begins surfacing server addresses.
func (s *Scanner) Start() error {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: s.port})
	if err != nil {
		return fmt.Errorf("discovery listen socket: %w", err)
	}
	s.conn = conn

	s.wg.Add(1)
	go s.listen()
	return nil
}

// Addr returns the bound listen address. Only valid after Start.
func (s *Scanner) Addr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Scanner) listen() {
	defer s.wg.Done()

	payload := []byte(protocol.DiscoveryPayload)
	seen := make(map[string]bool)
	buf := make([]byte, 1024)

	for {
		n, addr, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-s.done:
			default:
				log.Printf("Discovery: listen error: %v", err)
			}
			return
		}
		if !bytes.Equal(buf[:n], payload) {
			continue
		}
		ip := addr.IP.String()
		if seen[ip] {
			continue
		}
		seen[ip] = true
		log.Printf("Discovery: found server at %s", ip)
		if s.OnFound != nil {
			s.OnFound(ip)
		}
	}
}

// Stop terminates the scan session and waits for the listener to exit.
func (s *Scanner) Stop() {
	close(s.done)
	if s.conn != nil {
		s.conn.Close()
	}
	s.wg.Wait()
}

// GetLocalIPs returns all usable local IPv4 addresses, for showing a user
// which addresses a server is reachable on.
func GetLocalIPs() ([]string, error) {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}
	var ips []string
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 {
			continue // interface down
		}
		if iface.Flags&net.FlagLoopback != 0 {
			continue // loopback interface
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch v := addr.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip == nil || ip.IsLoopback() {
				continue
			}
			ip = ip.To4()
			if ip == nil {
				continue // not an ipv4 address
			}
			ips = append(ips, ip.String())
		}
	}
	return ips, nil
}
