// Package api exposes the local HTTP/WebSocket status surface: a poll
// endpoint for the current session state and a WebSocket feed of status lines.
package api

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"

	"github.com/GautamMIH/SimpleKVM/internal/network"
)

// Status is the snapshot served by /api/status. The session core fills it in
// through the StatusProvider callback.
type Status struct {
	Role      string   `json:"role"`
	State     string   `json:"state"`
	Connected bool     `json:"connected"`
	Addresses []string `json:"addresses,omitempty"`
}

// Server provides the HTTP status API and the WebSocket status feed.
type Server struct {
	token string
	wsMgr *WSManager

	// StatusProvider returns the current session snapshot.
	StatusProvider func() Status

	// ToggleFunc, when set, lets POST /api/toggle flip LOCAL/REMOTE control.
	ToggleFunc func()

	httpServer *http.Server
}

// NewServer creates a new API server. token may be empty to disable auth.
func NewServer(token string) *Server {
	return &Server{
		token: token,
		wsMgr: newWSManager(),
	}
}

// Broadcast pushes one status line to every connected WebSocket viewer.
func (s *Server) Broadcast(message string, isError bool) {
	s.wsMgr.Broadcast(message, isError)
}

// Start serves the API on the specified port. Blocking.
func (s *Server) Start(port int) error {
	go s.wsMgr.start()

	mux := http.NewServeMux()
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/toggle", s.handleToggle)
	mux.HandleFunc("/ws", s.wsMgr.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	// Use "0.0.0.0:port" and explicitly use tcp4 to avoid IPv6-only binding issues on Windows
	addr := fmt.Sprintf("0.0.0.0:%d", port)
	log.Printf("Starting API server on %s", addr)

	ln, err := net.Listen("tcp4", addr)
	if err != nil {
		log.Printf("ERROR: API server failed to listen on %s: %v", addr, err)
		log.Printf("Note: SimpleKVM will continue running without the status API.")
		return err
	}

	s.httpServer = &http.Server{
		Handler: s.authMiddleware(s.recoverMiddleware(mux)),
	}

	if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
		log.Printf("ERROR: API server stopped: %v", err)
		return err
	}
	return nil
}

// Stop shuts the API down.
func (s *Server) Stop() {
	if s.httpServer != nil {
		s.httpServer.Close()
	}
	s.wsMgr.stop()
}

// recoverMiddleware prevents panics from crashing the whole server
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				log.Printf("PANIC RECOV: %v", err)
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// authMiddleware checks the API token if configured
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.Printf("API: %s %s from %s", r.Method, r.URL.Path, r.RemoteAddr)

		// Skip auth for health check
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		if s.token != "" {
			authHeader := r.Header.Get("Authorization")
			expectedAuth := "Bearer " + s.token

			if authHeader != expectedAuth {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next.ServeHTTP(w, r)
	})
}

// handleStatus handles GET /api/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != "GET" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var status Status
	if s.StatusProvider != nil {
		status = s.StatusProvider()
	}
	if ips, err := network.GetLocalIPs(); err == nil {
		status.Addresses = ips
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(status)
}

// handleToggle handles POST /api/toggle
func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.ToggleFunc == nil {
		http.Error(w, "Toggle not available in this role", http.StatusConflict)
		return
	}

	log.Printf("API: Toggle requested from %s", r.RemoteAddr)
	s.ToggleFunc()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleHealth handles GET /health (for monitoring)
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
