package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/GautamMIH/SimpleKVM/internal/api"
	"github.com/GautamMIH/SimpleKVM/internal/autostart"
	"github.com/GautamMIH/SimpleKVM/internal/config"
	"github.com/GautamMIH/SimpleKVM/internal/hotkey"
	"github.com/GautamMIH/SimpleKVM/internal/input"
	"github.com/GautamMIH/SimpleKVM/internal/kvm"
	"github.com/GautamMIH/SimpleKVM/internal/network"
	"github.com/GautamMIH/SimpleKVM/internal/osutils"
	"github.com/GautamMIH/SimpleKVM/internal/tray"
)

const version = "1.0.0"

type app struct {
	cfg *config.Config
	api *api.Server

	// server role
	hk     *hotkey.Manager
	server *kvm.Server

	// client role
	client *kvm.Client

	mu      sync.Mutex
	scanner *network.Scanner
	running bool
}

func main() {
	serverMode := flag.Bool("server", false, "run as the controlling server")
	clientMode := flag.Bool("client", false, "run as the controlled client")
	connectAddr := flag.String("connect", "", "client: connect to this server address (host or host:port) instead of discovery")
	hotkeyFlag := flag.String("hotkey", "", "server: override the toggle hotkey, e.g. Ctrl+Alt+Z")
	noTray := flag.Bool("no-tray", false, "run without the system tray icon")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("SimpleKVM v%s\n", version)
		return
	}

	log.SetFlags(log.LstdFlags)
	log.Printf("SimpleKVM v%s starting...", version)

	configMgr, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to initialize config: %v", err)
	}
	if err := configMgr.Load(); err != nil {
		log.Printf("Warning: failed to load config, using defaults: %v", err)
	}
	cfg := configMgr.Get()

	// Flags override the stored configuration.
	if *serverMode && *clientMode {
		log.Fatal("Choose one of -server or -client")
	}
	if *serverMode {
		cfg.Role = config.RoleServer
	}
	if *clientMode {
		cfg.Role = config.RoleClient
	}
	if *connectAddr != "" {
		cfg.Role = config.RoleClient
		cfg.ServerAddr = *connectAddr
	}
	if *hotkeyFlag != "" {
		cfg.ToggleHotkey = *hotkeyFlag
	}

	a := &app{cfg: cfg, running: true}

	if cfg.APIEnabled {
		a.api = api.NewServer(cfg.APIToken)
		a.api.StatusProvider = a.statusSnapshot
		go a.api.Start(cfg.APIPort)
	}

	switch cfg.Role {
	case config.RoleServer:
		if err := a.startServer(); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	case config.RoleClient:
		if err := a.startClient(); err != nil {
			log.Fatalf("Failed to start client: %v", err)
		}
	default:
		log.Fatalf("Unknown role %q in config (expected %q or %q)", cfg.Role, config.RoleServer, config.RoleClient)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if *noTray {
		<-sigCh
		a.shutdown()
		return
	}

	t := a.buildTray()
	go func() {
		<-sigCh
		t.Stop()
	}()
	t.Run()
	a.shutdown()
}

// status is the single sink for user-visible status lines. Everything goes to
// the log; when the API is up it is also fanned out to WebSocket viewers.
func (a *app) status(msg string, isError bool) {
	if isError {
		log.Printf("ERROR: %s", msg)
	} else {
		log.Println(msg)
	}
	if a.api != nil {
		a.api.Broadcast(msg, isError)
	}
}

func (a *app) statusSnapshot() api.Status {
	s := api.Status{Role: a.cfg.Role}
	switch a.cfg.Role {
	case config.RoleServer:
		if a.server != nil {
			s.State = a.server.State()
			s.Connected = a.server.Connected()
		}
	case config.RoleClient:
		if a.client != nil {
			s.Connected = a.client.Connected()
		}
	}
	return s
}

func (a *app) startServer() error {
	if err := osutils.EnsureFirewallRule(a.cfg.SessionPort); err != nil {
		log.Printf("Warning: firewall provisioning failed: %v", err)
	}

	a.hk = hotkey.NewManager()
	if err := a.hk.Start(); err != nil {
		return fmt.Errorf("hotkey engine: %w", err)
	}

	server, err := kvm.NewServer(kvm.ServerConfig{
		Hotkey:        a.cfg.ToggleHotkey,
		SessionPort:   a.cfg.SessionPort,
		DiscoveryPort: a.cfg.DiscoveryPort,
	}, kvm.ServerDeps{
		Capture: input.NewCapture(),
		Pointer: input.NewPointer(),
		Hotkeys: a.hk,
		Status:  a.status,
	})
	if err != nil {
		return err
	}
	a.server = server

	if err := server.Start(); err != nil {
		return err
	}

	if a.api != nil {
		a.api.ToggleFunc = server.Toggle
	}

	if ips, err := network.GetLocalIPs(); err == nil {
		for _, ip := range ips {
			a.status(fmt.Sprintf("Reachable at %s:%d", ip, a.cfg.SessionPort), false)
		}
	}
	return nil
}

func (a *app) startClient() error {
	client, err := kvm.NewClient(kvm.ClientDeps{
		Injector:     input.NewInjector(),
		Status:       a.status,
		OnDisconnect: a.onClientDisconnect,
	})
	if err != nil {
		return err
	}
	a.client = client

	if a.cfg.ServerAddr != "" {
		go a.connectDirect()
		return nil
	}
	return a.startScan()
}

// connectDirect keeps dialing the configured address until it succeeds or the
// app shuts down.
func (a *app) connectDirect() {
	for a.isRunning() {
		err := a.client.Connect(a.cfg.ServerAddr)
		if err == nil {
			return
		}
		a.status(fmt.Sprintf("Connect failed, retrying: %v", err), true)
		time.Sleep(3 * time.Second)
	}
}

// startScan begins a discovery session that ends at the first usable server.
func (a *app) startScan() error {
	scanner := network.NewScanner(a.cfg.DiscoveryPort)
	scanner.OnFound = a.onServerFound

	a.mu.Lock()
	a.scanner = scanner
	a.mu.Unlock()

	a.status("Scanning for a server on the local network...", false)
	return scanner.Start()
}

// onServerFound runs on the scanner goroutine; the scanner is stopped from a
// separate goroutine because Stop joins the goroutine this callback runs on.
func (a *app) onServerFound(addr string) {
	go func() {
		a.stopScan()
		if err := a.client.Connect(addr); err != nil {
			a.status(fmt.Sprintf("Connect to discovered server failed: %v", err), true)
			if a.isRunning() && !a.client.Connected() {
				a.startScan()
			}
		}
	}()
}

func (a *app) stopScan() {
	a.mu.Lock()
	scanner := a.scanner
	a.scanner = nil
	a.mu.Unlock()
	if scanner != nil {
		scanner.Stop()
	}
}

func (a *app) onClientDisconnect() {
	if !a.isRunning() {
		return
	}
	time.Sleep(time.Second)
	if !a.isRunning() {
		return
	}
	if a.cfg.ServerAddr != "" {
		go a.connectDirect()
		return
	}
	if err := a.startScan(); err != nil {
		a.status(fmt.Sprintf("Failed to restart discovery: %v", err), true)
	}
}

func (a *app) isRunning() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.running
}

func (a *app) buildTray() *tray.Tray {
	t := tray.New(fmt.Sprintf("SimpleKVM (%s)", a.cfg.Role))

	if a.cfg.Role == config.RoleServer {
		t.AddMenuItem(fmt.Sprintf("Toggle Control (%s)", a.cfg.ToggleHotkey), func() {
			a.server.Toggle()
		})
		t.AddSeparator()
	}

	var autostartID int
	autostartID = t.AddMenuItem("Start on Login", func() {
		if autostart.IsEnabled() {
			if err := autostart.Disable(); err != nil {
				a.status(fmt.Sprintf("Failed to disable autostart: %v", err), true)
				return
			}
			t.SetItemChecked(autostartID, false)
		} else {
			if err := autostart.Enable(); err != nil {
				a.status(fmt.Sprintf("Failed to enable autostart: %v", err), true)
				return
			}
			t.SetItemChecked(autostartID, true)
		}
	})
	t.SetItemChecked(autostartID, autostart.IsEnabled())

	t.AddSeparator()
	t.AddMenuItem("Quit", func() {
		t.Stop()
	})

	return t
}

func (a *app) shutdown() {
	a.mu.Lock()
	a.running = false
	a.mu.Unlock()

	a.stopScan()
	if a.client != nil {
		a.client.Stop()
	}
	if a.server != nil {
		a.server.Stop()
	}
	if a.api != nil {
		a.api.Stop()
	}
	log.Println("SimpleKVM exited.")
}
