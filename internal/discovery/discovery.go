// Package discovery advertises the host on the local network over mDNS so a
// phone can find it without typing an address.
package discovery

import (
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/grandcat/zeroconf"

	"github.com/harrylevesque/aviator/internal/utils"
)

const (
	ServiceType = "_aviator._tcp"
	Domain      = "local."

	// probeAddr is never contacted; dialing UDP only asks the kernel which
	// local address would route there.
	probeAddr  = "10.255.255.255:1"
	fallbackIP = "127.0.0.1"
)

// OutboundIP returns the local address of the interface that would carry
// traffic off this machine, or 127.0.0.1 when there is none.
func OutboundIP() string {
	conn, err := net.Dial("udp", probeAddr)
	if err != nil {
		return fallbackIP
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok || addr.IP == nil || addr.IP.IsUnspecified() {
		return fallbackIP
	}
	return addr.IP.String()
}

type server interface {
	Shutdown()
}

type publishFunc func(instance, service, domain string, port int, host string, ips, txt []string) (server, error)

func zeroconfPublish(instance, service, domain string, port int, host string, ips, txt []string) (server, error) {
	return zeroconf.RegisterProxy(instance, service, domain, port, host, ips, txt, nil)
}

// Advertiser publishes one service record for the lifetime of the host.
type Advertiser struct {
	instance string
	port     int
	txt      []string
	logger   *slog.Logger
	publish  publishFunc
	lookupIP func() string

	mu     sync.Mutex
	server server
}

// New returns an Advertiser for instance on port. An empty instance becomes
// "Aviator At <hostname>".
func New(instance string, port int, version string, logger *slog.Logger) *Advertiser {
	if instance == "" {
		instance = "Aviator At " + utils.GetHostname()
	}
	if logger == nil {
		logger = utils.DiscardLogger()
	}
	return &Advertiser{
		instance: instance,
		port:     port,
		txt:      []string{"version=" + version, "type=aviator-go"},
		logger:   logger,
		publish:  zeroconfPublish,
		lookupIP: OutboundIP,
	}
}

// Register publishes the record with the outbound IP and port. Failure is a
// DiscoveryFailure; callers log it and keep serving on typed addresses.
// Registering twice is a no-op.
func (a *Advertiser) Register() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		return nil
	}

	ip := a.lookupIP()
	srv, err := a.publish(a.instance, ServiceType, Domain, a.port, utils.GetHostname(), []string{ip}, a.txt)
	if err != nil {
		return utils.Wrap(utils.KindDiscovery, fmt.Sprintf("register %s", ServiceType), err)
	}
	a.server = srv
	a.logger.Info("discovery: registered", "instance", a.instance, "service", ServiceType, "ip", ip, "port", a.port)
	return nil
}

// Unregister withdraws the record. Safe to call when Register never
// succeeded, and safe to call more than once.
func (a *Advertiser) Unregister() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server == nil {
		return
	}
	a.server.Shutdown()
	a.server = nil
	a.logger.Info("discovery: unregistered", "instance", a.instance)
}

// Registered reports whether a record is currently published.
func (a *Advertiser) Registered() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.server != nil
}
