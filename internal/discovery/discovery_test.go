package discovery

import (
	"errors"
	"net"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/grandcat/zeroconf"

	"github.com/harrylevesque/aviator/internal/utils"
)

type fakeServer struct{ shutdowns int }

func (f *fakeServer) Shutdown() { f.shutdowns++ }

type published struct {
	instance, service, domain, host string
	port                            int
	ips, txt                        []string
}

func newTestAdvertiser(pubErr error) (*Advertiser, *fakeServer, *[]published) {
	srv := &fakeServer{}
	var calls []published
	a := New("Aviator At test", 8000, "1.2.3", nil)
	a.lookupIP = func() string { return "192.168.1.20" }
	a.publish = func(instance, service, domain string, port int, host string, ips, txt []string) (server, error) {
		calls = append(calls, published{instance, service, domain, host, port, ips, txt})
		if pubErr != nil {
			return nil, pubErr
		}
		return srv, nil
	}
	return a, srv, &calls
}

func TestOutboundIPIsValid(t *testing.T) {
	if ip := net.ParseIP(OutboundIP()); ip == nil {
		t.Fatalf("OutboundIP() = %q, not an IP", OutboundIP())
	}
}

func TestRegisterPublishesRecord(t *testing.T) {
	a, _, calls := newTestAdvertiser(nil)

	if err := a.Register(); err != nil {
		t.Fatalf("Register() = %v", err)
	}
	if err := a.Register(); err != nil {
		t.Fatalf("second Register() = %v", err)
	}
	if len(*calls) != 1 {
		t.Fatalf("published %d times, want 1", len(*calls))
	}
	got := (*calls)[0]
	if got.service != ServiceType || got.domain != Domain || got.port != 8000 || got.instance != "Aviator At test" {
		t.Fatalf("unexpected record %+v", got)
	}
	if diff := cmp.Diff([]string{"192.168.1.20"}, got.ips); diff != "" {
		t.Fatalf("ips mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"version=1.2.3", "type=aviator-go"}, got.txt); diff != "" {
		t.Fatalf("txt mismatch (-want +got):\n%s", diff)
	}
	if !a.Registered() {
		t.Fatalf("Registered() = false after Register")
	}
}

func TestRegisterFailureIsDiscoveryFailure(t *testing.T) {
	a, _, _ := newTestAdvertiser(errors.New("no multicast interface"))

	err := a.Register()
	if !errors.Is(err, utils.ErrDiscovery) {
		t.Fatalf("Register() = %v, want DiscoveryFailure", err)
	}
	if a.Registered() {
		t.Fatalf("Registered() = true after failure")
	}
	a.Unregister() // no state; must not panic
}

func TestUnregisterWithoutRegister(t *testing.T) {
	a, srv, _ := newTestAdvertiser(nil)
	a.Unregister()
	if srv.shutdowns != 0 {
		t.Fatalf("Shutdown called without registration")
	}
}

func TestUnregisterShutsDownOnce(t *testing.T) {
	a, srv, _ := newTestAdvertiser(nil)
	if err := a.Register(); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	a.Unregister()
	a.Unregister()

	if srv.shutdowns != 1 {
		t.Fatalf("Shutdown called %d times, want 1", srv.shutdowns)
	}
}

func TestDefaultInstanceName(t *testing.T) {
	a := New("", 8000, "dev", nil)
	if a.instance != "Aviator At "+utils.GetHostname() {
		t.Fatalf("instance = %q", a.instance)
	}
}

func TestPeerFromEntry(t *testing.T) {
	e := zeroconf.NewServiceEntry("Aviator At box", ServiceType, Domain)
	e.HostName = "box.local."
	e.Port = 8000
	e.Text = []string{"version=1.0.0", "type=aviator-go"}

	if got := peerFromEntry(e).URL(); got != "http://box.local.:8000" {
		t.Fatalf("URL() without addresses = %q", got)
	}

	e.AddrIPv6 = []net.IP{net.ParseIP("fe80::1")}
	if got := peerFromEntry(e).URL(); got != "http://[fe80::1]:8000" {
		t.Fatalf("URL() with v6 = %q", got)
	}

	e.AddrIPv4 = []net.IP{net.ParseIP("192.168.1.20")}
	p := peerFromEntry(e)
	if p.URL() != "http://192.168.1.20:8000" || p.Instance != "Aviator At box" || len(p.TXT) != 2 {
		t.Fatalf("peer = %+v", p)
	}
}
