package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/grandcat/zeroconf"

	"github.com/harrylevesque/aviator/internal/utils"
)

// Peer is a host found on the network.
type Peer struct {
	Instance string
	Host     string
	Port     int
	TXT      []string
}

// URL is the base address a client should use for p.
func (p Peer) URL() string {
	return "http://" + net.JoinHostPort(p.Host, strconv.Itoa(p.Port))
}

// Browse collects advertised hosts until ctx is done.
func Browse(ctx context.Context) ([]Peer, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, utils.Wrap(utils.KindDiscovery, "create resolver", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan []Peer)
	go func() {
		var peers []Peer
		seen := make(map[string]bool)
		for e := range entries {
			p := peerFromEntry(e)
			if key := p.Instance + "|" + p.URL(); !seen[key] {
				seen[key] = true
				peers = append(peers, p)
			}
		}
		done <- peers
	}()

	if err := resolver.Browse(ctx, ServiceType, Domain, entries); err != nil {
		return nil, utils.Wrap(utils.KindDiscovery, fmt.Sprintf("browse %s", ServiceType), err)
	}
	<-ctx.Done()
	return <-done, nil
}

func peerFromEntry(e *zeroconf.ServiceEntry) Peer {
	host := e.HostName
	switch {
	case len(e.AddrIPv4) > 0:
		host = e.AddrIPv4[0].String()
	case len(e.AddrIPv6) > 0:
		host = e.AddrIPv6[0].String()
	}
	return Peer{
		Instance: e.Instance,
		Host:     host,
		Port:     e.Port,
		TXT:      e.Text,
	}
}
