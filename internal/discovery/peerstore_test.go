// Package discovery tests exercise the PeerStore behavior used by the
// mDNS discovery component, the conversion of announcements into network
// map entries and the subnet scanner's probing.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"

	"github.com/grandcat/zeroconf"

	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
)

func entry(instance, ip string, port int, txt ...string) *zeroconf.ServiceEntry {
	e := &zeroconf.ServiceEntry{}
	e.Instance = instance
	e.Port = port
	e.AddrIPv4 = []net.IP{net.ParseIP(ip)}
	e.Text = txt
	e.TTL = 120
	return e
}

func TestPeerStoreAddAndList(t *testing.T) {
	ps := NewPeerStore()
	ps.AddFromServiceEntry(entry("NodeB", "192.0.2.10", 8080, "name=NodeB", "key=b0b0", "notary=false"))

	peers := ps.List()
	if len(peers) != 1 {
		t.Fatalf("expected 1 peer, got %d", len(peers))
	}
	p := peers[0]
	if p.Instance != "NodeB" || p.Port != 8080 {
		t.Errorf("unexpected peer: %+v", p)
	}
	if p.Txt["key"] != "b0b0" {
		t.Errorf("txt key missing or wrong: %v", p.Txt)
	}

	node, ok := p.Node()
	if !ok {
		t.Fatal("expected a complete announcement")
	}
	if node.Party.Name != "NodeB" || node.Address != "http://192.0.2.10:8080" || node.Notary {
		t.Errorf("unexpected node %+v", node)
	}
}

func TestIncompleteAnnouncementIsNotANode(t *testing.T) {
	ps := NewPeerStore()
	p := ps.AddFromServiceEntry(entry("stray", "192.0.2.11", 8080, "ver=0.1"))
	if _, ok := p.Node(); ok {
		t.Fatal("announcement without name and key should be ignored")
	}
}

func TestHandleEntryFeedsSink(t *testing.T) {
	self := network.Node{Party: types.Party{Name: "NodeA", OwningKey: "a0a0"}}
	m := network.NewMap(self)
	s := &DiscoveryService{peerStore: NewPeerStore(), sink: m}

	s.handleEntry(entry("Controller", "192.0.2.1", 8080, "name=Controller", "key=c0c0", "notary=true"))
	n, err := m.Notary()
	if err != nil || n.Party.Name != "Controller" {
		t.Fatalf("expected discovered notary, got %+v, %v", n, err)
	}

	gone := entry("Controller", "192.0.2.1", 8080)
	gone.TTL = 0
	s.handleEntry(gone)
	if _, err := m.PartyFromName("Controller"); err == nil {
		t.Fatal("expected removal to reach the network map")
	}
}

func TestPeerStoreConcurrency(t *testing.T) {
	ps := NewPeerStore()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ps.AddFromServiceEntry(entry(fmt.Sprintf("node-%d", i), "192.0.2.1", 8000+i, "name=n"))
		}(i)
	}
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ps.Remove(fmt.Sprintf("node-%d", i))
		}(i)
	}
	wg.Wait()

	// Removes may run before their adds.
	if n := len(ps.List()); n < 25 || n > 50 {
		t.Fatalf("expected between 25 and 50 peers remaining, got %d", n)
	}
}

func TestHostRange(t *testing.T) {
	_, ipNet, _ := net.ParseCIDR("192.0.2.0/24")
	ipNet.IP = net.ParseIP("192.0.2.77")
	first, last, ok := hostRange(ipNet)
	if !ok {
		t.Fatal("expected a range")
	}
	if uint32ToIP(first).String() != "192.0.2.1" || uint32ToIP(last).String() != "192.0.2.254" {
		t.Errorf("unexpected range %s - %s", uint32ToIP(first), uint32ToIP(last))
	}

	_, wide, _ := net.ParseCIDR("10.0.0.0/8")
	wide.IP = net.ParseIP("10.1.2.3")
	first, last, _ = hostRange(wide)
	if uint32ToIP(first).String() != "10.1.2.1" || uint32ToIP(last).String() != "10.1.2.254" {
		t.Errorf("wide subnets should narrow to the local /24, got %s - %s", uint32ToIP(first), uint32ToIP(last))
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/yo/me" {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"me": "NodeB", "key": "b0b0", "notary": false})
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)

	s := NewScanner(port, "")
	node, err := s.Probe(context.Background(), DiscoveredHost{IP: host, Port: port})
	if err != nil {
		t.Fatalf("Probe: %v", err)
	}
	if node.Party.Name != "NodeB" || node.Address != srv.URL {
		t.Errorf("unexpected node %+v", node)
	}
}
