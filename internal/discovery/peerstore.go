package discovery

import (
	"fmt"
	"net"
	"strings"
	"sync"

	"github.com/grandcat/zeroconf"

	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
)

// TXT record keys a yo node announces.
const (
	txtName   = "name"
	txtKey    = "key"
	txtNotary = "notary"
)

// Peer represents a discovered peer's basic information.
type Peer struct {
	Instance string
	Hostname string
	Port     int
	Addrs    []net.IP
	Txt      map[string]string
}

// Node converts the peer into a network map entry. It reports false when
// the announcement lacks a name, a key or an address.
func (p *Peer) Node() (network.Node, bool) {
	name, key := p.Txt[txtName], p.Txt[txtKey]
	if name == "" || key == "" || len(p.Addrs) == 0 {
		return network.Node{}, false
	}
	return network.Node{
		Party:   types.Party{Name: name, OwningKey: key},
		Address: fmt.Sprintf("http://%s", net.JoinHostPort(p.Addrs[0].String(), fmt.Sprint(p.Port))),
		Notary:  p.Txt[txtNotary] == "true",
	}, true
}

// PeerStore is a thread-safe store of discovered peers.
type PeerStore struct {
	mtx   sync.RWMutex
	peers map[string]*Peer // keyed by instance
}

// NewPeerStore creates an empty PeerStore.
func NewPeerStore() *PeerStore {
	return &PeerStore{peers: make(map[string]*Peer)}
}

// AddFromServiceEntry adds or updates a peer using a zeroconf ServiceEntry.
func (ps *PeerStore) AddFromServiceEntry(e *zeroconf.ServiceEntry) *Peer {
	if e == nil {
		return nil
	}

	txt := make(map[string]string, len(e.Text))
	for _, t := range e.Text {
		if k, v, ok := strings.Cut(t, "="); ok {
			txt[k] = v
		}
	}

	peer := &Peer{
		Instance: e.Instance,
		Hostname: e.HostName,
		Port:     e.Port,
		Addrs:    append([]net.IP(nil), e.AddrIPv4...),
		Txt:      txt,
	}

	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	ps.peers[e.Instance] = peer
	return peer
}

// Remove removes a peer by instance name and returns it.
func (ps *PeerStore) Remove(instance string) *Peer {
	ps.mtx.Lock()
	defer ps.mtx.Unlock()
	p := ps.peers[instance]
	delete(ps.peers, instance)
	return p
}

// List returns a snapshot of known peers.
func (ps *PeerStore) List() []*Peer {
	ps.mtx.RLock()
	defer ps.mtx.RUnlock()
	out := make([]*Peer, 0, len(ps.peers))
	for _, p := range ps.peers {
		out = append(out, p)
	}
	return out
}
