// Package discovery finds other yo nodes on the local network. Nodes announce
// a _yo._tcp mDNS service whose TXT records carry the party name, the owning
// key and whether the node is a notary; browsing feeds those announcements
// into the network map. A subnet scanner covers networks without multicast.
package discovery

import (
	"context"
	"log"
	"strconv"

	"github.com/grandcat/zeroconf"

	"yo.mini/yo/internal/network"
)

// Sink receives discovered nodes. *network.Map implements it.
type Sink interface {
	Add(n network.Node) error
	Remove(name string)
}

// Announcement is what this node publishes.
type Announcement struct {
	Name   string
	Key    string
	Notary bool
	Port   int
}

func (a Announcement) text() []string {
	return []string{
		txtName + "=" + a.Name,
		txtKey + "=" + a.Key,
		txtNotary + "=" + strconv.FormatBool(a.Notary),
	}
}

// DiscoveryService handles the mDNS registration and browsing.
type DiscoveryService struct {
	serviceName string
	resolver    *zeroconf.Resolver
	server      *zeroconf.Server
	peerStore   *PeerStore
	sink        Sink
	cancel      context.CancelFunc
	done        chan struct{}
}

// NewDiscoveryService creates a new mDNS discovery service.
func NewDiscoveryService(serviceName string, sink Sink) (*DiscoveryService, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, err
	}

	return &DiscoveryService{
		serviceName: serviceName,
		resolver:    resolver,
		peerStore:   NewPeerStore(),
		sink:        sink,
		done:        make(chan struct{}),
	}, nil
}

// Start announces the local service and begins browsing for remote services.
func (s *DiscoveryService) Start(a Announcement) error {
	server, err := zeroconf.Register(a.Name, s.serviceName, "local.", a.Port, a.text(), nil)
	if err != nil {
		return err
	}
	s.server = server
	log.Printf("mDNS: Announced %s as %s on port %d", s.serviceName, a.Name, a.Port)

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go s.browseForPeers(ctx)

	return nil
}

func (s *DiscoveryService) browseForPeers(ctx context.Context) {
	defer close(s.done)

	entries := make(chan *zeroconf.ServiceEntry)
	go func(results <-chan *zeroconf.ServiceEntry) {
		for entry := range results {
			s.handleEntry(entry)
		}
	}(entries)

	log.Println("mDNS: Browsing for other peers...")
	if err := s.resolver.Browse(ctx, s.serviceName, "local.", entries); err != nil {
		log.Printf("ERROR: Failed to browse for mDNS services: %v", err)
	}
	<-ctx.Done()
	log.Println("mDNS: Peer browsing stopped.")
}

func (s *DiscoveryService) handleEntry(entry *zeroconf.ServiceEntry) {
	if entry.TTL == 0 {
		if p := s.peerStore.Remove(entry.Instance); p != nil {
			log.Printf("mDNS: Peer removed: %s", entry.Instance)
			if name := p.Txt[txtName]; name != "" {
				s.sink.Remove(name)
			}
		}
		return
	}

	p := s.peerStore.AddFromServiceEntry(entry)
	node, ok := p.Node()
	if !ok {
		log.Printf("mDNS: Ignoring incomplete announcement from %s", entry.Instance)
		return
	}
	if err := s.sink.Add(node); err != nil {
		log.Printf("mDNS: Rejected %s: %v", entry.Instance, err)
		return
	}
	log.Printf("mDNS: Peer discovered: %s at %s", node.Party.Name, node.Address)
}

// GetPeers returns a snapshot of discovered peers.
func (s *DiscoveryService) GetPeers() []*Peer {
	return s.peerStore.List()
}

// Stop shuts down the announcement and waits for browsing to end.
func (s *DiscoveryService) Stop() {
	log.Println("mDNS: Stopping service discovery...")
	if s.cancel != nil {
		s.cancel()
		<-s.done
	}
	if s.server != nil {
		s.server.Shutdown()
	}
}
