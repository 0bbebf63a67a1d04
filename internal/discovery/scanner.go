package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
)

// DiscoveredHost is an address with the node port open.
type DiscoveredHost struct {
	IP   string
	Port int
}

// Scanner probes the local subnets for yo nodes.
type Scanner struct {
	port       int
	overrideIP string
	client     *http.Client
}

// NewScanner creates a scanner for nodes listening on port. A non-empty
// overrideIP restricts the scan to the /24 around it.
func NewScanner(port int, overrideIP string) *Scanner {
	return &Scanner{
		port:       port,
		overrideIP: overrideIP,
		client:     &http.Client{Timeout: 2 * time.Second},
	}
}

// ScanInto scans, identifies every host that answers and adds it to sink.
// It returns the number of nodes added.
func (s *Scanner) ScanInto(ctx context.Context, sink Sink) (int, error) {
	results, err := s.Scan(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for host := range results {
		node, err := s.Probe(ctx, host)
		if err != nil {
			continue
		}
		if err := sink.Add(node); err != nil {
			log.Printf("Scan: rejected %s: %v", node.Address, err)
			continue
		}
		count++
	}
	return count, nil
}

// Probe asks the node at host who it is.
func (s *Scanner) Probe(ctx context.Context, host DiscoveredHost) (network.Node, error) {
	address := fmt.Sprintf("http://%s", net.JoinHostPort(host.IP, fmt.Sprint(host.Port)))
	return ProbeAddress(ctx, s.client, address)
}

// ProbeAddress asks the node at a base URL such as "http://controller:8080"
// who it is.
func ProbeAddress(ctx context.Context, client *http.Client, address string) (network.Node, error) {
	address = strings.TrimSuffix(address, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, address+"/api/yo/me", nil)
	if err != nil {
		return network.Node{}, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return network.Node{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return network.Node{}, fmt.Errorf("%s answered %d", address, resp.StatusCode)
	}

	var me struct {
		Me     string `json:"me"`
		Key    string `json:"key"`
		Notary bool   `json:"notary"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return network.Node{}, fmt.Errorf("decode identity from %s: %w", address, err)
	}
	if me.Me == "" || me.Key == "" {
		return network.Node{}, fmt.Errorf("%s is not a yo node", address)
	}
	return network.Node{
		Party:   types.Party{Name: me.Me, OwningKey: me.Key},
		Address: address,
		Notary:  me.Notary,
	}, nil
}

// Scan streams every address with the port open. The channel closes when
// the scan completes or ctx ends.
func (s *Scanner) Scan(ctx context.Context) (<-chan DiscoveredHost, error) {
	subnets, err := s.subnets()
	if err != nil {
		return nil, err
	}

	results := make(chan DiscoveredHost)
	var wg sync.WaitGroup
	for _, ipNet := range subnets {
		log.Printf("Scanning subnet %s", ipNet)
		wg.Add(1)
		go func(n *net.IPNet) {
			defer wg.Done()
			s.scanSubnet(ctx, n, results)
		}(ipNet)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
	return results, nil
}

func (s *Scanner) subnets() ([]*net.IPNet, error) {
	if s.overrideIP != "" {
		ip := net.ParseIP(s.overrideIP).To4()
		if ip == nil {
			return nil, fmt.Errorf("override IP must be IPv4: %s", s.overrideIP)
		}
		return []*net.IPNet{{IP: ip, Mask: net.CIDRMask(24, 32)}}, nil
	}

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, fmt.Errorf("failed to get interfaces: %w", err)
	}

	var out []*net.IPNet
	for _, i := range ifaces {
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := i.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			ipNet, ok := addr.(*net.IPNet)
			if !ok || ipNet.IP.To4() == nil || ipNet.IP.IsLinkLocalUnicast() {
				continue
			}
			out = append(out, ipNet)
		}
	}
	return out, nil
}

func (s *Scanner) scanSubnet(ctx context.Context, ipNet *net.IPNet, results chan<- DiscoveredHost) {
	self := ipNet.IP.To4()
	first, last, ok := hostRange(ipNet)
	if !ok {
		return
	}

	sem := make(chan struct{}, 50)
	var wg sync.WaitGroup
	defer wg.Wait()

	for i := first; i <= last; i++ {
		select {
		case <-ctx.Done():
			return
		case sem <- struct{}{}:
		}

		target := uint32ToIP(i)
		if target.Equal(self) {
			<-sem
			continue
		}

		wg.Add(1)
		go func(ip string) {
			defer wg.Done()
			defer func() { <-sem }()
			if s.checkPort(ctx, ip) {
				select {
				case results <- DiscoveredHost{IP: ip, Port: s.port}:
				case <-ctx.Done():
				}
			}
		}(target.String())
	}
}

// hostRange returns the first and last host address of ipNet. Subnets wider
// than /23 are narrowed to the /24 around the local address.
func hostRange(ipNet *net.IPNet) (uint32, uint32, bool) {
	ip := ipNet.IP.To4()
	if ip == nil || len(ipNet.Mask) != net.IPv4len {
		return 0, 0, false
	}
	ones, _ := ipNet.Mask.Size()
	mask := ipToUint32(net.IP(ipNet.Mask))
	if ones < 23 {
		mask = 0xFFFFFF00
	}
	base := ipToUint32(ip) & mask
	broadcast := base | ^mask
	if broadcast-base < 2 {
		return 0, 0, false
	}
	return base + 1, broadcast - 1, true
}

func (s *Scanner) checkPort(ctx context.Context, ip string) bool {
	d := net.Dialer{Timeout: 500 * time.Millisecond}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, fmt.Sprint(s.port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func ipToUint32(ip net.IP) uint32 {
	ip = ip.To4()
	return uint32(ip[0])<<24 | uint32(ip[1])<<16 | uint32(ip[2])<<8 | uint32(ip[3])
}

func uint32ToIP(v uint32) net.IP {
	return net.IPv4(byte(v>>24), byte(v>>16), byte(v>>8), byte(v)).To4()
}
