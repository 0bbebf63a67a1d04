package notary

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/types"
)

// NetworkClient notarises through whichever node the network map lists for
// the bundle's notary party. Clients are created on first use per address.
type NetworkClient struct {
	network *network.Map
	hc      *http.Client

	mu      sync.Mutex
	clients map[string]*Client
}

// NewNetworkClient creates a NetworkClient. A nil httpClient gets the
// default of NewClient.
func NewNetworkClient(m *network.Map, httpClient *http.Client) *NetworkClient {
	return &NetworkClient{
		network: m,
		hc:      httpClient,
		clients: make(map[string]*Client),
	}
}

// Notarise implements Notariser.
func (c *NetworkClient) Notarise(ctx context.Context, stx *types.SignedBundle) (types.Signature, error) {
	b, err := stx.GetBundle()
	if err != nil {
		return types.Signature{}, err
	}
	node, err := c.network.NodeForParty(b.Notary)
	if err != nil {
		return types.Signature{}, err
	}
	if !node.Notary {
		return types.Signature{}, fmt.Errorf("%s is not a notary: %w", node.Party.Name, network.ErrNoNotary)
	}
	if node.Address == "" {
		return types.Signature{}, fmt.Errorf("no address known for notary %s: %w", node.Party.Name, network.ErrNoNotary)
	}
	return c.client(node.Address).Notarise(ctx, stx)
}

func (c *NetworkClient) client(address string) *Client {
	c.mu.Lock()
	defer c.mu.Unlock()
	cl, ok := c.clients[address]
	if !ok {
		cl = NewClient(address, c.hc)
		c.clients[address] = cl
	}
	return cl
}
