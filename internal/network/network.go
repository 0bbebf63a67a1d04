// Package network keeps the node's view of the network: which parties exist,
// which keys own them and where their nodes listen. It is filled from static
// configuration, the node's own identity and mDNS discovery.
package network

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"yo.mini/yo/internal/types"
)

var (
	ErrUnknownIdentity = errors.New("unknown identity")
	ErrNoNotary        = errors.New("no notary in the network map")
)

// UnknownIdentityError reports a name the network map cannot resolve.
type UnknownIdentityError struct {
	Name string
}

func (e UnknownIdentityError) Error() string {
	return fmt.Sprintf("%s is unknown.", e.Name)
}

func (e UnknownIdentityError) Is(target error) bool {
	return target == ErrUnknownIdentity
}

// Node is one entry of the network map.
type Node struct {
	Party   types.Party `json:"party"`
	Address string      `json:"address"`
	Notary  bool        `json:"notary"`
}

// Map is a thread-safe name-keyed directory of nodes.
type Map struct {
	mtx   sync.RWMutex
	self  Node
	nodes map[string]Node
}

// NewMap creates a map containing only self.
func NewMap(self Node) *Map {
	return &Map{
		self:  self,
		nodes: map[string]Node{self.Party.Name: self},
	}
}

// Self returns this node's entry.
func (m *Map) Self() Node {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.self
}

// Add inserts or updates a node. The node's own entry cannot be replaced and
// a key already bound to one name cannot be announced under another.
func (m *Map) Add(n Node) error {
	if n.Party.Name == "" || n.Party.OwningKey == "" {
		return fmt.Errorf("node needs a name and a key: %+v", n)
	}
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if n.Party.Name == m.self.Party.Name {
		if n.Party.OwningKey != m.self.Party.OwningKey {
			return fmt.Errorf("%s is this node's name but announces a different key", n.Party.Name)
		}
		return nil
	}
	if n.Party.OwningKey == m.self.Party.OwningKey {
		return fmt.Errorf("key of %s is already bound to %s", n.Party.Name, m.self.Party.Name)
	}
	for _, existing := range m.nodes {
		if existing.Party.OwningKey == n.Party.OwningKey && existing.Party.Name != n.Party.Name {
			return fmt.Errorf("key of %s is already bound to %s", n.Party.Name, existing.Party.Name)
		}
	}
	m.nodes[n.Party.Name] = n
	return nil
}

// Remove drops a node by name. Removing self is a no-op.
func (m *Map) Remove(name string) {
	m.mtx.Lock()
	defer m.mtx.Unlock()
	if name == m.self.Party.Name {
		return
	}
	delete(m.nodes, name)
}

// Lookup returns the node registered under name.
func (m *Map) Lookup(name string) (Node, bool) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	n, ok := m.nodes[name]
	return n, ok
}

// PartyFromName resolves a well-known name to its party.
func (m *Map) PartyFromName(name string) (types.Party, error) {
	n, ok := m.Lookup(name)
	if !ok {
		return types.Party{}, UnknownIdentityError{Name: name}
	}
	return n.Party, nil
}

// NodeForParty returns the node that owns p's key.
func (m *Map) NodeForParty(p types.Party) (Node, error) {
	n, ok := m.Lookup(p.Name)
	if !ok || n.Party.OwningKey != p.OwningKey {
		return Node{}, UnknownIdentityError{Name: p.Name}
	}
	return n, nil
}

// Nodes returns every node, self included, sorted by name.
func (m *Map) Nodes() []Node {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	out := make([]Node, 0, len(m.nodes))
	for _, n := range m.nodes {
		out = append(out, n)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Party.Name < out[j].Party.Name })
	return out
}

// Peers returns every node except self, sorted by name.
func (m *Map) Peers() []Node {
	self := m.Self().Party.Name
	all := m.Nodes()
	out := all[:0]
	for _, n := range all {
		if n.Party.Name != self {
			out = append(out, n)
		}
	}
	return out
}

// Notary returns the network's notary. With several notaries the first by
// name is used.
func (m *Map) Notary() (Node, error) {
	for _, n := range m.Nodes() {
		if n.Notary {
			return n, nil
		}
	}
	return Node{}, ErrNoNotary
}

// PreferredNotary returns the notary called name when the map lists it as a
// notary, and otherwise falls back to Notary.
func (m *Map) PreferredNotary(name string) (Node, error) {
	if n, ok := m.Lookup(name); ok && n.Notary {
		return n, nil
	}
	return m.Notary()
}
