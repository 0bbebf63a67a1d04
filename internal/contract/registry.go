package contract

import (
	"fmt"
	"sort"
	"sync"

	"yo.mini/yo/internal/types"
)

// VerifyFunc decides whether a bundle is a legal transition for a contract.
type VerifyFunc func(b types.Bundle) error

// Registry maps contract IDs to their verify functions. It is filled at
// startup; lookups never fall back to anything that was not registered.
type Registry struct {
	mu        sync.RWMutex
	contracts map[string]VerifyFunc
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{contracts: make(map[string]VerifyFunc)}
}

// Default returns a registry holding the Yo contract.
func Default() *Registry {
	r := NewRegistry()
	_ = r.Register(ContractID, Verify)
	return r
}

// Register adds a contract. Registering the same ID twice is an error.
func (r *Registry) Register(id string, fn VerifyFunc) error {
	if id == "" || fn == nil {
		return fmt.Errorf("contract id and verify function are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.contracts[id]; ok {
		return fmt.Errorf("contract %q already registered", id)
	}
	r.contracts[id] = fn
	return nil
}

// Contracts returns the registered IDs, sorted.
func (r *Registry) Contracts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.contracts))
	for id := range r.contracts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Verify runs the verify function of every distinct contract named by the
// bundle's outputs, in output order. A bundle with no outputs is checked
// against the Yo contract, which rejects it.
func (r *Registry) Verify(b types.Bundle) error {
	ids := outputContracts(b)
	if len(ids) == 0 {
		ids = []string{ContractID}
	}
	for _, id := range ids {
		r.mu.RLock()
		fn, ok := r.contracts[id]
		r.mu.RUnlock()
		if !ok {
			return UnknownContractError{Contract: id}
		}
		if err := fn(b); err != nil {
			return err
		}
	}
	return nil
}

func outputContracts(b types.Bundle) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, o := range b.Outputs {
		if _, ok := seen[o.Contract]; ok {
			continue
		}
		seen[o.Contract] = struct{}{}
		ids = append(ids, o.Contract)
	}
	return ids
}
