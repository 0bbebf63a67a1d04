package flow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"yo.mini/yo/internal/finality"
	"yo.mini/yo/internal/types"
)

var ErrUnknownFlow = errors.New("unknown flow")

// UnknownFlowError reports a flow name nothing was registered under.
type UnknownFlowError struct {
	Name string
}

func (e UnknownFlowError) Error() string {
	return fmt.Sprintf("no flow registered as %q", e.Name)
}

func (e UnknownFlowError) Is(target error) bool {
	return target == ErrUnknownFlow
}

// Args are the inputs a flow is started with.
type Args struct {
	Target types.Party
}

// Handler runs one flow to completion.
type Handler func(ctx context.Context, args Args) (*finality.Record, error)

// Registry maps flow names to handlers. It is filled at startup.
type Registry struct {
	mu    sync.RWMutex
	flows map[string]Handler
}

func NewRegistry() *Registry {
	return &Registry{flows: make(map[string]Handler)}
}

// Register adds a flow. Names are unique.
func (r *Registry) Register(name string, h Handler) error {
	if name == "" || h == nil {
		return errors.New("flow needs a name and a handler")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.flows[name]; ok {
		return fmt.Errorf("flow %q already registered", name)
	}
	r.flows[name] = h
	return nil
}

// Flows lists the registered names, sorted.
func (r *Registry) Flows() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.flows))
	for name := range r.flows {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Start runs the named flow.
func (r *Registry) Start(ctx context.Context, name string, args Args) (*finality.Record, error) {
	r.mu.RLock()
	h, ok := r.flows[name]
	r.mu.RUnlock()
	if !ok {
		return nil, UnknownFlowError{Name: name}
	}
	return h(ctx, args)
}

// YoHandler adapts a YoFlow to the registry.
func YoHandler(f *YoFlow) Handler {
	return func(ctx context.Context, args Args) (*finality.Record, error) {
		return f.Run(ctx, args.Target)
	}
}
