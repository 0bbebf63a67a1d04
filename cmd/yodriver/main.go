// Command yodriver runs a Controller notary and two nodes, NodeA and NodeB,
// in one process for local development. Keys and vaults live under -dir.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"yo.mini/yo/internal/config"
	"yo.mini/yo/internal/identity"
	"yo.mini/yo/internal/node"
)

type nodeSpec struct {
	name   string
	port   int
	notary bool
}

var defaultNodes = []nodeSpec{
	{name: "Controller", port: 10004, notary: true},
	{name: "NodeA", port: 10007},
	{name: "NodeB", port: 10010},
}

func main() {
	dir := flag.String("dir", "build/nodes", "Directory for node keys and vaults")
	flag.Parse()

	configs, err := buildConfigs(*dir, defaultNodes)
	if err != nil {
		log.Fatalf("Failed to prepare nodes: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var nodes []*node.Node
	errs := make(chan error, len(configs))
	for _, cfg := range configs {
		n, err := node.New(ctx, cfg)
		if err != nil {
			log.Fatalf("Failed to start %s: %v", cfg.Name, err)
		}
		nodes = append(nodes, n)
		go func(name string, ch <-chan error) {
			if err := <-ch; err != nil {
				errs <- fmt.Errorf("%s: %w", name, err)
			}
		}(cfg.Name, n.Start())
		log.Printf("%s listening on http://localhost:%d", cfg.Name, cfg.Port)
	}

	select {
	case err := <-errs:
		log.Printf("Node exited: %v", err)
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, n := range nodes {
		if err := n.Close(shutdownCtx); err != nil {
			log.Printf("Shutdown %s: %v", n.Party().Name, err)
		}
	}
}

// buildConfigs creates a key per node and configures every node with all
// the others as static peers.
func buildConfigs(dir string, specs []nodeSpec) ([]*config.Config, error) {
	peers := make([]config.PeerConfig, len(specs))
	for i, s := range specs {
		nodeDir := filepath.Join(dir, s.name)
		if err := os.MkdirAll(nodeDir, 0o755); err != nil {
			return nil, err
		}
		id, err := identity.LoadOrCreateIdentity(filepath.Join(nodeDir, "yo_key.pem"))
		if err != nil {
			return nil, err
		}
		peers[i] = config.PeerConfig{
			Name:    s.name,
			Key:     id.PublicKeyHex(),
			Address: fmt.Sprintf("http://localhost:%d", s.port),
			Notary:  s.notary,
		}
	}

	configs := make([]*config.Config, len(specs))
	for i, s := range specs {
		cfg := config.Default()
		cfg.Name = s.name
		cfg.Port = s.port
		cfg.Notary = s.notary
		cfg.KeyFile = filepath.Join(dir, s.name, "yo_key.pem")
		cfg.DBFile = filepath.Join(dir, s.name, "yo.db")
		cfg.AdvertiseAddr = peers[i].Address
		for j, p := range peers {
			if j != i {
				cfg.Peers = append(cfg.Peers, p)
			}
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", s.name, err)
		}
		configs[i] = cfg
	}
	return configs, nil
}
