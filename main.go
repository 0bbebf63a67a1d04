// Package main is the entry point for a yo node. It loads the configuration,
// assembles the node and serves until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"yo.mini/yo/internal/config"
	"yo.mini/yo/internal/node"
	"yo.mini/yo/internal/types"
)

func main() {
	configPath := flag.String("config", os.Getenv("YO_CONFIG"), "Path to the YAML config file")
	flag.Parse()

	log.Printf("yo %s (%s) starting...", types.Version, types.BuildTime)

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := ensurePortAvailable(cfg.ListenAddr()); err != nil {
		log.Fatalf("Port %d unavailable: %v", cfg.Port, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	n, err := node.New(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize node: %v", err)
	}

	serverErrors := n.Start()
	log.Printf("Node %s available at http://localhost:%d", cfg.Name, cfg.Port)

	select {
	case err := <-serverErrors:
		if err != nil {
			log.Printf("Web server exited: %v", err)
		}
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := n.Close(shutdownCtx); err != nil {
		log.Printf("Shutdown: %v", err)
	}
}

func ensurePortAvailable(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return listener.Close()
}
