// Package api implements the node's REST handlers. Every exported handler
// carries @Title/@Route annotations that cmd/docgen turns into the API
// reference.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"yo.mini/yo/internal/discovery"
	"yo.mini/yo/internal/docs"
	"yo.mini/yo/internal/finality"
	"yo.mini/yo/internal/flow"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/vault"
)

// Scanner finds nodes on the local network. *discovery.Scanner implements it.
type Scanner interface {
	ScanInto(ctx context.Context, sink discovery.Sink) (int, error)
}

// Config holds the collaborators of the API service.
type Config struct {
	Network     *network.Map
	Flows       *flow.Registry
	Vault       *vault.Store
	Receiver    *finality.Receiver
	Docs        *docs.Service
	Scanner     Scanner
	Logger      *logger.Logger
	FlowTimeout time.Duration
}

// Service handles API requests
type Service struct {
	network     *network.Map
	flows       *flow.Registry
	vault       *vault.Store
	receiver    *finality.Receiver
	docs        *docs.Service
	scanner     Scanner
	logger      *logger.Logger
	flowTimeout time.Duration
}

// NewService creates a new API service
func NewService(cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logger.New(100)
	}
	if cfg.FlowTimeout <= 0 {
		cfg.FlowTimeout = 30 * time.Second
	}
	return &Service{
		network:     cfg.Network,
		flows:       cfg.Flows,
		vault:       cfg.Vault,
		receiver:    cfg.Receiver,
		docs:        cfg.Docs,
		scanner:     cfg.Scanner,
		logger:      cfg.Logger,
		flowTimeout: cfg.FlowTimeout,
	}
}

// Routes registers every API route on r.
func (s *Service) Routes(r chi.Router) {
	r.Get("/api/health", s.HandleHealth)
	r.Get("/api/version", s.HandleVersion)
	r.Get("/api/logs", s.HandleLogs)
	r.Get("/api/docs", s.HandleDocsList)
	r.Get("/api/docs/{name}", s.HandleDoc)
	r.Get("/api/flows", s.HandleFlows)

	r.Get("/api/yo/yo", s.HandleYo)
	r.Get("/api/yo/yos", s.HandleYos)
	r.Get("/api/yo/me", s.HandleMe)
	r.Get("/api/yo/peers", s.HandlePeers)
	r.Post(finality.ReceivePath, s.HandleReceive)

	r.Post("/api/vault/backup", s.HandleVaultBackup)
	r.Post("/api/discovery/scan", s.HandleDiscoveryScan)
}

// writeJSON writes a JSON response
func (s *Service) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response
func (s *Service) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
