// Package node assembles a yo node from its configuration: identity,
// network map, vault, notary, finality, flows and the web server.
package node

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"time"

	"yo.mini/yo/internal/api"
	"yo.mini/yo/internal/config"
	"yo.mini/yo/internal/contract"
	"yo.mini/yo/internal/discovery"
	"yo.mini/yo/internal/docs"
	"yo.mini/yo/internal/finality"
	"yo.mini/yo/internal/flow"
	"yo.mini/yo/internal/identity"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/notary"
	"yo.mini/yo/internal/telemetry"
	"yo.mini/yo/internal/types"
	"yo.mini/yo/internal/vault"
	"yo.mini/yo/internal/web"
)

// Node is a running yo participant.
type Node struct {
	cfg       *config.Config
	identity  *identity.Identity
	network   *network.Map
	vault     *vault.Store
	notary    notary.Notariser
	flows     *flow.Registry
	events    chan flow.Event
	web       *web.Server
	mdns      *discovery.DiscoveryService
	logger    *logger.Logger
	telemetry func(context.Context) error
}

// setupTelemetry is replaced in tests.
var setupTelemetry = telemetry.Setup

// New builds a node from cfg. Nothing listens until Start or Serve.
func New(ctx context.Context, cfg *config.Config) (_ *Node, err error) {
	l := logger.New(cfg.LogBuffer)
	l.SetMirror(log.New(os.Stderr, "["+cfg.Name+"] ", log.LstdFlags))

	shutdownTelemetry, err := setupTelemetry(ctx, "yo-"+cfg.Name, cfg.OTelEndpoint)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	defer func() {
		if err != nil {
			shutdownTelemetry(context.Background())
		}
	}()

	id, err := identity.LoadOrCreateIdentity(cfg.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("identity: %w", err)
	}
	me := id.Party(cfg.Name)
	l.Infof("Node %s key fingerprint %s", me.Name, id.Fingerprint())

	m := network.NewMap(network.Node{Party: me, Address: cfg.AdvertiseAddr, Notary: cfg.Notary})
	for _, p := range cfg.Peers {
		if err := m.Add(network.Node{
			Party:   types.Party{Name: p.Name, OwningKey: p.Key},
			Address: p.Address,
			Notary:  p.Notary,
		}); err != nil {
			return nil, fmt.Errorf("peer %s: %w", p.Name, err)
		}
	}
	if cfg.NotaryURL != "" {
		if err := addRemoteNotary(ctx, m, cfg.NotaryURL); err != nil {
			l.Warningf("Notary at %s is not reachable yet: %v", cfg.NotaryURL, err)
		}
	}

	store, err := vault.NewStore(cfg.DBFile)
	if err != nil {
		return nil, fmt.Errorf("vault: %w", err)
	}
	defer func() {
		if err != nil {
			store.Close()
		}
	}()

	contracts := contract.Default()

	var n notary.Notariser
	if cfg.Notary {
		n = notary.NewService(id, me, contracts, l)
	} else {
		n = notary.NewNetworkClient(m, nil)
	}

	finalizer := finality.NewFinalizer(n, store, finality.NewHTTPDistributor(m, nil), l)
	receiver := finality.NewReceiver(me, m, contracts, store, l)

	events := make(chan flow.Event, 64)
	yoFlow := flow.NewYoFlow(flow.YoConfig{
		Me:        me,
		Signer:    id,
		Notaries:  notaryPreference{network: m, name: cfg.NotaryName},
		Verifier:  contracts,
		Finalizer: finalizer,
		Events:    events,
		Logger:    l,
	})
	flows := flow.NewRegistry()
	if err := flows.Register(flow.YoFlowName, flow.YoHandler(yoFlow)); err != nil {
		return nil, err
	}

	apiService := api.NewService(api.Config{
		Network:     m,
		Flows:       flows,
		Vault:       store,
		Receiver:    receiver,
		Docs:        docs.NewService(docs.Content()),
		Scanner:     discovery.NewScanner(cfg.Port, ""),
		Logger:      l,
		FlowTimeout: cfg.FlowTimeout,
	})

	webCfg := web.Config{
		Addr:    cfg.ListenAddr(),
		API:     apiService,
		Network: m,
		Vault:   store,
		Logger:  l,
	}
	if cfg.Notary {
		webCfg.Notary = n
	}
	server, err := web.NewServer(webCfg)
	if err != nil {
		return nil, err
	}

	return &Node{
		cfg:       cfg,
		identity:  id,
		network:   m,
		vault:     store,
		notary:    n,
		flows:     flows,
		events:    events,
		web:       server,
		logger:    l,
		telemetry: shutdownTelemetry,
	}, nil
}

// addRemoteNotary asks the node behind url who it is and records it as a
// notary.
func addRemoteNotary(ctx context.Context, m *network.Map, url string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	n, err := discovery.ProbeAddress(ctx, &http.Client{Timeout: 5 * time.Second}, url)
	if err != nil {
		return err
	}
	n.Notary = true
	return m.Add(n)
}

type notaryPreference struct {
	network *network.Map
	name    string
}

func (p notaryPreference) Notary() (network.Node, error) {
	return p.network.PreferredNotary(p.name)
}

// Start serves on the configured port and, when enabled, announces the node
// over mDNS.
func (n *Node) Start() <-chan error {
	errCh := n.web.Start()
	n.startDiscovery(n.cfg.Port)
	return errCh
}

// Serve is Start on an existing listener.
func (n *Node) Serve(ln net.Listener) <-chan error {
	errCh := n.web.Serve(ln)
	port := n.cfg.Port
	if addr, ok := ln.Addr().(*net.TCPAddr); ok {
		port = addr.Port
	}
	n.startDiscovery(port)
	return errCh
}

func (n *Node) startDiscovery(port int) {
	if !n.cfg.EnableMDNS {
		return
	}
	svc, err := discovery.NewDiscoveryService(n.cfg.MDNSServiceName, n.network)
	if err != nil {
		n.logger.Warningf("mDNS discovery unavailable: %v", err)
		return
	}
	if err := svc.Start(discovery.Announcement{
		Name:   n.cfg.Name,
		Key:    n.identity.PublicKeyHex(),
		Notary: n.cfg.Notary,
		Port:   port,
	}); err != nil {
		n.logger.Warningf("mDNS announce failed: %v", err)
		return
	}
	n.mdns = svc
}

// Close stops the server and discovery and releases the vault.
func (n *Node) Close(ctx context.Context) error {
	if n.mdns != nil {
		n.mdns.Stop()
	}
	var errs []error
	if err := n.web.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("web: %w", err))
	}
	if err := n.vault.Close(); err != nil {
		errs = append(errs, fmt.Errorf("vault: %w", err))
	}
	if err := n.telemetry(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}
	return errors.Join(errs...)
}

// Party is the node's identity on the ledger.
func (n *Node) Party() types.Party { return n.network.Self().Party }

func (n *Node) Network() *network.Map { return n.network }

func (n *Node) Vault() *vault.Store { return n.vault }

func (n *Node) Flows() *flow.Registry { return n.flows }

func (n *Node) Logger() *logger.Logger { return n.logger }

func (n *Node) Handler() http.Handler { return n.web.Handler() }

// Events receives the phase transitions of every Yo flow the node runs.
// Events are dropped while nobody reads.
func (n *Node) Events() <-chan flow.Event { return n.events }
