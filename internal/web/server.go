// Package web serves a yo node over HTTP: the REST API, the notary RPC
// endpoint when the node is a notary, websocket feeds and a small page for
// sending Yos from a browser.
package web

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"yo.mini/yo/internal/api"
	"yo.mini/yo/internal/logger"
	"yo.mini/yo/internal/network"
	"yo.mini/yo/internal/notary"
	"yo.mini/yo/internal/types"
	"yo.mini/yo/internal/vault"
)

// TemplateData holds the data to be passed to the HTML template.
type TemplateData struct {
	Me             string
	Peers          []string
	Notary         bool
	CurrentVersion string
	BuildTime      string
}

// Config holds the collaborators of the web server.
type Config struct {
	Addr    string
	API     *api.Service
	Network *network.Map
	Vault   *vault.Store
	Logger  *logger.Logger

	// Notary is served on /rpc when set.
	Notary notary.Notariser
}

// Server is the web server for the page, the API and the websockets.
type Server struct {
	addr      string
	api       *api.Service
	network   *network.Map
	vault     *vault.Store
	notary    notary.Notariser
	templates *template.Template
	logger    *logger.Logger
	http      *http.Server
}

// NewServer creates a new web server.
func NewServer(cfg Config) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.New(200)
	}

	s := &Server{
		addr:      cfg.Addr,
		api:       cfg.API,
		network:   cfg.Network,
		vault:     cfg.Vault,
		notary:    cfg.Notary,
		templates: templates,
		logger:    cfg.Logger,
	}
	s.http = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the full route tree, traced with otelhttp.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handlePageLoad)
	s.api.Routes(r)
	if s.notary != nil {
		r.Handle(notary.RPCPath, notary.NewHandler(s.notary))
	}

	r.Get("/ws/yos", s.handleYosWS)
	r.Get("/ws/status", s.handleStatusWS)

	return otelhttp.NewHandler(r, "yo",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}

// Start runs the server in the background. The channel receives the error
// that stopped it, or is closed after a clean Shutdown.
func (s *Server) Start() <-chan error {
	log.Printf("Web UI: Starting page and API server on %s", s.addr)

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ln net.Listener) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

// Shutdown stops accepting requests and waits for active ones.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func (s *Server) handlePageLoad(w http.ResponseWriter, r *http.Request) {
	peers := s.network.Peers()
	names := make([]string, 0, len(peers))
	for _, p := range peers {
		if !p.Notary {
			names = append(names, p.Party.Name)
		}
	}
	self := s.network.Self()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	s.setCacheHeaders(w)
	err := s.templates.ExecuteTemplate(w, "index.html", TemplateData{
		Me:             self.Party.Name,
		Peers:          names,
		Notary:         self.Notary,
		CurrentVersion: types.Version,
		BuildTime:      types.BuildTime,
	})
	if err != nil {
		log.Printf("Error executing index template: %s", err)
		http.Error(w, "Failed to render page", http.StatusInternalServerError)
	}
}

// setCacheHeaders sets cache-busting headers to prevent browser caching.
func (s *Server) setCacheHeaders(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Expires", "0")
}
