// Package gateway runs the optional operations HTTP server: liveness and
// status endpoints, Prometheus metrics and a live invocation event stream.
// It observes the tool layer; nothing on the tool path depends on it.
package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/SolanceLab/garmin-mcp/internal/audit"
	"github.com/SolanceLab/garmin-mcp/internal/garmin"
)

// Sessions is the view of the session layer the gateway reports on.
// session.Manager implements it.
type Sessions interface {
	Current() *garmin.Client
}

// Gateway is the operations HTTP server.
type Gateway struct {
	cfg      Config
	logger   *slog.Logger
	version  string
	sessions Sessions
	store    *audit.Store
	metrics  *Metrics
	events   *EventHub

	server    *http.Server
	addr      net.Addr
	startedAt time.Time
}

// New builds a gateway around the given session source and audit store.
// Either may be nil; the affected response fields degrade gracefully.
func New(cfg Config, sessions Sessions, store *audit.Store, version string, logger *slog.Logger) *Gateway {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		cfg:      cfg,
		logger:   logger,
		version:  version,
		sessions: sessions,
		store:    store,
		metrics:  NewMetrics(),
		events:   NewEventHub(logger),
	}
}

// Metrics returns the invocation metrics sink, for wiring as a tool observer.
func (g *Gateway) Metrics() *Metrics { return g.metrics }

// Events returns the live event hub, for wiring as a tool observer.
func (g *Gateway) Events() *EventHub { return g.events }

// Start binds the listener and serves in the background.
func (g *Gateway) Start() error {
	g.startedAt = time.Now()

	g.server = &http.Server{
		Addr:         g.cfg.Bind,
		Handler:      g.buildRouter(),
		ReadTimeout:  g.cfg.ReadTimeout,
		WriteTimeout: g.cfg.WriteTimeout,
	}

	var lc net.ListenConfig
	ln, err := lc.Listen(context.Background(), "tcp", g.cfg.Bind)
	if err != nil {
		return errors.New("gateway: listen failed: " + err.Error())
	}
	g.addr = ln.Addr()

	go func() {
		g.logger.Info("gateway listening", "addr", g.addr.String())
		if err := g.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			g.logger.Error("gateway serve error", "error", err)
		}
	}()

	return nil
}

// Addr returns the bound listen address, or nil before Start.
func (g *Gateway) Addr() net.Addr { return g.addr }

// Stop shuts the server down gracefully within the configured timeout.
func (g *Gateway) Stop(ctx context.Context) error {
	if g.server == nil {
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, g.cfg.ShutdownTimeout)
	defer cancel()

	g.logger.Info("gateway shutting down")
	return g.server.Shutdown(shutdownCtx)
}
