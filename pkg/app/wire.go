package app

import (
	"context"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/SolanceLab/garmin-mcp/internal/audit"
	"github.com/SolanceLab/garmin-mcp/internal/config"
	"github.com/SolanceLab/garmin-mcp/internal/garmin"
	"github.com/SolanceLab/garmin-mcp/internal/gateway"
	"github.com/SolanceLab/garmin-mcp/internal/session"
	"github.com/SolanceLab/garmin-mcp/internal/tools"
)

// rateBurst is the token bucket depth used when a request rate is
// configured, matching the client's built-in default.
const rateBurst = 4

const serverInstructions = `Tools for reading Garmin Connect health data (sleep, heart rate,
stress, body battery, steps, respiration, SpO2, HRV, hydration, menstrual cycle,
activities) and for logging hydration and menstrual periods. Date parameters use
YYYY-MM-DD and default to today. Every result is JSON with a "success" flag; failures
carry an "error" message instead of data.`

// deps bundles the long-lived components behind the MCP server.
type deps struct {
	sessions *session.Manager
	tools    *tools.Service
	store    *audit.Store
	pruner   *audit.Pruner
	gw       *gateway.Gateway
}

// buildDeps constructs and starts everything the tool service depends on:
// the session manager, the optional audit store with its prune job, and the
// optional operations gateway. On error the partially started bundle is
// already stopped.
func buildDeps(cfg *config.Config, version string, logger *slog.Logger) (*deps, error) {
	d := &deps{}

	d.sessions = session.New(session.Config{
		Email:         cfg.Garmin.Email,
		Password:      cfg.Garmin.Password,
		TokenStore:    cfg.Garmin.TokenStore,
		ClientOptions: clientOptions(cfg.Garmin, logger),
	}, logger)

	opts := []tools.Option{
		tools.WithLogger(logger),
		tools.WithProfilePK(cfg.Garmin.UserProfilePK),
	}

	if cfg.Audit.Path != "" {
		store, err := audit.Open(cfg.Audit.Path, logger)
		if err != nil {
			return nil, err
		}
		d.store = store
		opts = append(opts, tools.WithObserver(store))

		d.pruner = audit.NewPruner(store, cfg.Audit.PruneSchedule, cfg.Audit.RetentionDays, logger)
		if err := d.pruner.Start(); err != nil {
			d.close(logger)
			return nil, err
		}
	}

	if cfg.Gateway.Enabled() {
		d.gw = gateway.New(cfg.Gateway, d.sessions, d.store, version, logger)
		opts = append(opts,
			tools.WithObserver(d.gw.Metrics()),
			tools.WithObserver(d.gw.Events()))
		if err := d.gw.Start(); err != nil {
			d.close(logger)
			return nil, err
		}
	}

	d.tools = tools.New(d.sessions, opts...)
	return d, nil
}

// close stops the bundle in reverse start order. Safe on a partially built
// bundle; nil members are skipped.
func (d *deps) close(logger *slog.Logger) {
	if d.gw != nil {
		if err := d.gw.Stop(context.Background()); err != nil {
			logger.Warn("gateway shutdown failed", "error", err)
		}
	}
	if d.pruner != nil {
		d.pruner.Stop()
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.Warn("closing audit store failed", "error", err)
		}
	}
}

// clientOptions translates the Garmin section of the configuration into
// client options.
func clientOptions(cfg config.GarminConfig, logger *slog.Logger) []garmin.Option {
	opts := []garmin.Option{garmin.WithLogger(logger)}
	if cfg.Timeout > 0 {
		opts = append(opts, garmin.WithTimeout(cfg.Timeout))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, garmin.WithRateLimit(cfg.RateLimit, rateBurst))
	}
	return opts
}

// newMCPServer builds the MCP server and registers all tools on it.
func newMCPServer(svc *tools.Service, version string) *server.MCPServer {
	srv := server.NewMCPServer("garmin-mcp", version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)
	svc.Register(srv)
	return srv
}
