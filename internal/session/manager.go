// Package session owns the process-wide Garmin session: one authenticated
// client shared by every tool handler, acquired through a two-tier fallback
// (saved tokens first, then configured credentials).
package session

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"

	"github.com/SolanceLab/garmin-mcp/internal/garmin"
)

// ErrNotAuthenticated is returned by Session when no authentication tier
// produced a usable client. The message tells the caller how to fix it.
var ErrNotAuthenticated = errors.New("not authenticated with Garmin Connect: run 'garmin-mcp login' or set GARMIN_EMAIL and GARMIN_PASSWORD")

// Config carries everything the fallback tiers need.
type Config struct {
	// Email and Password feed the credential tier. Both must be set for
	// the tier to run; a partial pair is treated as unconfigured.
	Email    string
	Password string

	// TokenStore is the directory holding the persisted token pair. Its
	// presence on disk is the sole signal to attempt token authentication.
	TokenStore string

	// ClientOptions are applied to every client the manager constructs.
	ClientOptions []garmin.Option
}

// Manager resolves and caches the single process-wide session. The first
// successful acquisition wins; later calls return the cached client without
// re-validation. Acquisition is serialized so concurrent first calls cannot
// both log in or race on the token store.
type Manager struct {
	cfg    Config
	logger *slog.Logger

	newClient func() *garmin.Client
	resume    func(ctx context.Context, c *garmin.Client, dir string) error
	login     func(ctx context.Context, c *garmin.Client, email, password string) error
	persist   func(c *garmin.Client, dir string) error

	mu     sync.Mutex
	client *garmin.Client
}

// New constructs a Manager. The logger may be nil.
func New(cfg Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger,
		newClient: func() *garmin.Client {
			return garmin.NewClient(cfg.ClientOptions...)
		},
		resume: func(ctx context.Context, c *garmin.Client, dir string) error {
			return c.Resume(ctx, dir)
		},
		login: func(ctx context.Context, c *garmin.Client, email, password string) error {
			return c.Login(ctx, email, password)
		},
		persist: func(c *garmin.Client, dir string) error {
			return c.DumpTokens(dir)
		},
	}
}

// Acquire returns the cached session, or tries to establish one: saved
// tokens first, credentials second. It never returns an error; both tiers
// failing yields nil and the details land in the log. Safe for concurrent
// use; a second caller blocks until the first acquisition settles.
func (m *Manager) Acquire(ctx context.Context) *garmin.Client {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.client != nil {
		return m.client
	}

	if c := m.tryTokens(ctx); c != nil {
		m.client = c
		return c
	}
	if c := m.tryCredentials(ctx); c != nil {
		m.client = c
		return c
	}

	m.logger.Error("no authentication method available",
		"token_store", m.cfg.TokenStore,
		"credentials_configured", m.cfg.Email != "" && m.cfg.Password != "")
	return nil
}

// Session returns the cached or freshly acquired session, or
// ErrNotAuthenticated when neither tier can produce one.
func (m *Manager) Session(ctx context.Context) (*garmin.Client, error) {
	if c := m.Acquire(ctx); c != nil {
		return c, nil
	}
	return nil, ErrNotAuthenticated
}

// Current returns the cached session without attempting acquisition.
// Nil means no session has been established yet.
func (m *Manager) Current() *garmin.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.client
}

// Reset drops the cached session. The next Acquire starts from scratch.
func (m *Manager) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.client = nil
}

// tryTokens attempts the token tier. Any failure, including a failed
// persist of the refreshed pair, fails the whole tier so the credential
// tier gets its turn.
func (m *Manager) tryTokens(ctx context.Context) *garmin.Client {
	if m.cfg.TokenStore == "" {
		return nil
	}
	if _, err := os.Stat(m.cfg.TokenStore); err != nil {
		m.logger.Debug("token store not present", "path", m.cfg.TokenStore)
		return nil
	}

	c := m.newClient()
	if err := m.resume(ctx, c, m.cfg.TokenStore); err != nil {
		m.logger.Warn("token authentication failed", "error", err)
		return nil
	}
	// Persist immediately: the resume may have minted a fresh bearer, and
	// the next process should not have to repeat the exchange.
	if err := m.persist(c, m.cfg.TokenStore); err != nil {
		m.logger.Warn("persisting refreshed tokens failed", "error", err)
		return nil
	}

	m.logger.Info("authenticated via saved tokens", "user", c.DisplayName())
	return c
}

// tryCredentials attempts the credential tier. Missing email or password
// means the tier is unconfigured; no remote call is made.
func (m *Manager) tryCredentials(ctx context.Context) *garmin.Client {
	if m.cfg.Email == "" || m.cfg.Password == "" {
		m.logger.Debug("credentials not configured")
		return nil
	}

	c := m.newClient()
	if err := m.login(ctx, c, m.cfg.Email, m.cfg.Password); err != nil {
		m.logger.Warn("credential authentication failed", "error", err)
		return nil
	}
	if m.cfg.TokenStore != "" {
		if err := m.persist(c, m.cfg.TokenStore); err != nil {
			m.logger.Warn("persisting tokens failed", "error", err)
			return nil
		}
	}

	m.logger.Info("authenticated via email and password", "user", c.DisplayName())
	return c
}
