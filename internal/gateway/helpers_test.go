package gateway

import (
	"bytes"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/SolanceLab/garmin-mcp/internal/audit"
	"github.com/SolanceLab/garmin-mcp/internal/garmin"
	"github.com/SolanceLab/garmin-mcp/internal/tools"
)

// fakeSessions reports a fixed current client.
type fakeSessions struct {
	client *garmin.Client
}

func (f fakeSessions) Current() *garmin.Client { return f.client }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

// openTestStore opens an audit store under a temp dir.
func openTestStore(t *testing.T) *audit.Store {
	t.Helper()
	store, err := audit.Open(filepath.Join(t.TempDir(), "audit.db"), testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// invocation builds a completed invocation for observer tests.
func invocation(tool, outcome string, d time.Duration) tools.Invocation {
	inv := tools.Invocation{
		ID:       uuid.NewString(),
		Time:     time.Now(),
		Tool:     tool,
		Outcome:  outcome,
		Duration: d,
	}
	if outcome != "success" {
		inv.Error = "boom"
	}
	return inv
}

// freeAddr returns a free TCP address on localhost.
func freeAddr(t *testing.T) string {
	t.Helper()
	var lc net.ListenConfig
	ln, err := lc.Listen(t.Context(), "tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := ln.Addr().String()
	if err := ln.Close(); err != nil {
		t.Fatal(err)
	}
	return addr
}

// doGet makes a GET request with context.
func doGet(t *testing.T, url string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

// doGetWithBearer makes a GET request with a bearer token.
func doGetWithBearer(t *testing.T, url, token string) *http.Response {
	t.Helper()
	req, err := http.NewRequestWithContext(t.Context(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	return resp
}

func newTestGateway(t *testing.T, addr string, auth AuthConfig) *Gateway {
	t.Helper()
	cfg := Config{
		Bind:            addr,
		Auth:            auth,
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    5 * time.Second,
		ShutdownTimeout: 2 * time.Second,
	}
	return New(cfg, nil, nil, "test", testLogger())
}
