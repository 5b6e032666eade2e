package gateway

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/SolanceLab/garmin-mcp/internal/garmin"
)

func TestHealth_NoSessionSource(t *testing.T) {
	t.Parallel()

	g := New(Config{}, nil, nil, "test", testLogger())
	g.startedAt = time.Now()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if resp.Authenticated {
		t.Error("authenticated = true without a session source")
	}
}

func TestHealth_Authenticated(t *testing.T) {
	t.Parallel()

	g := New(Config{}, fakeSessions{client: garmin.NewClient()}, nil, "test", testLogger())
	g.startedAt = time.Now()
	g.metrics.ObserveInvocation(invocation("get_steps", "success", 10*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "ok" {
		t.Errorf("status = %q, want %q", resp.Status, "ok")
	}
	if !resp.Authenticated {
		t.Error("authenticated = false with a live session")
	}
	if resp.Invocations.Total != 1 {
		t.Errorf("invocations = %d, want 1", resp.Invocations.Total)
	}
}

func TestHealth_DegradedWithoutSession(t *testing.T) {
	t.Parallel()

	g := New(Config{}, fakeSessions{}, nil, "test", testLogger())
	g.startedAt = time.Now()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	g.handleHealth().ServeHTTP(rr, req)

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rr.Code, http.StatusServiceUnavailable)
	}

	var resp HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != "degraded" {
		t.Errorf("status = %q, want %q", resp.Status, "degraded")
	}
	if resp.Authenticated {
		t.Error("authenticated = true without a session")
	}
}
