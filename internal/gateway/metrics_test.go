package gateway

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMetrics_Snapshot(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveInvocation(invocation("get_steps", "success", 10*time.Millisecond))
	m.ObserveInvocation(invocation("get_steps", "success", 30*time.Millisecond))
	m.ObserveInvocation(invocation("get_sleep_data", "remote", 20*time.Millisecond))

	snap := m.Snapshot()
	if snap.Total != 3 {
		t.Errorf("total = %d, want 3", snap.Total)
	}
	if snap.Failures != 1 {
		t.Errorf("failures = %d, want 1", snap.Failures)
	}
	if snap.AvgLatency != 20*time.Millisecond {
		t.Errorf("avg latency = %v, want 20ms", snap.AvgLatency)
	}
}

func TestMetrics_EmptySnapshot(t *testing.T) {
	t.Parallel()

	snap := NewMetrics().Snapshot()
	if snap.Total != 0 || snap.Failures != 0 || snap.AvgLatency != 0 {
		t.Errorf("snapshot = %+v, want zeros", snap)
	}
}

func TestMetrics_Exposition(t *testing.T) {
	t.Parallel()

	m := NewMetrics()
	m.ObserveInvocation(invocation("get_steps", "success", 10*time.Millisecond))
	m.ObserveInvocation(invocation("get_steps", "success", 30*time.Millisecond))
	m.ObserveInvocation(invocation("get_sleep_data", "remote", 20*time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rr.Code, http.StatusOK)
	}

	body := rr.Body.String()
	for _, want := range []string{
		`garmin_mcp_tool_invocations_total{outcome="success",tool="get_steps"} 2`,
		`garmin_mcp_tool_invocations_total{outcome="remote",tool="get_sleep_data"} 1`,
		`garmin_mcp_tool_duration_seconds_count{tool="get_steps"} 2`,
	} {
		if !strings.Contains(body, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
