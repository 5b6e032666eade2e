package gateway

import (
	"encoding/json"
	"net/http"
	"time"
)

// HealthResponse is the JSON response for GET /health.
type HealthResponse struct {
	Status        string          `json:"status"` // "ok" or "degraded"
	Authenticated bool            `json:"authenticated"`
	UptimeSeconds int64           `json:"uptime_seconds"`
	Invocations   MetricsSnapshot `json:"invocations"`
}

// handleHealth returns an http.HandlerFunc for GET /health.
// Returns 200 while a Garmin session is held, 503 once tool calls would
// start failing as unauthenticated.
func (g *Gateway) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		resp := HealthResponse{
			Status:        "ok",
			UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
			Invocations:   g.metrics.Snapshot(),
		}

		if g.sessions != nil {
			resp.Authenticated = g.sessions.Current() != nil
			if !resp.Authenticated {
				resp.Status = "degraded"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if resp.Status == "degraded" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}
