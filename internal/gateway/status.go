package gateway

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/SolanceLab/garmin-mcp/internal/audit"
)

// recentLimit caps how many audit rows /status returns.
const recentLimit = 20

// StatusResponse is the JSON response for GET /status.
type StatusResponse struct {
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Authenticated bool             `json:"authenticated"`
	User          string           `json:"user,omitempty"`
	Metrics       MetricsSnapshot  `json:"metrics"`
	Outcomes      map[string]int64 `json:"outcomes,omitempty"`
	Recent        []audit.Entry    `json:"recent,omitempty"`
}

// handleStatus returns an http.HandlerFunc for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := StatusResponse{
			Version:       g.version,
			UptimeSeconds: int64(time.Since(g.startedAt).Seconds()),
			Metrics:       g.metrics.Snapshot(),
		}

		if g.sessions != nil {
			if c := g.sessions.Current(); c != nil {
				resp.Authenticated = true
				resp.User = c.DisplayName()
			}
		}

		if g.store != nil {
			outcomes, err := g.store.Counts(r.Context())
			if err != nil {
				g.logger.Error("reading outcome counts failed", "error", err)
			} else {
				resp.Outcomes = outcomes
			}

			recent, err := g.store.Recent(r.Context(), recentLimit)
			if err != nil {
				g.logger.Error("reading recent invocations failed", "error", err)
			} else {
				resp.Recent = recent
			}
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}
}
