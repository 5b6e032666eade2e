package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public probes.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	// Operator endpoints, behind auth only when auth is configured.
	operator := func(r chi.Router) {
		r.Get("/status", g.handleStatus())
		r.Get("/ws/events", g.events.ServeHTTP)
	}
	if g.cfg.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(g.authMiddleware(g.cfg.Auth))
			operator(r)
		})
	} else {
		r.Group(operator)
	}

	return r
}
