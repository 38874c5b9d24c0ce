package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	runCtx := RunContext(h.logger, h.status)
	chain := Chain(runCtx, Recovery(), Logging())

	// Health и metrics не логируются: их опрашивают часто.
	mux.Handle("GET /healthz", Chain(runCtx, Recovery())(http.HandlerFunc(h.Health)))
	if h.metrics != nil {
		mux.Handle("GET /metrics", h.metrics)
	}

	mux.Handle("GET /api/v1/status", chain(http.HandlerFunc(h.GetStatus)))
	mux.Handle("GET /api/v1/states", chain(http.HandlerFunc(h.ListStates)))
	mux.Handle("GET /api/v1/history", chain(http.HandlerFunc(h.ListHistory)))
	mux.Handle("POST /api/v1/stop", chain(http.HandlerFunc(h.Stop)))
}
