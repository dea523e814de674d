// internal/handlers/server.go
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/catchphrase/internal/game"
	"github.com/jason-s-yu/catchphrase/internal/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every HTTP endpoint. store may be nil when no database
// is configured; the history endpoints then answer 503.
func NewRouter(logger *logrus.Logger, reg *game.Registry, store HistoryStore) http.Handler {
	mux := http.NewServeMux()
	logged := middleware.LogMiddleware(logger)

	// websocket
	mux.Handle("GET /ws", logged(WSHandler(logger, reg)))

	// rest
	mux.Handle("GET /groups", logged(ListGroupsHandler(reg)))
	mux.Handle("GET /history", logged(ListHistoryHandler(logger, store)))
	mux.Handle("GET /history/{id}", logged(GetHistoryHandler(logger, store)))

	// probes
	mux.HandleFunc("GET /healthz", HealthHandler)
	mux.Handle("GET /metrics", promhttp.Handler())

	return mux
}
