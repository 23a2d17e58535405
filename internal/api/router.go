package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"example.com/prayer/internal/auth"
)

// NewRouter registers every route plus /metrics and guards the admin routes with bearer auth.
func NewRouter(h *Handler, authCfg auth.Config) http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(authCfg, auth.AdminOnly(AdminPrefix, SessionPath))
	return authMiddleware.Wrap(mux)
}
