package main

import (
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/softnix/agentic-core/internal/config"
)

// serveMetrics exposes the process's prometheus registry on its own
// listener, separate from the agentcore API port, so scraping can be
// firewalled independently of the run-submission surface.
func serveMetrics(cfg *config.Config, logger *slog.Logger) {
	addr := cfg.MetricsAddr
	if addr == "" {
		addr = ":9090"
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("agentcore: metrics listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("agentcore: metrics server stopped", "error", err)
	}
}
