package api

import (
	"net/http"

	"github.com/okian/ctfboard/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatsProvider reports service statistics.
type StatsProvider interface {
	GetStats() map[string]any
}

type healthResponse struct {
	Status  string `json:"status"`
	Started bool   `json:"started"`
}

// OpsHandler serves the operational endpoints: health, stats and metrics.
type OpsHandler struct {
	stats StatsProvider
}

func NewOpsHandler(stats StatsProvider) *OpsHandler {
	return &OpsHandler{stats: stats}
}

// HandleHealth handles GET /healthz. The process is healthy once it
// answers; started tells whether refresh workers are running.
func (h *OpsHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	started, _ := h.stats.GetStats()["started"].(bool)
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok", Started: started})
}

// HandleStats handles GET /stats.
func (h *OpsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.stats.GetStats())
}

// Metrics serves the Prometheus registry.
func (h *OpsHandler) Metrics() http.Handler {
	return promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{})
}
