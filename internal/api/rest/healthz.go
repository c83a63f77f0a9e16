package rest

import (
	"encoding/json"
	"net/http"
)

// HealthzHandler reports process liveness and which extractor backend is
// active. There is no database to ping: the incident store is in-process.
type HealthzHandler struct {
	openAIConfigured bool
}

// NewHealthzHandler creates a new healthz handler. openAIConfigured reflects
// whether OPENAI_API_KEY is set, which decides the active extractor.
func NewHealthzHandler(openAIConfigured bool) *HealthzHandler {
	return &HealthzHandler{openAIConfigured: openAIConfigured}
}

// Live handles GET /healthz/live - liveness probe (process is alive).
func (h *HealthzHandler) Live(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}

// Ready handles GET /health and GET /healthz/ready - readiness probe.
func (h *HealthzHandler) Ready(w http.ResponseWriter, r *http.Request) {
	extractor := "deterministic"
	if h.openAIConfigured {
		extractor = "llm"
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":    "ok",
		"extractor": extractor,
	})
}
