package handler

import "net/http"

// handleHealth answers as long as the process serves requests.
func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, r, http.StatusOK, HealthStatus{Status: "ok"})
}

// handleReady reports whether the store answers queries.
func (h *Handler) handleReady(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.logger.Warn("readiness check failed", "error", err)
		h.writeError(w, r, http.StatusServiceUnavailable, "SN-SYS-5030", "store unavailable")
		return
	}
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusServiceUnavailable, "SN-SYS-5030", "store unavailable")
		return
	}
	h.writeJSON(w, r, http.StatusOK, HealthStatus{Status: "ready", Engine: stats.Engine, Snapshots: n})
}
