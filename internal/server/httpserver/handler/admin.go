package handler

import (
	"net/http"
	"time"
)

func (h *Handler) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	n, err := h.store.Count(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, StatsResult{KVStats: stats, Snapshots: n, Cached: h.store.Cached()})
}

func (h *Handler) handleGC(w http.ResponseWriter, r *http.Request) {
	n, err := h.store.GC(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, GCResult{Reclaimed: n})
}

// handleBackup streams an unsealed dump. Once the first byte is written
// a failure can only be reported by cutting the stream short.
func (h *Handler) handleBackup(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition",
		`attachment; filename="trajsnap-`+time.Now().UTC().Format("20060102-150405")+`.dump"`)
	cw := &countingWriter{w: w}
	n, err := h.store.Backup(r.Context(), cw)
	if err != nil {
		h.logger.Error("backup stream failed", "error", err, "bytes", cw.n)
		if cw.n == 0 {
			h.handleServiceError(w, r, err)
		}
		return
	}
	h.logger.Info("backup streamed", "bytes", n)
}

type countingWriter struct {
	w http.ResponseWriter
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
