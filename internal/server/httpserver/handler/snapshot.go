package handler

import (
	"io"
	"net/http"
	"slices"
	"strconv"

	"github.com/yndnr/trajsnap/internal/core/document"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
	"github.com/yndnr/trajsnap/internal/storage"
)

// handleListSnapshots lists stored records. Query parameters:
// type filters by type name, forward=true hides reversed records.
func (h *Handler) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	forward := false
	if v := q.Get("forward"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, "SN-ARG-1001", "forward must be a boolean")
			return
		}
		forward = b
	}
	typeName := q.Get("type")

	infos, err := h.store.List(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	infos = slices.DeleteFunc(infos, func(info storage.Info) bool {
		return (typeName != "" && info.Type != typeName) || (forward && info.Reversed)
	})
	if infos == nil {
		infos = []storage.Info{}
	}
	h.writeJSON(w, r, http.StatusOK, SnapshotList{Items: infos, Total: len(infos)})
}

// handleCreateSnapshot stores the snapshot described by a YAML or JSON
// document body and returns it with its assigned ID.
func (h *Handler) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxDocumentBytes))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	doc, err := document.Parse(data)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	snap, err := doc.Build(h.types)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	tok, err := h.store.Save(r.Context(), snap)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.logger.Info("snapshot created", "id", tok.String(), "type", doc.Type)
	w.Header().Set("Location", "/v1/snapshots/"+tok.String())
	h.writeSnapshot(w, r, http.StatusCreated, snap)
}

func (h *Handler) handleGetSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadPath(w, r)
	if !ok {
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, snap)
}

// handleReversed returns the reversal partner of a stored snapshot.
func (h *Handler) handleReversed(w http.ResponseWriter, r *http.Request) {
	snap, ok := h.loadPath(w, r)
	if !ok {
		return
	}
	partner, err := snap.Reversed(r.Context())
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeSnapshot(w, r, http.StatusOK, partner)
}

func (h *Handler) handleEqual(w http.ResponseWriter, r *http.Request) {
	first, err := pathToken(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	second, err := pathToken(r, "other")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	cmp, err := h.store.Compare(r.Context(), first, second)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, http.StatusOK, EqualResult{
		First:      first.String(),
		Second:     second.String(),
		Comparison: cmp,
	})
}

// handleDeleteSnapshot removes a snapshot and its partner.
func (h *Handler) handleDeleteSnapshot(w http.ResponseWriter, r *http.Request) {
	tok, err := pathToken(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	if err := h.store.Delete(r.Context(), tok); err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.logger.Info("snapshot deleted", "id", tok.String())
	w.WriteHeader(http.StatusNoContent)
}

// loadPath loads the snapshot named by the id path segment, writing the
// error response itself when it fails.
func (h *Handler) loadPath(w http.ResponseWriter, r *http.Request) (*snapshot.Snapshot, bool) {
	tok, err := pathToken(r, "id")
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	snap, err := h.store.Load(r.Context(), tok)
	if err != nil {
		h.handleServiceError(w, r, err)
		return nil, false
	}
	return snap, true
}

func (h *Handler) writeSnapshot(w http.ResponseWriter, r *http.Request, status int, snap *snapshot.Snapshot) {
	doc, err := document.FromSnapshot(snap)
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	h.writeJSON(w, r, status, doc)
}
