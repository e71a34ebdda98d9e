package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
	"github.com/yndnr/trajsnap/internal/storage"
)

// maxDocumentBytes bounds the body of POST /v1/snapshots.
const maxDocumentBytes = 8 << 20

// Route is one endpoint. Admin routes change or dump the whole store.
type Route struct {
	Pattern string
	Admin   bool
	// Probe marks health checks, which skip access logging and rate
	// limiting.
	Probe   bool
	Handler http.HandlerFunc
}

// Handler serves the snapshot API over one store.
type Handler struct {
	store  *storage.Store
	types  *snapshot.Registry
	logger *slog.Logger
	mux    *http.ServeMux
}

// New creates a handler. The store must have been created with types.
func New(store *storage.Store, types *snapshot.Registry, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &Handler{
		store:  store,
		types:  types,
		logger: logger,
		mux:    http.NewServeMux(),
	}
	for _, rt := range h.Routes() {
		h.mux.HandleFunc(rt.Pattern, rt.Handler)
	}
	return h
}

// ServeHTTP routes directly, without middleware.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// Routes lists every endpoint.
func (h *Handler) Routes() []Route {
	return []Route{
		{Pattern: "GET /health", Probe: true, Handler: h.handleHealth},
		{Pattern: "GET /ready", Probe: true, Handler: h.handleReady},

		{Pattern: "GET /v1/types", Handler: h.handleListTypes},
		{Pattern: "GET /v1/types/{name}", Handler: h.handleGetType},

		{Pattern: "GET /v1/snapshots", Handler: h.handleListSnapshots},
		{Pattern: "POST /v1/snapshots", Handler: h.handleCreateSnapshot},
		{Pattern: "GET /v1/snapshots/{id}", Handler: h.handleGetSnapshot},
		{Pattern: "GET /v1/snapshots/{id}/reversed", Handler: h.handleReversed},
		{Pattern: "GET /v1/snapshots/{id}/equal/{other}", Handler: h.handleEqual},
		{Pattern: "DELETE /v1/snapshots/{id}", Handler: h.handleDeleteSnapshot},

		{Pattern: "GET /v1/admin/stats", Admin: true, Handler: h.handleStats},
		{Pattern: "POST /v1/admin/gc", Admin: true, Handler: h.handleGC},
		{Pattern: "GET /v1/admin/backup", Admin: true, Handler: h.handleBackup},
	}
}

// writeJSON writes data inside the success envelope.
func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(NewResponse(requestID(r), data)); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// writeError writes the error envelope.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Error-Code", code)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(NewErrorResponse(requestID(r), code, message))
}

// handleServiceError converts store and domain errors to responses.
func (h *Handler) handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "SN-ARG-4130", "document too large")
		return
	}
	if code := domain.GetErrorCode(err); code != "" {
		status := errorCodeToHTTPStatus(code)
		if status >= http.StatusInternalServerError {
			h.logger.Error("request failed", "error", err, "code", code)
		}
		h.writeError(w, r, status, code, err.Error())
		return
	}
	if errors.Is(err, storage.ErrBusy) {
		h.writeError(w, r, http.StatusServiceUnavailable, "SN-STOR-5030", "storage busy")
		return
	}

	h.logger.Error("internal error", "error", err)
	h.writeError(w, r, http.StatusInternalServerError, "SN-SYS-5000", "internal server error")
}

// errorCodeToHTTPStatus maps the numeric part of a code such as
// SN-STOR-4040 to a status.
func errorCodeToHTTPStatus(code string) int {
	n, err := strconv.Atoi(code[strings.LastIndexByte(code, '-')+1:])
	switch {
	case err != nil:
		return http.StatusInternalServerError
	case n >= 4040 && n < 4050:
		return http.StatusNotFound
	case n >= 4090 && n < 4100:
		return http.StatusConflict
	case n >= 4220 && n < 4230:
		return http.StatusUnprocessableEntity
	case n >= 4290 && n < 4300:
		return http.StatusTooManyRequests
	case n < 5000:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// requestID returns the ID set by the RequestID middleware.
func requestID(r *http.Request) string {
	return r.Header.Get("X-Request-ID")
}

// pathToken parses the identity token in path segment name.
func pathToken(r *http.Request, name string) (domain.IdentityToken, error) {
	return domain.ParseIdentityToken(r.PathValue(name))
}
