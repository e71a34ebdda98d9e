package handler

import (
	"fmt"
	"net/http"

	"github.com/yndnr/trajsnap/internal/core/snapshot"
)

func typeInfo(t *snapshot.Type) TypeInfo {
	return TypeInfo{
		Name:         t.Name(),
		Capabilities: t.CapabilityNames(),
		Attributes:   t.AttributeNames(),
		Fingerprint:  fmt.Sprintf("%016x", t.Fingerprint()),
	}
}

func (h *Handler) handleListTypes(w http.ResponseWriter, r *http.Request) {
	types := h.types.Types()
	out := make([]TypeInfo, 0, len(types))
	for _, t := range types {
		out = append(out, typeInfo(t))
	}
	h.writeJSON(w, r, http.StatusOK, out)
}

func (h *Handler) handleGetType(w http.ResponseWriter, r *http.Request) {
	t, err := h.types.Lookup(r.PathValue("name"))
	if err != nil {
		h.handleServiceError(w, r, err)
		return
	}
	detail := TypeDetail{TypeInfo: typeInfo(t)}
	for _, name := range t.AttributeNames() {
		attr, _ := t.Attribute(name)
		detail.AttributeDetails = append(detail.AttributeDetails, AttributeInfo{
			Name:    attr.Name,
			Kind:    attr.Kind.String(),
			Owner:   t.Owner(attr.Name),
			Derived: attr.Derived,
		})
	}
	h.writeJSON(w, r, http.StatusOK, detail)
}
