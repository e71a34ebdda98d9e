package snapshot

import (
	"log/slog"
	"slices"
	"sort"
	"sync"

	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/telemetry/metric"
)

// Registry holds the composed snapshot types by name. Composing the same
// name with the same capability list returns the already composed type.
type Registry struct {
	mu      sync.RWMutex
	types   map[string]*Type
	logger  *slog.Logger
	metrics *metric.Registry
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithMetrics records compositions in m.
func WithMetrics(m *metric.Registry) RegistryOption {
	return func(r *Registry) {
		r.metrics = m
	}
}

// NewRegistry creates an empty type registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		types:  make(map[string]*Type),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Compose composes and registers a type.
func (r *Registry) Compose(name string, caps ...*Capability) (*Type, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.types[name]; ok {
		if slices.Equal(existing.caps, caps) {
			r.metrics.ObserveComposition(metric.ResultCached)
			return existing, nil
		}
		r.metrics.ObserveComposition(metric.ResultConflict)
		return nil, domain.ErrTypeConflict.WithDetailsf("type %q is registered with capabilities %v", name, existing.CapabilityNames())
	}

	t, err := Compose(name, caps...)
	if err != nil {
		result := metric.ResultError
		if domain.IsDomainError(err, domain.ErrCompositionConflict.Code) {
			result = metric.ResultConflict
		}
		r.metrics.ObserveComposition(result)
		r.logger.Warn("snapshot type composition failed",
			"type", name,
			"error", err)
		return nil, err
	}

	r.types[name] = t
	r.metrics.ObserveComposition(metric.ResultOK)
	r.logger.Debug("snapshot type composed",
		"type", name,
		"capabilities", t.CapabilityNames(),
		"attributes", t.AttributeNames(),
		"fingerprint", t.Fingerprint())

	return t, nil
}

// Lookup returns the type registered under name.
func (r *Registry) Lookup(name string) (*Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.types[name]
	if !ok {
		return nil, domain.ErrTypeNotFound.WithDetails(name)
	}
	return t, nil
}

// Types returns the registered types sorted by name.
func (r *Registry) Types() []*Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Type, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}
