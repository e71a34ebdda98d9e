package snapshot

import (
	"context"
	"errors"
	"sync"

	"github.com/yndnr/trajsnap/internal/core/domain"
)

func testCoordinates() *Capability {
	return &Capability{
		Name: "coordinates",
		Attributes: []Attribute{
			{Name: "coordinates", Kind: KindVectors, Codec: JSONCodec[[]float64]{}},
		},
	}
}

func testVelocities() *Capability {
	return &Capability{
		Name: "velocities",
		Attributes: []Attribute{
			{
				Name:  "velocities",
				Kind:  KindVectors,
				Codec: JSONCodec[[]float64]{},
				Get: func(s *Snapshot) (any, error) {
					raw, err := s.Raw("velocities")
					if err != nil || raw == nil || !s.IsReversed() {
						return raw, err
					}
					v := raw.([]float64)
					out := make([]float64, len(v))
					for i := range v {
						out[i] = -v[i]
					}
					return out, nil
				},
			},
		},
	}
}

func testTopology() *Capability {
	return &Capability{
		Name: "topology",
		Attributes: []Attribute{
			{
				Name:    "n_atoms",
				Kind:    KindInteger,
				Derived: true,
				Get: func(s *Snapshot) (any, error) {
					if s.Topology() == nil {
						return 0, nil
					}
					return s.Topology().NAtoms, nil
				},
			},
		},
	}
}

// mapResolver resolves tokens from a map, counting calls.
type mapResolver struct {
	mu    sync.Mutex
	items map[domain.IdentityToken]*Snapshot
	calls int
	err   error
}

func newMapResolver() *mapResolver {
	return &mapResolver{items: make(map[domain.IdentityToken]*Snapshot)}
}

func (r *mapResolver) Resolve(_ context.Context, tok domain.IdentityToken) (*Snapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	s, ok := r.items[tok]
	if !ok {
		return nil, domain.ErrSnapshotNotFound.WithDetails(tok.String())
	}
	return s, nil
}

// store assigns a fresh identity to s and makes it resolvable.
func (r *mapResolver) store(s *Snapshot) domain.IdentityToken {
	tok, err := domain.NewIdentityToken()
	if err != nil {
		panic(err)
	}
	if err := s.AssignIdentity(tok); err != nil {
		panic(err)
	}
	r.mu.Lock()
	r.items[tok] = s
	r.mu.Unlock()
	return tok
}

var errBackend = errors.New("backend offline")
