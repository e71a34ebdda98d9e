package domain

import "strings"

// DefaultSpatialDims is the number of spatial dimensions assumed when a
// topology does not say otherwise.
const DefaultSpatialDims = 3

// MaxTopologyNameLength bounds topology names, which double as storage keys.
const MaxTopologyNameLength = 128

// Topology is the structural metadata a snapshot points to. It is owned
// outside the snapshot; snapshots only share the pointer, and the core
// compares topologies by pointer identity alone.
type Topology struct {
	// Name identifies the topology in storage.
	Name string `json:"name"`

	// NAtoms is the number of particles.
	NAtoms int `json:"n_atoms"`

	// NSpatial is the number of spatial dimensions.
	NSpatial int `json:"n_spatial"`
}

// NewTopology creates a topology with the default number of spatial dimensions.
func NewTopology(name string, nAtoms int) (*Topology, error) {
	t := &Topology{Name: name, NAtoms: nAtoms, NSpatial: DefaultSpatialDims}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks the topology fields.
func (t *Topology) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return ErrMissingArgument.WithDetails("topology name is required")
	}
	if len(t.Name) > MaxTopologyNameLength {
		return ErrInvalidArgument.WithDetails("topology name too long")
	}
	if strings.ContainsAny(t.Name, "/ \t\n") {
		return ErrInvalidArgument.WithDetailsf("topology name %q contains reserved characters", t.Name)
	}
	if t.NAtoms < 0 {
		return ErrInvalidArgument.WithDetails("n_atoms must not be negative")
	}
	if t.NSpatial <= 0 {
		return ErrInvalidArgument.WithDetails("n_spatial must be positive")
	}
	return nil
}
