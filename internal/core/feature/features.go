package feature

import (
	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
)

// Attribute names declared by the built-in capabilities.
const (
	AttrCoordinates   = "coordinates"
	AttrVelocities    = "velocities"
	AttrBoxVectors    = "box_vectors"
	AttrXYZ           = "xyz"
	AttrNAtoms        = "n_atoms"
	AttrNSpatial      = "n_spatial"
	AttrConfiguration = "configuration"
	AttrMomentum      = "momentum"
)

// ConfigurationValue bundles positions and box geometry.
type ConfigurationValue struct {
	Coordinates Vectors `json:"coordinates"`
	BoxVectors  *Box    `json:"box_vectors,omitempty"`
}

// MomentumValue bundles velocities and an optional kinetic energy.
type MomentumValue struct {
	Velocities    Vectors  `json:"velocities"`
	KineticEnergy *float64 `json:"kinetic_energy,omitempty"`
}

// Coordinates stores particle positions.
var Coordinates = &snapshot.Capability{
	Name: "coordinates",
	Attributes: []snapshot.Attribute{
		{Name: AttrCoordinates, Kind: snapshot.KindVectors, Codec: snapshot.JSONCodec[Vectors]{}},
	},
	Init: func(s *snapshot.Snapshot, p snapshot.Params) error {
		return initVectors(s, p, AttrCoordinates)
	},
}

// Velocities stores particle velocities; reversed snapshots read them negated.
var Velocities = &snapshot.Capability{
	Name: "velocities",
	Attributes: []snapshot.Attribute{
		{
			Name:  AttrVelocities,
			Kind:  snapshot.KindVectors,
			Codec: snapshot.JSONCodec[Vectors]{},
			Get: func(s *snapshot.Snapshot) (any, error) {
				raw, err := s.Raw(AttrVelocities)
				if err != nil || raw == nil {
					return raw, err
				}
				v := raw.(Vectors)
				if s.IsReversed() {
					return v.Negated(), nil
				}
				return v, nil
			},
		},
	},
	Init: func(s *snapshot.Snapshot, p snapshot.Params) error {
		return initVectors(s, p, AttrVelocities)
	},
}

// BoxVectors stores the periodic box.
var BoxVectors = &snapshot.Capability{
	Name: "box_vectors",
	Attributes: []snapshot.Attribute{
		{Name: AttrBoxVectors, Kind: snapshot.KindBox, Codec: snapshot.JSONCodec[*Box]{}},
	},
	Init: func(s *snapshot.Snapshot, p snapshot.Params) error {
		v, ok := p[AttrBoxVectors]
		if !ok || v == nil {
			return nil
		}
		if err := s.Set(AttrBoxVectors, v); err != nil {
			return err
		}
		return checkSpatial(s.Topology(), AttrBoxVectors)
	},
}

// XYZ exposes the coordinates under the xyz alias.
var XYZ = &snapshot.Capability{
	Name:     "xyz",
	Requires: []string{AttrCoordinates},
	Attributes: []snapshot.Attribute{
		{
			Name:    AttrXYZ,
			Kind:    snapshot.KindVectors,
			Derived: true,
			Get: func(s *snapshot.Snapshot) (any, error) {
				return s.Get(AttrCoordinates)
			},
		},
	},
}

// Topology exposes the sizes of the shared topology.
var Topology = &snapshot.Capability{
	Name: "topology",
	Attributes: []snapshot.Attribute{
		{
			Name:    AttrNAtoms,
			Kind:    snapshot.KindInteger,
			Derived: true,
			Get: func(s *snapshot.Snapshot) (any, error) {
				if t := s.Topology(); t != nil {
					return t.NAtoms, nil
				}
				return 0, nil
			},
		},
		{
			Name:    AttrNSpatial,
			Kind:    snapshot.KindInteger,
			Derived: true,
			Get: func(s *snapshot.Snapshot) (any, error) {
				if t := s.Topology(); t != nil {
					return t.NSpatial, nil
				}
				return domain.DefaultSpatialDims, nil
			},
		},
	},
}

// Configuration stores positions and box together.
var Configuration = &snapshot.Capability{
	Name: "configuration",
	Attributes: []snapshot.Attribute{
		{Name: AttrConfiguration, Kind: snapshot.KindBundle, Codec: snapshot.JSONCodec[*ConfigurationValue]{}},
		{
			Name:    AttrCoordinates,
			Kind:    snapshot.KindVectors,
			Derived: true,
			Get: func(s *snapshot.Snapshot) (any, error) {
				c, err := ConfigurationOf(s)
				if err != nil || c == nil {
					return Vectors(nil), err
				}
				return c.Coordinates, nil
			},
		},
		{
			Name:    AttrBoxVectors,
			Kind:    snapshot.KindBox,
			Derived: true,
			Get: func(s *snapshot.Snapshot) (any, error) {
				c, err := ConfigurationOf(s)
				if err != nil || c == nil {
					return (*Box)(nil), err
				}
				return c.BoxVectors, nil
			},
		},
	},
	Init: func(s *snapshot.Snapshot, p snapshot.Params) error {
		v, ok := p[AttrConfiguration]
		if !ok || v == nil {
			return nil
		}
		if err := s.Set(AttrConfiguration, v); err != nil {
			return err
		}
		c := v.(*ConfigurationValue)
		if c == nil {
			return s.Set(AttrConfiguration, nil)
		}
		if c.BoxVectors != nil {
			if err := checkSpatial(s.Topology(), AttrConfiguration); err != nil {
				return err
			}
		}
		return checkCount(s, AttrConfiguration, c.Coordinates)
	},
}

// Momentum stores velocities and kinetic energy together; reversed
// snapshots read the velocities negated.
var Momentum = &snapshot.Capability{
	Name: "momentum",
	Attributes: []snapshot.Attribute{
		{
			Name:  AttrMomentum,
			Kind:  snapshot.KindBundle,
			Codec: snapshot.JSONCodec[*MomentumValue]{},
			Get: func(s *snapshot.Snapshot) (any, error) {
				raw, err := s.Raw(AttrMomentum)
				if err != nil {
					return (*MomentumValue)(nil), err
				}
				m, _ := raw.(*MomentumValue)
				if m == nil || !s.IsReversed() {
					return m, nil
				}
				return &MomentumValue{Velocities: m.Velocities.Negated(), KineticEnergy: m.KineticEnergy}, nil
			},
		},
		{
			Name:    AttrVelocities,
			Kind:    snapshot.KindVectors,
			Derived: true,
			Get: func(s *snapshot.Snapshot) (any, error) {
				m, err := MomentumOf(s)
				if err != nil || m == nil {
					return Vectors(nil), err
				}
				return m.Velocities, nil
			},
		},
	},
	Init: func(s *snapshot.Snapshot, p snapshot.Params) error {
		v, ok := p[AttrMomentum]
		if !ok || v == nil {
			return nil
		}
		if err := s.Set(AttrMomentum, v); err != nil {
			return err
		}
		m := v.(*MomentumValue)
		if m == nil {
			return s.Set(AttrMomentum, nil)
		}
		return checkCount(s, AttrMomentum, m.Velocities)
	},
}

// initVectors stores a per-particle vector attribute and checks its length
// against the topology.
func initVectors(s *snapshot.Snapshot, p snapshot.Params, name string) error {
	v, ok := p[name]
	if !ok || v == nil {
		return nil
	}
	if err := s.Set(name, v); err != nil {
		return err
	}
	return checkCount(s, name, v.(Vectors))
}

func checkCount(s *snapshot.Snapshot, name string, v Vectors) error {
	t := s.Topology()
	if t == nil || v == nil {
		return nil
	}
	if err := checkSpatial(t, name); err != nil {
		return err
	}
	if len(v) != t.NAtoms {
		return domain.ErrInvalidArgument.WithDetailsf("%s: %d vectors for topology %q with %d atoms",
			name, len(v), t.Name, t.NAtoms)
	}
	return nil
}

// checkSpatial rejects topologies whose dimensionality differs from Vec3.
func checkSpatial(t *domain.Topology, name string) error {
	if t == nil || t.NSpatial == 0 || t.NSpatial == len(Vec3{}) {
		return nil
	}
	return domain.ErrInvalidArgument.WithDetailsf("%s: %d-dimensional vectors for topology %q with %d spatial dimensions",
		name, len(Vec3{}), t.Name, t.NSpatial)
}
