package feature

import (
	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
)

// CoordinatesOf returns the particle positions.
func CoordinatesOf(s *snapshot.Snapshot) (Vectors, error) {
	return vectorsOf(s, AttrCoordinates)
}

// VelocitiesOf returns the velocities as seen from the snapshot's
// orientation.
func VelocitiesOf(s *snapshot.Snapshot) (Vectors, error) {
	return vectorsOf(s, AttrVelocities)
}

// XYZOf returns the xyz alias of the coordinates.
func XYZOf(s *snapshot.Snapshot) (Vectors, error) {
	return vectorsOf(s, AttrXYZ)
}

// BoxVectorsOf returns the periodic box, or nil.
func BoxVectorsOf(s *snapshot.Snapshot) (*Box, error) {
	v, err := s.Get(AttrBoxVectors)
	if err != nil || v == nil {
		return nil, err
	}
	b, ok := v.(*Box)
	if !ok {
		return nil, domain.ErrAttributeType.WithDetailsf("%s: %T", AttrBoxVectors, v)
	}
	return b, nil
}

// NAtomsOf returns the number of atoms of the snapshot's topology.
func NAtomsOf(s *snapshot.Snapshot) (int, error) {
	v, err := s.Get(AttrNAtoms)
	if err != nil {
		return 0, err
	}
	n, ok := v.(int)
	if !ok {
		return 0, domain.ErrAttributeType.WithDetailsf("%s: %T", AttrNAtoms, v)
	}
	return n, nil
}

// ConfigurationOf returns the stored configuration bundle, or nil.
func ConfigurationOf(s *snapshot.Snapshot) (*ConfigurationValue, error) {
	v, err := s.Raw(AttrConfiguration)
	if err != nil || v == nil {
		return nil, err
	}
	c, ok := v.(*ConfigurationValue)
	if !ok {
		return nil, domain.ErrAttributeType.WithDetailsf("%s: %T", AttrConfiguration, v)
	}
	return c, nil
}

// MomentumOf returns the momentum bundle as seen from the snapshot's
// orientation, or nil.
func MomentumOf(s *snapshot.Snapshot) (*MomentumValue, error) {
	v, err := s.Get(AttrMomentum)
	if err != nil || v == nil {
		return nil, err
	}
	m, ok := v.(*MomentumValue)
	if !ok {
		return nil, domain.ErrAttributeType.WithDetailsf("%s: %T", AttrMomentum, v)
	}
	return m, nil
}

func vectorsOf(s *snapshot.Snapshot, name string) (Vectors, error) {
	v, err := s.Get(name)
	if err != nil || v == nil {
		return nil, err
	}
	vec, ok := v.(Vectors)
	if !ok {
		return nil, domain.ErrAttributeType.WithDetailsf("%s: %T", name, v)
	}
	return vec, nil
}
