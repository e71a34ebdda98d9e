package feature

import "github.com/yndnr/trajsnap/internal/core/snapshot"

// Built-in snapshot flavor names.
const (
	ToySnapshot = "ToySnapshot"
	MDSnapshot  = "MDSnapshot"
	Snapshot    = "Snapshot"
)

// Flavors returns the capability list of every built-in flavor.
func Flavors() map[string][]*snapshot.Capability {
	return map[string][]*snapshot.Capability{
		ToySnapshot: {Velocities, Coordinates, XYZ, Topology},
		MDSnapshot:  {Velocities, Coordinates, BoxVectors, XYZ, Topology},
		Snapshot:    {Configuration, Momentum, XYZ, Topology},
	}
}

// Register composes the built-in flavors into reg.
func Register(reg *snapshot.Registry) error {
	for _, name := range []string{ToySnapshot, MDSnapshot, Snapshot} {
		if _, err := reg.Compose(name, Flavors()[name]...); err != nil {
			return err
		}
	}
	return nil
}
