// Package feature provides the built-in snapshot capabilities and the
// snapshot flavors composed from them.
//
// Capabilities:
//
//   - Coordinates, Velocities, BoxVectors: stored particle data
//   - XYZ: coordinates under their conventional alias
//   - Topology: atom and dimension counts read from the shared topology
//   - Configuration, Momentum: bundled positions and momenta, with the
//     same derived names as the flat capabilities
//
// Velocity-like data is negated on read for reversed snapshots; the
// stored buffers are never touched.
package feature
