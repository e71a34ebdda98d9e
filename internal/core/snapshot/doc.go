// Package snapshot implements the snapshot core: capability descriptors,
// the composer that turns an ordered capability list into a concrete
// snapshot type, the reversal and equality protocol shared by every
// composed type, and the lazy proxy contract used to compare against
// snapshots that have not been materialized yet.
//
// Composition happens once per distinct capability list, at setup time:
//
//	reg := snapshot.NewRegistry()
//	md, err := reg.Compose("MDSnapshot", velocities, coordinates, boxVectors)
//
// Instances are then built against the composed type:
//
//	s, err := md.New(topology, snapshot.Params{"coordinates": xyz})
//	rev, err := s.Reversed(ctx) // rev.Reversed(ctx) returns s itself
//
// Reversal is a flag. No stored value is transformed; attribute read
// hooks decide how to present orientation-dependent data.
//
// Snapshot values are safe for concurrent use once constructed, as long
// as callers do not call Set after handing the snapshot to other
// goroutines. The reversal link is installed with compare-and-set.
package snapshot
