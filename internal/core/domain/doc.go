// Package domain defines the core value types shared by the snapshot
// core and its persistence collaborator.
//
// This package contains:
//
//   - IdentityToken: persistence-assigned snapshot identity
//   - Topology: shared, externally owned structural metadata
//   - Errors: DomainError codes for composition, instantiation,
//     proxy resolution and storage failures
//
// Domain types carry no IO dependencies.
package domain
