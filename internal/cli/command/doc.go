// Package command defines the snapctl command tree.
//
// Every command runs against a Session built in the app's Before hook:
// configuration from file, environment and flags, a logger, a metrics
// registry, the snapshot type registry and a lazily opened Store. The
// shell command reuses one Session for all of its lines.
package command
