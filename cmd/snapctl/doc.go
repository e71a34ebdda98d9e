// Package main provides the entry point for snapctl.
//
// snapctl composes, stores and inspects trajectory snapshots:
//
//   - Snapshot types (list the built-in flavors and their attributes)
//   - Snapshots (create, import, show, reverse, compare, delete)
//   - Storage maintenance (backup, restore, gc, stats)
//   - An HTTP service over the store (serve) and its client (remote)
//
// Usage:
//
//	snapctl create dimer.yaml
//	snapctl -o yaml reverse snap-01j...
//	snapctl --engine memory shell
//
// The CLI supports both single-command mode and an interactive shell.
package main
