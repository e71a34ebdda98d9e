// Package storage persists snapshots and topologies.
//
// The package has two layers:
//
//   - KVEngine: an embedded key-value engine. BadgerEngine and
//     SQLiteEngine are durable, MemoryEngine is process-local.
//   - Store: the snapshot persistence collaborator. It implements
//     snapshot.Persistence, so proxies handed out by a Store resolve back
//     through it, and it memoizes every loaded snapshot by identity token.
//
// Key layout:
//
//	snap/<token>  snapshot record (framed JSON)
//	topo/<name>   topology record (framed JSON)
//
// Snapshots are always written together with their reversal partner in
// a single batch.
package storage
