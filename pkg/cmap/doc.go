// Package cmap provides a concurrent-safe sharded map.
//
// Keys are spread across a power-of-two number of shards, each guarded by
// its own RWMutex. The snapshot store uses it for the identity cache and
// the in-memory KV engine uses it as its backing table.
//
// Iteration locks one shard at a time, so Range and Keys observe a view
// that is consistent per shard but not across the whole map.
package cmap
