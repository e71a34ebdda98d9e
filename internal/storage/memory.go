package storage

import (
	"bytes"
	"context"
	"io"
	"slices"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/yndnr/trajsnap/pkg/cmap"
)

// MemoryEngine is an in-memory KVEngine backed by a sharded map. It keeps
// nothing across process restarts.
type MemoryEngine struct {
	items *cmap.Map[string, []byte]

	// mu makes batches and restores atomic with respect to readers.
	mu     sync.RWMutex
	closed atomic.Bool
}

var _ KVEngine = (*MemoryEngine)(nil)

// NewMemoryEngine creates an empty in-memory engine.
func NewMemoryEngine() *MemoryEngine {
	return &MemoryEngine{items: cmap.New[string, []byte]()}
}

// Get retrieves a value by key.
func (e *MemoryEngine) Get(_ context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	v, ok := e.items.Get(string(key))
	if !ok {
		return nil, ErrKeyNotFound
	}
	return bytes.Clone(v), nil
}

// Set stores a key-value pair.
func (e *MemoryEngine) Set(_ context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	e.items.Set(string(key), bytes.Clone(value))
	return nil
}

// Delete removes a key.
func (e *MemoryEngine) Delete(_ context.Context, key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	e.items.Delete(string(key))
	return nil
}

// Apply writes a batch while holding the engine write lock.
func (e *MemoryEngine) Apply(ctx context.Context, b *Batch) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if b == nil || b.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, op := range b.Ops() {
		if op.Value == nil {
			e.items.Delete(string(op.Key))
			continue
		}
		e.items.Set(string(op.Key), bytes.Clone(op.Value))
	}
	return nil
}

// Scan visits keys with the given prefix in key order. The visited view
// is a snapshot taken when Scan starts.
func (e *MemoryEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	for _, kv := range e.sorted(string(prefix)) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fn([]byte(kv.key), bytes.Clone(kv.value)) {
			break
		}
	}
	return nil
}

type memEntry struct {
	key   string
	value []byte
}

func (e *MemoryEngine) sorted(prefix string) []memEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []memEntry
	e.items.Range(func(k string, v []byte) bool {
		if strings.HasPrefix(k, prefix) {
			out = append(out, memEntry{key: k, value: v})
		}
		return true
	})
	slices.SortFunc(out, func(a, b memEntry) int {
		return strings.Compare(a.key, b.key)
	})
	return out
}

// Backup writes every key in the portable dump format.
func (e *MemoryEngine) Backup(ctx context.Context, w io.Writer) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	d, err := newDumpWriter(w)
	if err != nil {
		return 0, err
	}
	for _, kv := range e.sorted("") {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if err := d.Entry([]byte(kv.key), kv.value); err != nil {
			return 0, err
		}
	}
	return d.Close()
}

// Restore replaces all keys with the content of a dump.
func (e *MemoryEngine) Restore(ctx context.Context, r io.Reader) error {
	if e.closed.Load() {
		return ErrClosed
	}
	loaded := make(map[string][]byte)
	err := readDump(ctx, r, func(key, value []byte) error {
		loaded[string(key)] = value
		return nil
	})
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.items.Clear()
	for k, v := range loaded {
		e.items.Set(k, v)
	}
	return nil
}

// GC is a no-op for the memory engine.
func (e *MemoryEngine) GC(context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	return 0, nil
}

// Stats returns key count and payload size.
func (e *MemoryEngine) Stats(context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	e.mu.RLock()
	defer e.mu.RUnlock()

	var size uint64
	e.items.Range(func(k string, v []byte) bool {
		size += uint64(len(k) + len(v))
		return true
	})
	return &KVStats{
		Engine:    EngineMemory,
		TotalKeys: uint64(e.items.Count()),
		TotalSize: size,
	}, nil
}

// Close drops all data.
func (e *MemoryEngine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items.Clear()
	return nil
}
