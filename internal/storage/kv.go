package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"
)

// Common errors
var (
	ErrKeyNotFound = errors.New("key not found")
	ErrClosed      = errors.New("kv engine closed")
)

// Engine names accepted by KVConfig.Engine.
const (
	EngineBadger = "badger"
	EngineMemory = "memory"
	EngineSQLite = "sqlite"
)

// KVEngine defines the interface for embedded key-value storage.
//
// Implementations must be safe for concurrent use. Apply must make all
// operations of a batch visible together.
type KVEngine interface {
	// Get retrieves a value by key.
	// Returns ErrKeyNotFound if key doesn't exist.
	Get(ctx context.Context, key []byte) ([]byte, error)

	// Set stores a key-value pair.
	Set(ctx context.Context, key, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key []byte) error

	// Apply writes a batch of sets and deletes atomically.
	Apply(ctx context.Context, b *Batch) error

	// Scan iterates over keys with a given prefix in key order.
	// Callback returns false to stop iteration.
	Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error

	// Backup writes a full dump of the engine to w and returns the number
	// of bytes written.
	Backup(ctx context.Context, w io.Writer) (uint64, error)

	// Restore replaces the engine contents with a dump produced by Backup.
	Restore(ctx context.Context, r io.Reader) error

	// GC triggers garbage collection (for LSM-based engines like Badger).
	// Returns bytes reclaimed.
	GC(ctx context.Context) (uint64, error)

	// Stats returns storage statistics (size, keys count, etc.).
	Stats(ctx context.Context) (*KVStats, error)

	// Close gracefully shuts down the KV engine.
	Close() error
}

// Batch collects writes applied together by KVEngine.Apply.
type Batch struct {
	ops []BatchOp
}

// BatchOp is a single write in a Batch. A nil Value marks a delete.
type BatchOp struct {
	Key   []byte
	Value []byte
}

// Set queues a key-value pair.
func (b *Batch) Set(key, value []byte) *Batch {
	if value == nil {
		value = []byte{}
	}
	b.ops = append(b.ops, BatchOp{Key: key, Value: value})
	return b
}

// Delete queues a key removal.
func (b *Batch) Delete(key []byte) *Batch {
	b.ops = append(b.ops, BatchOp{Key: key})
	return b
}

// Len returns the number of queued operations.
func (b *Batch) Len() int {
	return len(b.ops)
}

// Ops returns the queued operations in insertion order.
func (b *Batch) Ops() []BatchOp {
	return b.ops
}

// KVStats contains storage engine statistics.
type KVStats struct {
	// Engine is the engine name.
	Engine string `json:"engine" yaml:"engine"`

	// TotalKeys is the number of keys; zero when the engine cannot count cheaply.
	TotalKeys uint64 `json:"total_keys" yaml:"total_keys"`

	// TotalSize is the total disk usage in bytes.
	TotalSize uint64 `json:"total_size" yaml:"total_size"`

	// LSMSize is the LSM tree size (for Badger).
	LSMSize uint64 `json:"lsm_size" yaml:"lsm_size"`

	// ValueLogSize is the value log size (for Badger).
	ValueLogSize uint64 `json:"value_log_size" yaml:"value_log_size"`

	// LastGCTime is the last GC run timestamp (Unix milliseconds).
	LastGCTime int64 `json:"last_gc_time" yaml:"last_gc_time"`

	// GCRuns is the number of value-log rewrites performed by GC.
	GCRuns uint64 `json:"gc_runs" yaml:"gc_runs"`
}

// KVConfig configures an embedded KV engine.
type KVConfig struct {
	// Engine specifies the KV engine type ("badger", "sqlite" or "memory").
	// Default: "badger"
	Engine string

	// Dir is the storage directory. Required for badger and sqlite.
	Dir string

	// Badger-specific configuration
	Badger BadgerConfig

	SQLite SQLiteConfig
}

// SQLiteConfig tunes the sqlite engine.
type SQLiteConfig struct {
	// BusyTimeout bounds how long a writer waits for a locked database.
	// Default: 5s
	BusyTimeout time.Duration

	// SyncWrites selects synchronous=FULL instead of NORMAL.
	SyncWrites bool
}

// BadgerConfig contains Badger-specific tuning parameters.
type BadgerConfig struct {
	// GCInterval is the interval between automatic GC runs. Zero disables
	// the background loop.
	// Default: 10m
	GCInterval time.Duration

	// GCThreshold is the GC discard ratio threshold (0.0-1.0).
	// Default: 0.5 (run GC when 50% of a value log file is stale)
	GCThreshold float64

	// CacheSize is the block cache size in bytes.
	// Default: 64MB
	CacheSize int64

	// ValueLogFileSize is the max value log file size in bytes.
	// Default: 256MB
	ValueLogFileSize int64

	// NumMemtables is the number of memtables.
	// Default: 2
	NumMemtables int

	// SyncWrites enables sync writes (fsync after each write).
	// Default: true
	SyncWrites bool

	// InMemory runs Badger without touching disk. Used by tests.
	InMemory bool
}

// DefaultKVConfig returns the default KV configuration.
func DefaultKVConfig(dir string) KVConfig {
	return KVConfig{
		Engine: EngineBadger,
		Dir:    dir,
		Badger: DefaultBadgerConfig(),
		SQLite: DefaultSQLiteConfig(),
	}
}

// DefaultSQLiteConfig returns the default sqlite configuration.
func DefaultSQLiteConfig() SQLiteConfig {
	return SQLiteConfig{
		BusyTimeout: 5 * time.Second,
		SyncWrites:  true,
	}
}

// DefaultBadgerConfig returns the default Badger configuration.
func DefaultBadgerConfig() BadgerConfig {
	return BadgerConfig{
		GCInterval:       10 * time.Minute,
		GCThreshold:      0.5,
		CacheSize:        64 << 20,  // 64MB
		ValueLogFileSize: 256 << 20, // 256MB
		NumMemtables:     2,
		SyncWrites:       true,
	}
}

// Open creates the engine named by cfg.Engine.
func Open(cfg KVConfig, logger *slog.Logger) (KVEngine, error) {
	switch cfg.Engine {
	case "", EngineBadger:
		e, err := NewBadgerEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineSQLite:
		e, err := NewSQLiteEngine(cfg, logger)
		if err != nil {
			return nil, err
		}
		return e, nil
	case EngineMemory:
		return NewMemoryEngine(), nil
	default:
		return nil, fmt.Errorf("storage: unknown engine %q", cfg.Engine)
	}
}
