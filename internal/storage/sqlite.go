package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// SQLiteFileName is the database file created inside KVConfig.Dir.
const SQLiteFileName = "trajsnap.db"

const sqliteSchema = `CREATE TABLE IF NOT EXISTS kv (
	key   BLOB PRIMARY KEY,
	value BLOB NOT NULL
) WITHOUT ROWID`

// SQLiteEngine implements KVEngine on a single SQLite file.
type SQLiteEngine struct {
	db     *sql.DB
	path   string
	logger *slog.Logger

	lastGCTime atomic.Int64
	gcRuns     atomic.Uint64
	closed     atomic.Bool
}

var _ KVEngine = (*SQLiteEngine)(nil)

// NewSQLiteEngine opens (creating if needed) the database under cfg.Dir.
func NewSQLiteEngine(cfg KVConfig, logger *slog.Logger) (*SQLiteEngine, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("sqlite: dir is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "sqlite")

	if err := os.MkdirAll(cfg.Dir, 0o750); err != nil {
		return nil, fmt.Errorf("sqlite: create dir: %w", err)
	}
	path := filepath.Join(filepath.Clean(cfg.Dir), SQLiteFileName)

	busy := cfg.SQLite.BusyTimeout
	if busy <= 0 {
		busy = DefaultSQLiteConfig().BusyTimeout
	}
	synchronous := "NORMAL"
	if cfg.SQLite.SyncWrites {
		synchronous = "FULL"
	}
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(%d)&_pragma=synchronous(%s)",
		path, busy.Milliseconds(), synchronous)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: ping db: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: create schema: %w", err)
	}

	logger.Info("sqlite engine started", "path", path, "synchronous", synchronous)
	return &SQLiteEngine{db: db, path: path, logger: logger}, nil
}

// Get retrieves a value by key.
func (e *SQLiteEngine) Get(ctx context.Context, key []byte) ([]byte, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	var value []byte
	err := e.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, wrapSQLiteError("get", err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

// Set stores a key-value pair.
func (e *SQLiteEngine) Set(ctx context.Context, key, value []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.Apply(ctx, new(Batch).Set(key, value))
}

// Delete removes a key.
func (e *SQLiteEngine) Delete(ctx context.Context, key []byte) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.Apply(ctx, new(Batch).Delete(key))
}

// Apply writes the batch inside one transaction.
func (e *SQLiteEngine) Apply(ctx context.Context, b *Batch) error {
	if e.closed.Load() {
		return ErrClosed
	}
	return e.inTx(ctx, func(tx *sql.Tx) error {
		for _, op := range b.Ops() {
			var err error
			if op.Value == nil {
				_, err = tx.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, op.Key)
			} else {
				_, err = tx.ExecContext(ctx,
					`INSERT INTO kv (key, value) VALUES (?, ?)
					 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
					op.Key, op.Value)
			}
			if err != nil {
				return wrapSQLiteError("apply", err)
			}
		}
		return nil
	})
}

// Scan visits keys with the given prefix in byte order.
func (e *SQLiteEngine) Scan(ctx context.Context, prefix []byte, fn func(key, value []byte) bool) error {
	if e.closed.Load() {
		return ErrClosed
	}
	var (
		rows *sql.Rows
		err  error
	)
	lower := prefix
	if lower == nil {
		lower = []byte{}
	}
	if upper := prefixEnd(prefix); upper != nil {
		rows, err = e.db.QueryContext(ctx,
			`SELECT key, value FROM kv WHERE key >= ? AND key < ? ORDER BY key`, lower, upper)
	} else {
		rows, err = e.db.QueryContext(ctx,
			`SELECT key, value FROM kv WHERE key >= ? ORDER BY key`, lower)
	}
	if err != nil {
		return wrapSQLiteError("scan", err)
	}
	defer rows.Close()

	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return wrapSQLiteError("scan", err)
		}
		if !fn(key, value) {
			return nil
		}
	}
	return wrapSQLiteError("scan", rows.Err())
}

// prefixEnd returns the smallest key greater than every key starting with
// prefix, or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}

// Backup writes every key in the portable dump format from a single read
// transaction.
func (e *SQLiteEngine) Backup(ctx context.Context, w io.Writer) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	tx, err := e.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return 0, wrapSQLiteError("backup", err)
	}
	defer func() { _ = tx.Rollback() }()

	rows, err := tx.QueryContext(ctx, `SELECT key, value FROM kv ORDER BY key`)
	if err != nil {
		return 0, wrapSQLiteError("backup", err)
	}
	defer rows.Close()

	d, err := newDumpWriter(w)
	if err != nil {
		return 0, err
	}
	for rows.Next() {
		var key, value []byte
		if err := rows.Scan(&key, &value); err != nil {
			return 0, wrapSQLiteError("backup", err)
		}
		if err := d.Entry(key, value); err != nil {
			return 0, err
		}
	}
	if err := rows.Err(); err != nil {
		return 0, wrapSQLiteError("backup", err)
	}
	n, err := d.Close()
	if err == nil {
		e.logger.Info("backup written", "bytes", n)
	}
	return n, err
}

// Restore replaces the table contents with a dump in one transaction, so a
// bad dump leaves the engine untouched.
func (e *SQLiteEngine) Restore(ctx context.Context, r io.Reader) error {
	if e.closed.Load() {
		return ErrClosed
	}
	err := e.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM kv`); err != nil {
			return wrapSQLiteError("restore", err)
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO kv (key, value) VALUES (?, ?)`)
		if err != nil {
			return wrapSQLiteError("restore", err)
		}
		defer stmt.Close()
		return readDump(ctx, r, func(key, value []byte) error {
			if _, err := stmt.ExecContext(ctx, key, value); err != nil {
				return wrapSQLiteError("restore", err)
			}
			return nil
		})
	})
	if err != nil {
		return err
	}
	e.logger.Info("backup restored")
	return nil
}

// GC checkpoints the write-ahead log and vacuums the database file.
func (e *SQLiteEngine) GC(ctx context.Context) (uint64, error) {
	if e.closed.Load() {
		return 0, ErrClosed
	}
	start := time.Now()
	before := e.diskSize()
	if _, err := e.db.ExecContext(ctx, `VACUUM`); err != nil {
		return 0, wrapSQLiteError("vacuum", err)
	}
	if _, err := e.db.ExecContext(ctx, `PRAGMA wal_checkpoint(TRUNCATE)`); err != nil {
		return 0, wrapSQLiteError("checkpoint", err)
	}
	var reclaimed uint64
	if after := e.diskSize(); before > after {
		reclaimed = before - after
	}
	e.lastGCTime.Store(time.Now().UnixMilli())
	e.gcRuns.Add(1)
	e.logger.Info("gc completed", "bytes_reclaimed", reclaimed, "elapsed", time.Since(start))
	return reclaimed, nil
}

func (e *SQLiteEngine) diskSize() uint64 {
	var total uint64
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if fi, err := os.Stat(e.path + suffix); err == nil {
			total += uint64(fi.Size())
		}
	}
	return total
}

// Stats returns key count and on-disk size.
func (e *SQLiteEngine) Stats(ctx context.Context) (*KVStats, error) {
	if e.closed.Load() {
		return nil, ErrClosed
	}
	var keys uint64
	if err := e.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kv`).Scan(&keys); err != nil {
		return nil, wrapSQLiteError("stats", err)
	}
	return &KVStats{
		Engine:     EngineSQLite,
		TotalKeys:  keys,
		TotalSize:  e.diskSize(),
		LastGCTime: e.lastGCTime.Load(),
		GCRuns:     e.gcRuns.Load(),
	}, nil
}

// Close closes the database handle. It is safe to call more than once.
func (e *SQLiteEngine) Close() error {
	if e.closed.Swap(true) {
		return nil
	}
	if err := e.db.Close(); err != nil {
		return fmt.Errorf("sqlite: close db: %w", err)
	}
	return nil
}

func (e *SQLiteEngine) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := e.db.BeginTx(ctx, nil)
	if err != nil {
		return wrapSQLiteError("begin", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return wrapSQLiteError("commit", err)
	}
	return nil
}

// ErrBusy is returned when the database stays locked past the busy timeout.
var ErrBusy = errors.New("sqlite: database is busy")

func wrapSQLiteError(op string, err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("sqlite: %s: %w: %v", op, ErrBusy, err)
		}
	}
	return fmt.Errorf("sqlite: %s: %w", op, err)
}
