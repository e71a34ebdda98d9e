package config

import "time"

// Config is the root configuration for snapctl.
type Config struct {
	Storage  StorageSection  `koanf:"storage"`
	Log      LogSection      `koanf:"log"`
	Output   OutputSection   `koanf:"output"`
	Security SecuritySection `koanf:"security"`
	Import   ImportSection   `koanf:"import"`
	Metrics  MetricsSection  `koanf:"metrics"`
	Tracing  TracingSection  `koanf:"tracing"`
	Server   ServerSection   `koanf:"server"`
}

// StorageSection configures the snapshot store.
type StorageSection struct {
	// Engine is "badger", "sqlite" or "memory".
	Engine  string        `koanf:"engine"`
	DataDir string        `koanf:"data_dir"`
	Badger  BadgerSection `koanf:"badger"`
	SQLite  SQLiteSection `koanf:"sqlite"`
}

// SQLiteSection tunes the sqlite engine.
type SQLiteSection struct {
	BusyTimeout time.Duration `koanf:"busy_timeout"`
	SyncWrites  bool          `koanf:"sync_writes"`
}

// BadgerSection tunes the Badger engine. Sizes are in bytes.
type BadgerSection struct {
	GCInterval       time.Duration `koanf:"gc_interval"`
	GCThreshold      float64       `koanf:"gc_threshold"`
	CacheSize        int64         `koanf:"cache_size"`
	ValueLogFileSize int64         `koanf:"value_log_file_size"`
	NumMemtables     int           `koanf:"num_memtables"`
	SyncWrites       bool          `koanf:"sync_writes"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	// MaxItems bounds how many elements of a bulky attribute are logged.
	MaxItems int `koanf:"max_items"`
}

// OutputSection configures command output.
type OutputSection struct {
	// Format is "table", "json" or "yaml".
	Format string `koanf:"format"`
}

// SecuritySection configures backup encryption. BackupKey takes
// precedence over BackupKeyFile.
type SecuritySection struct {
	BackupKey     string `koanf:"backup_key"`
	BackupKeyFile string `koanf:"backup_key_file"`
}

// ImportSection throttles document imports.
type ImportSection struct {
	// Rate is the number of documents imported per second. Zero means
	// unlimited.
	Rate  float64 `koanf:"rate"`
	Burst int     `koanf:"burst"`
}

// MetricsSection controls the metrics dump written after each command.
type MetricsSection struct {
	Enabled bool `koanf:"enabled"`
}

// TracingSection configures OpenTelemetry span export over OTLP/HTTP.
type TracingSection struct {
	Enabled bool `koanf:"enabled"`
	// Endpoint is a full URL such as http://localhost:4318/v1/traces.
	Endpoint    string  `koanf:"endpoint"`
	SampleRatio float64 `koanf:"sample_ratio"`
}

// ServerSection configures the HTTP service started by "snapctl serve".
type ServerSection struct {
	// Addr is host:port, or unix:PATH for a local socket.
	Addr              string        `koanf:"addr"`
	ReadHeaderTimeout time.Duration `koanf:"read_header_timeout"`
	ShutdownTimeout   time.Duration `koanf:"shutdown_timeout"`
	// RateLimit is requests per second per client. Zero disables it.
	RateLimit float64    `koanf:"rate_limit"`
	Burst     int        `koanf:"burst"`
	TLS       TLSSection `koanf:"tls"`
	// AdminAllow lists the addresses or CIDR prefixes allowed to call
	// the admin routes. Empty allows every client.
	AdminAllow []string `koanf:"admin_allow"`
}

// TLSSection enables HTTPS when CertFile and KeyFile are set. A
// ClientCAFile additionally requires client certificates.
type TLSSection struct {
	CertFile     string `koanf:"cert_file"`
	KeyFile      string `koanf:"key_file"`
	ClientCAFile string `koanf:"client_ca_file"`
}

// Enabled reports whether a server certificate is configured.
func (t TLSSection) Enabled() bool {
	return t.CertFile != "" || t.KeyFile != ""
}
