package config

import "time"

// Default configuration values.
const (
	DefaultEngine  = "badger"
	DefaultDataDir = "./trajsnap-data"

	DefaultGCInterval       = 10 * time.Minute
	DefaultGCThreshold      = 0.5
	DefaultCacheSize        = 64 << 20
	DefaultValueLogFileSize = 256 << 20
	DefaultNumMemtables     = 2

	DefaultBusyTimeout = 5 * time.Second

	DefaultLogLevel  = "warn"
	DefaultLogFormat = "text"
	DefaultMaxItems  = 8

	DefaultOutputFormat = "table"

	DefaultImportBurst = 1

	DefaultTraceSampleRatio = 1.0

	DefaultServerAddr        = "127.0.0.1:8420"
	DefaultReadHeaderTimeout = 5 * time.Second
	DefaultShutdownTimeout   = 10 * time.Second
	DefaultServerBurst       = 20
)

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Storage: StorageSection{
			Engine:  DefaultEngine,
			DataDir: DefaultDataDir,
			Badger: BadgerSection{
				GCInterval:       DefaultGCInterval,
				GCThreshold:      DefaultGCThreshold,
				CacheSize:        DefaultCacheSize,
				ValueLogFileSize: DefaultValueLogFileSize,
				NumMemtables:     DefaultNumMemtables,
				SyncWrites:       true,
			},
			SQLite: SQLiteSection{
				BusyTimeout: DefaultBusyTimeout,
				SyncWrites:  true,
			},
		},
		Log: LogSection{
			Level:    DefaultLogLevel,
			Format:   DefaultLogFormat,
			MaxItems: DefaultMaxItems,
		},
		Output: OutputSection{
			Format: DefaultOutputFormat,
		},
		Import: ImportSection{
			Burst: DefaultImportBurst,
		},
		Tracing: TracingSection{
			SampleRatio: DefaultTraceSampleRatio,
		},
		Server: ServerSection{
			Addr:              DefaultServerAddr,
			ReadHeaderTimeout: DefaultReadHeaderTimeout,
			ShutdownTimeout:   DefaultShutdownTimeout,
			Burst:             DefaultServerBurst,
		},
	}
}
