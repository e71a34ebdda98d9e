package config

import (
	"fmt"
	"io"
	"os"

	"github.com/yndnr/trajsnap/internal/infra/confloader"
	"github.com/yndnr/trajsnap/internal/storage"
	"github.com/yndnr/trajsnap/internal/telemetry/logger"
	"github.com/yndnr/trajsnap/pkg/crypto/adaptive"
)

// Load builds the configuration from defaults, the file at path (if
// any), the environment and overrides, then verifies it. Override keys
// are dotted paths such as "storage.engine".
func Load(path string, overrides map[string]any) (*Config, error) {
	cfg := Default()
	l := confloader.NewLoader(
		confloader.WithConfigFile(path),
		confloader.WithOverrides(overrides),
	)
	if err := l.Load(cfg); err != nil {
		return nil, err
	}
	if err := Verify(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// KVConfig converts the storage section for storage.Open.
func (c *Config) KVConfig() storage.KVConfig {
	b := c.Storage.Badger
	return storage.KVConfig{
		Engine: c.Storage.Engine,
		Dir:    c.Storage.DataDir,
		Badger: storage.BadgerConfig{
			GCInterval:       b.GCInterval,
			GCThreshold:      b.GCThreshold,
			CacheSize:        b.CacheSize,
			ValueLogFileSize: b.ValueLogFileSize,
			NumMemtables:     b.NumMemtables,
			SyncWrites:       b.SyncWrites,
		},
		SQLite: storage.SQLiteConfig{
			BusyTimeout: c.Storage.SQLite.BusyTimeout,
			SyncWrites:  c.Storage.SQLite.SyncWrites,
		},
	}
}

// LoggerConfig converts the log section for logger.New.
func (c *Config) LoggerConfig(out io.Writer) logger.Config {
	return logger.Config{
		Level:    c.Log.Level,
		Format:   c.Log.Format,
		Output:   out,
		MaxItems: c.Log.MaxItems,
	}
}

// BackupKey returns the configured backup key, or nil when backups are
// not encrypted.
func (c *Config) BackupKey() ([]byte, error) {
	s := c.Security.BackupKey
	if s == "" && c.Security.BackupKeyFile != "" {
		data, err := os.ReadFile(c.Security.BackupKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read backup key file: %w", err)
		}
		s = string(data)
	}
	if s == "" {
		return nil, nil
	}
	key, err := adaptive.ParseKey(s)
	if err != nil {
		return nil, fmt.Errorf("security backup key: %w", err)
	}
	return key, nil
}
