package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"

	"github.com/yndnr/trajsnap/internal/storage"
	"github.com/yndnr/trajsnap/internal/telemetry/logger"
)

// Verify validates the configuration. For the durable engines it also
// makes sure the data directory exists.
func Verify(cfg *Config) error {
	if err := verifyStorage(&cfg.Storage); err != nil {
		return err
	}
	if err := verifyLog(&cfg.Log); err != nil {
		return err
	}
	switch cfg.Output.Format {
	case "table", "json", "yaml":
	default:
		return fmt.Errorf("output.format %q is not one of table, json, yaml", cfg.Output.Format)
	}
	if cfg.Import.Rate < 0 {
		return errors.New("import.rate must not be negative")
	}
	if cfg.Import.Rate > 0 && cfg.Import.Burst < 1 {
		return errors.New("import.burst must be at least 1 when import.rate is set")
	}
	if cfg.Tracing.Enabled && cfg.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}
	if r := cfg.Tracing.SampleRatio; r < 0 || r > 1 {
		return errors.New("tracing.sample_ratio must be between 0 and 1")
	}
	return verifyServer(&cfg.Server)
}

func verifyServer(cfg *ServerSection) error {
	if cfg.Addr == "" {
		return errors.New("server.addr is required")
	}
	if cfg.RateLimit < 0 {
		return errors.New("server.rate_limit must not be negative")
	}
	if cfg.RateLimit > 0 && cfg.Burst < 1 {
		return errors.New("server.burst must be at least 1 when server.rate_limit is set")
	}
	if cfg.ReadHeaderTimeout < 0 || cfg.ShutdownTimeout < 0 {
		return errors.New("server timeouts must not be negative")
	}
	if cfg.TLS.Enabled() && (cfg.TLS.CertFile == "" || cfg.TLS.KeyFile == "") {
		return errors.New("server.tls needs both cert_file and key_file")
	}
	if cfg.TLS.ClientCAFile != "" && !cfg.TLS.Enabled() {
		return errors.New("server.tls.client_ca_file requires a server certificate")
	}
	for _, entry := range cfg.AdminAllow {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		var err error
		if strings.Contains(entry, "/") {
			_, err = netip.ParsePrefix(entry)
		} else {
			_, err = netip.ParseAddr(entry)
		}
		if err != nil {
			return fmt.Errorf("server.admin_allow: %q is not an address or CIDR prefix", entry)
		}
	}
	return nil
}

func verifyStorage(cfg *StorageSection) error {
	switch cfg.Engine {
	case storage.EngineMemory:
		return nil
	case storage.EngineBadger, storage.EngineSQLite:
	default:
		return fmt.Errorf("storage.engine %q is not one of badger, sqlite, memory", cfg.Engine)
	}

	if cfg.DataDir == "" {
		return errors.New("storage.data_dir is required")
	}
	if cfg.SQLite.BusyTimeout < 0 {
		return errors.New("storage.sqlite.busy_timeout must not be negative")
	}
	if t := cfg.Badger.GCThreshold; t <= 0 || t >= 1 {
		return errors.New("storage.badger.gc_threshold must be between 0 and 1")
	}
	if cfg.Badger.GCInterval < 0 {
		return errors.New("storage.badger.gc_interval must not be negative")
	}
	if cfg.Badger.NumMemtables < 1 {
		return errors.New("storage.badger.num_memtables must be at least 1")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o750); err != nil {
		return errors.New("cannot create data directory: " + err.Error())
	}
	return nil
}

func verifyLog(cfg *LogSection) error {
	if _, err := logger.ParseLevel(cfg.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	switch cfg.Format {
	case "json", "text", "console":
		return nil
	default:
		return fmt.Errorf("log.format %q is not one of json, text", cfg.Format)
	}
}
