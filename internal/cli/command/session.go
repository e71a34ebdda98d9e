package command

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/yndnr/trajsnap/internal/config"
	"github.com/yndnr/trajsnap/internal/core/feature"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
	"github.com/yndnr/trajsnap/internal/infra/buildinfo"
	"github.com/yndnr/trajsnap/internal/infra/shutdown"
	"github.com/yndnr/trajsnap/internal/storage"
	"github.com/yndnr/trajsnap/internal/telemetry/metric"
	"github.com/yndnr/trajsnap/internal/telemetry/tracer"
)

// Session holds what a command needs: configuration, logging, metrics,
// the type registry and a lazily opened store.
type Session struct {
	Config  *config.Config
	Logger  *slog.Logger
	Metrics *metric.Registry
	Types   *snapshot.Registry

	mu      sync.Mutex
	store   *storage.Store
	cleanup *shutdown.Handler
}

// closeTimeout bounds the cleanup hooks run by Close.
const closeTimeout = 5 * time.Second

// NewSession registers the built-in snapshot flavors and installs span
// export when tracing is enabled. The store is opened on first use.
func NewSession(cfg *config.Config, log *slog.Logger) (*Session, error) {
	m := metric.NewRegistry()
	types := snapshot.NewRegistry(snapshot.WithLogger(log), snapshot.WithMetrics(m))
	if err := feature.Register(types); err != nil {
		return nil, err
	}

	flush, err := tracer.Setup(context.Background(), tracer.Config{
		Enabled:     cfg.Tracing.Enabled,
		Endpoint:    cfg.Tracing.Endpoint,
		ServiceName: tracer.DefaultServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Tracing.Enabled {
		log.Debug("span export enabled", "endpoint", cfg.Tracing.Endpoint, "version", buildinfo.Version)
	}

	s := &Session{
		Config:  cfg,
		Logger:  log,
		Metrics: m,
		Types:   types,
		cleanup: shutdown.NewHandler(closeTimeout),
	}
	s.cleanup.OnShutdown(flush)
	return s, nil
}

// Store opens the configured engine on first call and returns the same
// store afterwards.
func (s *Session) Store() (*storage.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store != nil {
		return s.store, nil
	}
	kv, err := storage.Open(s.Config.KVConfig(), s.Logger)
	if err != nil {
		return nil, err
	}
	if b, ok := kv.(*storage.BadgerEngine); ok {
		b.RegisterMetrics(s.Metrics.Prometheus())
	}
	st, err := storage.NewStore(kv, s.Types,
		storage.WithLogger(s.Logger),
		storage.WithMetrics(s.Metrics))
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	s.store = st
	s.cleanup.OnClose(st.Close)
	return st, nil
}

// OnClose registers fn to run when the session closes. Hooks run newest
// first.
func (s *Session) OnClose(fn func() error) {
	s.cleanup.OnClose(fn)
}

// Close runs the registered cleanup, closes the store if it was opened
// and flushes pending spans. Later calls return the first result.
func (s *Session) Close() error {
	return s.cleanup.Shutdown()
}
