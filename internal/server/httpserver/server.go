package httpserver

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"
)

// UnixPrefix marks an address as a Unix socket path.
const UnixPrefix = "unix:"

// Config configures a Server.
type Config struct {
	// Addr is host:port, or unix:PATH.
	Addr              string
	TLS               *tls.Config
	ReadHeaderTimeout time.Duration
	ShutdownTimeout   time.Duration
}

// Server is an HTTP server with graceful shutdown.
type Server struct {
	cfg        Config
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// New creates a server for handler. Call Listen, then Serve.
func New(cfg Config, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReadHeaderTimeout <= 0 {
		cfg.ReadHeaderTimeout = 5 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{
		cfg: cfg,
		httpServer: &http.Server{
			Handler:           handler,
			ReadHeaderTimeout: cfg.ReadHeaderTimeout,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
		logger: logger.With("component", "http"),
	}
}

// Listen binds the configured address. A stale socket file left by a
// previous run is removed first.
func (s *Server) Listen() error {
	network, addr := "tcp", s.cfg.Addr
	if path, ok := strings.CutPrefix(addr, UnixPrefix); ok {
		network, addr = "unix", path
		if err := removeStaleSocket(path); err != nil {
			return err
		}
	}
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("httpserver: listen %s: %w", s.cfg.Addr, err)
	}
	if s.cfg.TLS != nil {
		ln = tls.NewListener(ln, s.cfg.TLS)
	}
	s.listener = ln
	return nil
}

func removeStaleSocket(path string) error {
	info, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("httpserver: %w", err)
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("httpserver: %s exists and is not a socket", path)
	}
	return os.Remove(path)
}

// Addr returns the bound address, or "" before Listen.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	addr := s.listener.Addr()
	if addr.Network() == "unix" {
		return UnixPrefix + addr.String()
	}
	return addr.String()
}

// URL returns the base URL clients use to reach the server.
func (s *Server) URL() string {
	scheme := "http"
	if s.cfg.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + s.Addr()
}

// Serve handles requests until ctx is cancelled, then drains open
// requests for at most the shutdown timeout.
func (s *Server) Serve(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpServer.Serve(s.listener)
	}()
	s.logger.Info("http server started", "addr", s.Addr(), "tls", s.cfg.TLS != nil)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	err := s.Shutdown(shutdownCtx)
	<-errCh
	s.logger.Info("http server stopped")
	return err
}

// Shutdown stops accepting connections and waits for active requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
