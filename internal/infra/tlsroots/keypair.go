package tlsroots

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/yndnr/trajsnap/internal/infra/fswatch"
)

// KeyPair holds a server certificate and reloads it from disk.
type KeyPair struct {
	certFile string
	keyFile  string
	cert     atomic.Pointer[tls.Certificate]
	logger   *slog.Logger

	debounce   time.Duration
	settle     time.Duration
	reloadMu   sync.Mutex
	lastReload time.Time
}

// KeyPairOption configures a KeyPair.
type KeyPairOption func(*KeyPair)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) KeyPairOption {
	return func(k *KeyPair) {
		k.logger = logger
	}
}

// WithDebounce collapses change events closer together than d into one
// reload.
func WithDebounce(d time.Duration) KeyPairOption {
	return func(k *KeyPair) {
		k.debounce = d
	}
}

// NewKeyPair loads the certificate and key files.
func NewKeyPair(certFile, keyFile string, opts ...KeyPairOption) (*KeyPair, error) {
	k := &KeyPair{
		certFile: filepath.Clean(certFile),
		keyFile:  filepath.Clean(keyFile),
		logger:   slog.Default(),
		debounce: 500 * time.Millisecond,
		settle:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(k)
	}
	if err := k.Reload(); err != nil {
		return nil, fmt.Errorf("tlsroots: initial load: %w", err)
	}
	return k, nil
}

// Reload reads both files again. The previous certificate stays in use
// when they do not form a valid pair.
func (k *KeyPair) Reload() error {
	cert, err := tls.LoadX509KeyPair(k.certFile, k.keyFile)
	if err != nil {
		return fmt.Errorf("load key pair: %w", err)
	}
	if cert.Leaf == nil && len(cert.Certificate) > 0 {
		if leaf, err := x509.ParseCertificate(cert.Certificate[0]); err == nil {
			cert.Leaf = leaf
		}
	}
	k.cert.Store(&cert)
	if cert.Leaf != nil {
		k.logger.Info("certificate loaded", "cert_file", k.certFile,
			"subject", cert.Leaf.Subject.CommonName, "not_after", cert.Leaf.NotAfter)
	}
	return nil
}

// GetCertificate returns the current certificate. It has the signature
// of tls.Config.GetCertificate.
func (k *KeyPair) GetCertificate(*tls.ClientHelloInfo) (*tls.Certificate, error) {
	return k.cert.Load(), nil
}

// NotAfter returns the expiry of the current certificate.
func (k *KeyPair) NotAfter() time.Time {
	if c := k.cert.Load(); c != nil && c.Leaf != nil {
		return c.Leaf.NotAfter
	}
	return time.Time{}
}

// Watch reloads the pair whenever either file is written, until ctx is
// cancelled.
func (k *KeyPair) Watch(ctx context.Context) error {
	w, err := fswatch.New(fswatch.WithLogger(k.logger))
	if err != nil {
		return fmt.Errorf("tlsroots: create watcher: %w", err)
	}
	defer w.Stop()

	for _, f := range []string{k.certFile, k.keyFile} {
		if err := w.Watch(f); err != nil {
			return fmt.Errorf("tlsroots: watch %s: %w", f, err)
		}
	}
	w.OnChange(func(path string) {
		if err := k.debouncedReload(); err != nil {
			k.logger.Error("certificate reload failed", "file", path, "error", err)
		}
	})
	w.Run(ctx)
	return nil
}

func (k *KeyPair) debouncedReload() error {
	k.reloadMu.Lock()
	defer k.reloadMu.Unlock()

	now := time.Now()
	if now.Sub(k.lastReload) < k.debounce {
		return nil
	}
	k.lastReload = now

	// Let the writer finish the second file of the pair.
	time.Sleep(k.settle)
	return k.Reload()
}
