package command

import (
	"crypto/tls"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trajsnap/internal/config"
	"github.com/yndnr/trajsnap/internal/infra/tlsroots"
	"github.com/yndnr/trajsnap/internal/server/httpserver"
	"github.com/yndnr/trajsnap/internal/server/httpserver/handler"
)

// ServeCommand serves the store over HTTP until interrupted.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the snapshot API over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address, host:port or unix:PATH (default from server.addr)",
			},
			&cli.StringFlag{
				Name:  "tls-cert",
				Usage: "Server certificate (PEM); enables HTTPS with --tls-key",
			},
			&cli.StringFlag{
				Name:  "tls-key",
				Usage: "Server private key (PEM)",
			},
			&cli.StringFlag{
				Name:  "client-ca",
				Usage: "CA file or directory; clients must present a certificate it signed",
			},
			&cli.StringSliceFlag{
				Name:  "admin-allow",
				Usage: "Address or CIDR allowed to call /v1/admin (repeatable)",
			},
			&cli.Float64Flag{
				Name:  "rate-limit",
				Usage: "Requests per second per client (0 = unlimited)",
			},
		},
		Action: serveAction,
	}
}

// serverSection applies the serve flags to the configured server section.
func serverSection(c *cli.Context, cfg *config.Config) (config.ServerSection, error) {
	srv := cfg.Server
	if c.IsSet("addr") {
		srv.Addr = c.String("addr")
	}
	if c.IsSet("tls-cert") {
		srv.TLS.CertFile = c.String("tls-cert")
	}
	if c.IsSet("tls-key") {
		srv.TLS.KeyFile = c.String("tls-key")
	}
	if c.IsSet("client-ca") {
		srv.TLS.ClientCAFile = c.String("client-ca")
	}
	if c.IsSet("admin-allow") {
		srv.AdminAllow = c.StringSlice("admin-allow")
	}
	if c.IsSet("rate-limit") {
		srv.RateLimit = c.Float64("rate-limit")
	}

	check := *cfg
	check.Server = srv
	if err := config.Verify(&check); err != nil {
		return srv, fmt.Errorf("serve: %w", err)
	}
	return srv, nil
}

func serveAction(c *cli.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	srvCfg, err := serverSection(c, s.Config)
	if err != nil {
		return err
	}
	st, err := s.Store()
	if err != nil {
		return err
	}

	tlsCfg, err := serverTLS(c, s, srvCfg.TLS)
	if err != nil {
		return err
	}
	router, err := httpserver.NewRouter(httpserver.RouterConfig{
		Handler:        handler.New(st, s.Types, s.Logger),
		Logger:         s.Logger,
		Metrics:        s.Metrics,
		RateLimit:      srvCfg.RateLimit,
		Burst:          srvCfg.Burst,
		AdminAllowList: srvCfg.AdminAllow,
	})
	if err != nil {
		return err
	}

	srv := httpserver.New(httpserver.Config{
		Addr:              srvCfg.Addr,
		TLS:               tlsCfg,
		ReadHeaderTimeout: srvCfg.ReadHeaderTimeout,
		ShutdownTimeout:   srvCfg.ShutdownTimeout,
	}, router, s.Logger)
	if err := srv.Listen(); err != nil {
		return err
	}
	fmt.Fprintf(errWriter(c), "serving on %s, press Ctrl-C to stop\n", srv.URL())
	return srv.Serve(c.Context)
}

// serverTLS loads the key pair and client CAs, and keeps the key pair
// reloading from disk until the command ends. It returns nil when TLS is
// not configured.
func serverTLS(c *cli.Context, s *Session, cfg config.TLSSection) (*tls.Config, error) {
	if !cfg.Enabled() {
		return nil, nil
	}
	kp, err := tlsroots.NewKeyPair(cfg.CertFile, cfg.KeyFile, tlsroots.WithLogger(s.Logger))
	if err != nil {
		return nil, err
	}
	var clientCAs *tlsroots.Pool
	if cfg.ClientCAFile != "" {
		if clientCAs, err = tlsroots.LoadPool(cfg.ClientCAFile); err != nil {
			return nil, err
		}
	}
	go func() {
		if err := kp.Watch(c.Context); err != nil {
			s.Logger.Warn("certificate reload disabled", "error", err)
		}
	}()
	s.Logger.Info("tls enabled", "cert", cfg.CertFile, "not_after", kp.NotAfter(), "client_auth", clientCAs != nil)
	return tlsroots.ServerConfig(kp, clientCAs), nil
}
