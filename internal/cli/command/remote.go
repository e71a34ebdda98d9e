package command

import (
	"crypto/tls"
	"fmt"
	"net/http"
	"net/url"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trajsnap/internal/cli/connection"
	"github.com/yndnr/trajsnap/internal/core/document"
	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/infra/tlsroots"
	"github.com/yndnr/trajsnap/internal/server/httpserver/handler"
	"github.com/yndnr/trajsnap/internal/storage"
)

// RemoteCommand runs snapshot commands against a snapctl serve instance.
func RemoteCommand() *cli.Command {
	return &cli.Command{
		Name:  "remote",
		Usage: "Run commands against a running snapctl serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "server",
				Aliases: []string{"s"},
				Usage:   "Server address: host:port, URL or unix:PATH (default from server.addr)",
				EnvVars: []string{"TRAJSNAP_SERVER"},
			},
			&cli.StringFlag{
				Name:  "ca-file",
				Usage: "CA file or directory used to verify the server; implies https",
			},
			&cli.StringFlag{
				Name:  "cert",
				Usage: "Client certificate (PEM) for servers that require one",
			},
			&cli.StringFlag{
				Name:  "key",
				Usage: "Client private key (PEM)",
			},
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "Per-request timeout",
				Value: connection.DefaultTimeout,
			},
		},
		Subcommands: []*cli.Command{
			{
				Name:   "health",
				Usage:  "Check that the server is ready",
				Action: remoteHealthAction,
			},
			{
				Name:      "types",
				Usage:     "List snapshot types or describe one",
				ArgsUsage: "[TYPE]",
				Action:    remoteTypesAction,
			},
			{
				Name:      "create",
				Usage:     "Create a snapshot from a YAML or JSON document",
				ArgsUsage: "FILE|-",
				Action:    remoteCreateAction,
			},
			{
				Name:      "show",
				Aliases:   []string{"get"},
				Usage:     "Show a stored snapshot",
				ArgsUsage: "ID",
				Action:    remoteShowAction(""),
			},
			{
				Name:      "reverse",
				Usage:     "Show the time-reversed partner of a snapshot",
				ArgsUsage: "ID",
				Action:    remoteShowAction("/reversed"),
			},
			{
				Name:      "equal",
				Usage:     "Report whether two IDs name the same snapshot",
				ArgsUsage: "ID ID",
				Action:    remoteEqualAction,
			},
			{
				Name:    "list",
				Aliases: []string{"ls"},
				Usage:   "List stored snapshots",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "type", Usage: "Only list snapshots of this type"},
					&cli.BoolFlag{Name: "forward", Usage: "Hide reversed records"},
				},
				Action: remoteListAction,
			},
			{
				Name:      "delete",
				Aliases:   []string{"rm"},
				Usage:     "Delete snapshots and their reversal partners",
				ArgsUsage: "ID...",
				Action:    remoteDeleteAction,
			},
			{
				Name:   "stats",
				Usage:  "Show storage statistics",
				Action: remoteStatsAction,
			},
			{
				Name:      "backup",
				Usage:     "Download an unsealed backup of the server store to FILE",
				ArgsUsage: "FILE",
				Action:    remoteBackupAction,
			},
		},
	}
}

// remoteClient builds the client from the remote flags.
func remoteClient(c *cli.Context) (*connection.HTTPClient, error) {
	s, err := sessionFrom(c)
	if err != nil {
		return nil, err
	}
	server := c.String("server")
	if server == "" {
		server = s.Config.Server.Addr
	}

	opts := []connection.Option{connection.WithTimeout(c.Duration("timeout"))}
	if c.IsSet("ca-file") || c.IsSet("cert") {
		cfg := &tls.Config{MinVersion: tls.VersionTLS12}
		if path := c.String("ca-file"); path != "" {
			pool, err := tlsroots.LoadPool(path)
			if err != nil {
				return nil, err
			}
			cfg.RootCAs = pool.Pool()
		}
		if c.String("cert") != "" {
			cert, err := tls.LoadX509KeyPair(c.String("cert"), c.String("key"))
			if err != nil {
				return nil, fmt.Errorf("client certificate: %w", err)
			}
			cfg.Certificates = []tls.Certificate{cert}
		}
		opts = append(opts, connection.WithTLS(cfg))
	}
	return connection.NewHTTPClient(server, opts...), nil
}

// remoteCall builds the client and performs one call.
func remoteCall(c *cli.Context, method, path string, body []byte, target any) error {
	client, err := remoteClient(c)
	if err != nil {
		return err
	}
	return client.Call(c.Context, method, path, body, target)
}

// tokenPath validates arg as an identity token and returns its resource path.
func tokenPath(arg string) (string, error) {
	tok, err := domain.ParseIdentityToken(arg)
	if err != nil {
		return "", err
	}
	return "/v1/snapshots/" + tok.String(), nil
}

func remoteHealthAction(c *cli.Context) error {
	var status handler.HealthStatus
	if err := remoteCall(c, http.MethodGet, "/ready", nil, &status); err != nil {
		return err
	}
	return printResult(c, status)
}

func remoteTypesAction(c *cli.Context) error {
	if name := c.Args().First(); name != "" {
		var detail handler.TypeDetail
		if err := remoteCall(c, http.MethodGet, "/v1/types/"+url.PathEscape(name), nil, &detail); err != nil {
			return err
		}
		return printResult(c, detail.AttributeDetails)
	}
	var types []handler.TypeInfo
	if err := remoteCall(c, http.MethodGet, "/v1/types", nil, &types); err != nil {
		return err
	}
	return printResult(c, types)
}

func remoteCreateAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("create: expected FILE or -")
	}
	data, err := readInput(c, c.Args().First())
	if err != nil {
		return err
	}
	var doc document.Document
	if err := remoteCall(c, http.MethodPost, "/v1/snapshots", data, &doc); err != nil {
		return err
	}
	return printDocument(c, &doc)
}

// remoteShowAction prints the snapshot at the ID path plus suffix.
func remoteShowAction(suffix string) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("%s: expected one ID", c.Command.Name)
		}
		path, err := tokenPath(c.Args().First())
		if err != nil {
			return err
		}
		var doc document.Document
		if err := remoteCall(c, http.MethodGet, path+suffix, nil, &doc); err != nil {
			return err
		}
		return printDocument(c, &doc)
	}
}

func remoteEqualAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("equal: expected two IDs")
	}
	path, err := tokenPath(c.Args().Get(0))
	if err != nil {
		return err
	}
	other, err := domain.ParseIdentityToken(c.Args().Get(1))
	if err != nil {
		return err
	}
	var res handler.EqualResult
	if err := remoteCall(c, http.MethodGet, path+"/equal/"+other.String(), nil, &res); err != nil {
		return err
	}
	return printResult(c, equalResult{
		First:    res.First,
		Second:   res.Second,
		Equal:    res.Equal,
		Partners: res.Partners,
	})
}

func remoteListAction(c *cli.Context) error {
	q := url.Values{}
	if t := c.String("type"); t != "" {
		q.Set("type", t)
	}
	if c.Bool("forward") {
		q.Set("forward", "true")
	}
	path := "/v1/snapshots"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}
	var list handler.SnapshotList
	if err := remoteCall(c, http.MethodGet, path, nil, &list); err != nil {
		return err
	}
	return printInfos(c, list.Items)
}

func remoteDeleteAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("delete: expected at least one ID")
	}
	client, err := remoteClient(c)
	if err != nil {
		return err
	}
	for _, arg := range c.Args().Slice() {
		path, err := tokenPath(arg)
		if err != nil {
			return err
		}
		if err := client.Call(c.Context, http.MethodDelete, path, nil, nil); err != nil {
			return err
		}
		fmt.Fprintf(outWriter(c), "deleted %s\n", arg)
	}
	return nil
}

func remoteStatsAction(c *cli.Context) error {
	var stats handler.StatsResult
	if err := remoteCall(c, http.MethodGet, "/v1/admin/stats", nil, &stats); err != nil {
		return err
	}
	if stats.KVStats == nil {
		stats.KVStats = &storage.KVStats{}
	}
	return printResult(c, statsResult{
		Engine:    stats.Engine,
		Snapshots: stats.Snapshots,
		Cached:    stats.Cached,
		TotalKeys: stats.TotalKeys,
		TotalSize: stats.TotalSize,
		LSMSize:   stats.LSMSize,
		ValueLog:  stats.ValueLogSize,
		GCRuns:    stats.GCRuns,
	})
}

func remoteBackupAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("backup: expected FILE")
	}
	client, err := remoteClient(c)
	if err != nil {
		return err
	}
	path := c.Args().First()
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()

	n, err := client.Download(c.Context, "/v1/admin/backup", f)
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	fmt.Fprintf(outWriter(c), "backup written to %s (%d bytes)\n", path, n)
	return nil
}
