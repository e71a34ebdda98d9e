package command

import (
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/trajsnap/internal/cli/output"
	"github.com/yndnr/trajsnap/internal/config"
	"github.com/yndnr/trajsnap/internal/infra/buildinfo"
	"github.com/yndnr/trajsnap/internal/telemetry/logger"
)

const (
	sessionKey = "session"
	sharedKey  = "shared-session"
)

// App creates the CLI application.
func App() *cli.App {
	return newApp(nil)
}

// newApp builds the command tree. A non-nil shared session is used as is
// and left open when the app finishes.
func newApp(shared *Session) *cli.App {
	app := &cli.App{
		Name:     "snapctl",
		Usage:    "Compose, store and inspect trajectory snapshots",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			TypesCommand(),
			CreateCommand(),
			ImportCommand(),
			ShowCommand(),
			ReverseCommand(),
			EqualCommand(),
			ListCommand(),
			DeleteCommand(),
			BackupCommand(),
			RestoreCommand(),
			GCCommand(),
			StatsCommand(),
			ServeCommand(),
			RemoteCommand(),
			VersionCommand(),
			ShellCommand(),
		},
		Before:         before,
		After:          after,
		ExitErrHandler: func(*cli.Context, error) {},
	}
	if shared != nil {
		app.Metadata[sessionKey] = shared
		app.Metadata[sharedKey] = true
	}
	return app
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Configuration file (YAML)",
			EnvVars: []string{"TRAJSNAP_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "env-file",
			Usage: "Load environment variables from this file when it exists",
			Value: ".env",
		},
		&cli.StringFlag{
			Name:  "engine",
			Usage: "Storage engine: badger, sqlite, memory",
		},
		&cli.StringFlag{
			Name:    "data-dir",
			Aliases: []string{"d"},
			Usage:   "Storage directory for the durable engines",
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
		},
		&cli.BoolFlag{
			Name:    "wide",
			Aliases: []string{"w"},
			Usage:   "Show wide output (more columns)",
		},
		&cli.StringFlag{
			Name:  "log-level",
			Usage: "Log level: debug, info, warn, error",
		},
		&cli.StringFlag{
			Name:  "log-format",
			Usage: "Log format: text, json",
		},
		&cli.BoolFlag{
			Name:  "metrics",
			Usage: "Write collected metrics to stderr when the command ends",
		},
		&cli.StringFlag{
			Name:  "backup-key-file",
			Usage: "File holding the backup encryption key (hex or base64, 32 bytes)",
		},
	}
}

// flagOverrides maps the global flags the user set to configuration keys.
func flagOverrides(c *cli.Context) map[string]any {
	keys := map[string]string{
		"engine":          "storage.engine",
		"data-dir":        "storage.data_dir",
		"output":          "output.format",
		"log-level":       "log.level",
		"log-format":      "log.format",
		"backup-key-file": "security.backup_key_file",
	}
	out := make(map[string]any)
	for flag, key := range keys {
		if c.IsSet(flag) {
			out[key] = c.String(flag)
		}
	}
	if c.IsSet("metrics") {
		out["metrics.enabled"] = c.Bool("metrics")
	}
	return out
}

func before(c *cli.Context) error {
	if shared, _ := c.App.Metadata[sharedKey].(bool); shared {
		s := c.App.Metadata[sessionKey].(*Session)
		c.Context = logger.WithLogger(c.Context, s.Logger)
		return nil
	}

	if path := c.String("env-file"); path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err != nil {
				return fmt.Errorf("load env file: %w", err)
			}
		}
	}

	cfg, err := config.Load(c.String("config"), flagOverrides(c))
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.LoggerConfig(errWriter(c)))
	if err != nil {
		return err
	}
	log.Debug("configuration loaded", "config", config.Sanitize(cfg))

	s, err := NewSession(cfg, log)
	if err != nil {
		return err
	}
	c.App.Metadata[sessionKey] = s
	c.Context = logger.WithLogger(c.Context, log)
	return nil
}

func after(c *cli.Context) error {
	s, ok := c.App.Metadata[sessionKey].(*Session)
	if shared, _ := c.App.Metadata[sharedKey].(bool); !ok || shared {
		return nil
	}
	if s.Config.Metrics.Enabled {
		if err := s.Metrics.WriteText(errWriter(c)); err != nil {
			return err
		}
	}
	return s.Close()
}

// sessionFrom returns the session installed by before.
func sessionFrom(c *cli.Context) (*Session, error) {
	if s, ok := c.App.Metadata[sessionKey].(*Session); ok {
		return s, nil
	}
	return nil, fmt.Errorf("%s: no session", c.Command.FullName())
}

// printResult writes data in the configured output format.
func printResult(c *cli.Context, data any) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	name := s.Config.Output.Format
	if c.IsSet("output") {
		name = c.String("output")
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return err
	}
	return output.NewFormatter(format, c.Bool("wide")).Format(outWriter(c), data)
}

func outWriter(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func errWriter(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
