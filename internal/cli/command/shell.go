package command

import (
	"context"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trajsnap/internal/cli/repl"
)

// historyFileName is created in the user's home directory.
const historyFileName = ".snapctl_history"

// lineReaderKey lets callers supply the shell input through App.Metadata.
const lineReaderKey = "line-reader"

// ShellCommand starts an interactive session. All lines share one
// session, so snapshots created with the memory engine stay reachable
// until the shell exits.
func ShellCommand() *cli.Command {
	return &cli.Command{
		Name:  "shell",
		Usage: "Start an interactive shell",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "history",
				Usage: "History file (default ~/" + historyFileName + ")",
			},
			&cli.BoolFlag{
				Name:  "no-history",
				Usage: "Do not record history",
			},
		},
		Action: shellAction,
	}
}

func shellAction(c *cli.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	opts := []repl.Option{
		repl.WithOutput(errWriter(c)),
		repl.WithCompleter(repl.NewCompleter(shellCommands(), storedIDs(s))),
	}
	if !c.Bool("no-history") {
		if path := historyPath(c.String("history")); path != "" {
			opts = append(opts, repl.WithHistoryFile(path))
		}
	}
	if lr, ok := c.App.Metadata[lineReaderKey].(repl.LineReader); ok {
		opts = append(opts, repl.WithReader(lr))
	}

	r, err := repl.New(shellExecutor(c, s), opts...)
	if err != nil {
		return err
	}
	return r.Run(c.Context)
}

// shellExecutor runs one line as a fresh app over the shared session.
func shellExecutor(c *cli.Context, s *Session) repl.Executor {
	return func(ctx context.Context, args []string) error {
		if len(args) > 0 && args[0] == "shell" {
			return nil
		}
		inner := newApp(s)
		inner.Writer = c.App.Writer
		inner.ErrWriter = c.App.ErrWriter
		inner.Reader = c.App.Reader
		return inner.RunContext(ctx, append([]string{inner.Name}, args...))
	}
}

// shellCommands lists what the shell can complete; nested shells are not offered.
func shellCommands() []*cli.Command {
	var out []*cli.Command
	for _, cmd := range newApp(nil).Commands {
		if cmd.Name != "shell" {
			out = append(out, cmd)
		}
	}
	return out
}

func historyPath(flag string) string {
	if flag != "" {
		return flag
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, historyFileName)
}
