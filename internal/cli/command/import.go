package command

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/urfave/cli/v2"
	"golang.org/x/time/rate"

	"github.com/yndnr/trajsnap/internal/cli/output"
	"github.com/yndnr/trajsnap/internal/core/document"
	"github.com/yndnr/trajsnap/internal/infra/fswatch"
	"github.com/yndnr/trajsnap/internal/server/httpserver"
	"github.com/yndnr/trajsnap/internal/storage"
)

// documentExtensions are the file extensions import picks up.
var documentExtensions = []string{".yaml", ".yml", ".json"}

type importRow struct {
	File  string `json:"file" yaml:"file"`
	ID    string `json:"id" yaml:"id"`
	Type  string `json:"type" yaml:"type"`
	Error string `json:"error,omitempty" yaml:"error,omitempty"`
}

// ImportCommand stores every document in the given files and directories.
func ImportCommand() *cli.Command {
	return &cli.Command{
		Name:      "import",
		Usage:     "Create snapshots from document files or directories",
		ArgsUsage: "PATH...",
		Flags: []cli.Flag{
			&cli.Float64Flag{
				Name:  "rate",
				Usage: "Documents per second (0 = unlimited, default from import.rate)",
			},
			&cli.IntFlag{
				Name:  "burst",
				Usage: "Documents allowed at once when --rate is set",
			},
			&cli.BoolFlag{
				Name:  "keep-going",
				Usage: "Report failed documents and continue",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a progress counter on stderr",
			},
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "Keep running and import documents as they are written",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve /metrics on this address while watching",
			},
		},
		Action: importAction,
	}
}

type importer struct {
	store   *storage.Store
	session *Session
	limiter *rate.Limiter
}

func (im *importer) importFile(ctx context.Context, path string) importRow {
	row := importRow{File: path}
	if err := im.limiter.Wait(ctx); err != nil {
		row.Error = err.Error()
		return row
	}
	doc, err := document.ReadFile(path)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	snap, err := doc.Build(im.session.Types)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	tok, err := im.store.Save(ctx, snap)
	if err != nil {
		row.Error = err.Error()
		return row
	}
	row.ID, row.Type = tok.String(), doc.Type
	return row
}

func importAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("import: expected at least one PATH")
	}
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	st, err := s.Store()
	if err != nil {
		return err
	}

	limit, burst := s.Config.Import.Rate, s.Config.Import.Burst
	if c.IsSet("rate") {
		limit = c.Float64("rate")
	}
	if c.IsSet("burst") {
		burst = c.Int("burst")
	}
	im := &importer{store: st, session: s, limiter: newLimiter(limit, burst)}

	files, err := collectDocuments(c.Args().Slice())
	if err != nil {
		return err
	}

	var bar *output.ProgressBar
	if c.Bool("progress") {
		bar = output.NewCounter(errWriter(c), "importing")
		bar.SetTotal(int64(len(files)))
	}
	rows := make([]importRow, 0, len(files))
	var failed int
	for _, path := range files {
		row := im.importFile(c.Context, path)
		if bar != nil {
			bar.Increment(1)
		}
		if row.Error != "" {
			failed++
			if !c.Bool("keep-going") {
				if bar != nil {
					bar.Finish()
				}
				return fmt.Errorf("%s: %s", path, row.Error)
			}
		}
		rows = append(rows, row)
	}
	if bar != nil {
		bar.Finish()
	}
	s.Logger.Info("import finished", "files", len(files), "failed", failed)
	if err := printResult(c, rows); err != nil {
		return err
	}

	if c.Bool("watch") {
		return watchDocuments(c, im)
	}
	if failed > 0 {
		return fmt.Errorf("import: %d of %d documents failed", failed, len(files))
	}
	return nil
}

func newLimiter(limit float64, burst int) *rate.Limiter {
	if limit <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Limit(limit), max(burst, 1))
}

// collectDocuments expands directories into the document files below
// them, sorted. Files named explicitly are kept whatever their extension.
func collectDocuments(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && slices.Contains(documentExtensions, filepath.Ext(path)) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		slices.Sort(found)
		files = append(files, found...)
	}
	return files, nil
}

// watchDocuments imports documents as they are written until the command
// context is cancelled.
func watchDocuments(c *cli.Context, im *importer) error {
	s := im.session
	w, err := fswatch.New(
		fswatch.WithLogger(s.Logger),
		fswatch.WithExtensions(documentExtensions...),
	)
	if err != nil {
		return err
	}
	defer w.Stop()

	for _, p := range c.Args().Slice() {
		if err := w.Watch(p); err != nil {
			return err
		}
	}

	out := outWriter(c)
	w.OnChange(func(path string) {
		row := im.importFile(c.Context, path)
		if row.Error != "" {
			s.Logger.Warn("import failed", "file", path, "error", row.Error)
			return
		}
		fmt.Fprintf(out, "imported %s as %s\n", path, row.ID)
	})

	if addr := c.String("metrics-addr"); addr != "" {
		if err := serveMetrics(s, addr); err != nil {
			return err
		}
	}

	fmt.Fprintln(errWriter(c), "watching for documents, press Ctrl-C to stop")
	w.Run(c.Context)
	return nil
}

// serveMetrics exposes the session registry over HTTP until the session
// closes.
func serveMetrics(s *Session, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", s.Metrics.Handler())
	srv := httpserver.New(httpserver.Config{Addr: addr, ShutdownTimeout: 2 * time.Second}, mux, s.Logger)
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()
	s.Logger.Info("serving metrics", "addr", srv.Addr())
	s.OnClose(func() error {
		cancel()
		return <-done
	})
	return nil
}
