package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/trajsnap/internal/cli/output"
	"github.com/yndnr/trajsnap/internal/core/document"
	"github.com/yndnr/trajsnap/internal/core/domain"
	"github.com/yndnr/trajsnap/internal/core/snapshot"
	"github.com/yndnr/trajsnap/internal/storage"
)

// snapshotView is the table form of a snapshot.
type snapshotView struct {
	ID         string   `yaml:"id"`
	Type       string   `yaml:"type"`
	Reversed   bool     `yaml:"reversed"`
	Partner    string   `yaml:"partner"`
	Topology   string   `yaml:"topology"`
	NAtoms     int      `yaml:"n_atoms"`
	Attributes []string `yaml:"attributes"`
}

type listRow struct {
	ID       string    `yaml:"id"`
	Type     string    `yaml:"type"`
	Reversed bool      `yaml:"reversed"`
	Topology string    `yaml:"topology"`
	Partner  string    `yaml:"partner" table:"wide"`
	Mirrored bool      `yaml:"mirrored" table:"wide"`
	StoredAt time.Time `yaml:"stored_at"`
}

type equalResult struct {
	First    string `json:"first" yaml:"first"`
	Second   string `json:"second" yaml:"second"`
	Equal    bool   `json:"equal" yaml:"equal"`
	Partners bool   `json:"partners" yaml:"partners"`
}

// CreateCommand stores the snapshot described by a document.
func CreateCommand() *cli.Command {
	return &cli.Command{
		Name:      "create",
		Usage:     "Create a snapshot from a YAML or JSON document",
		ArgsUsage: "FILE|-",
		Action:    createAction,
	}
}

// ShowCommand prints a stored snapshot.
func ShowCommand() *cli.Command {
	return &cli.Command{
		Name:      "show",
		Aliases:   []string{"get"},
		Usage:     "Show a stored snapshot",
		ArgsUsage: "ID",
		Action:    showAction,
	}
}

// ReverseCommand prints the reversal partner of a stored snapshot.
func ReverseCommand() *cli.Command {
	return &cli.Command{
		Name:      "reverse",
		Usage:     "Show the time-reversed partner of a snapshot",
		ArgsUsage: "ID",
		Action:    reverseAction,
	}
}

// EqualCommand compares two snapshots by identity.
func EqualCommand() *cli.Command {
	return &cli.Command{
		Name:      "equal",
		Usage:     "Report whether two IDs name the same snapshot",
		ArgsUsage: "ID ID",
		Action:    equalAction,
	}
}

// ListCommand lists stored snapshot records.
func ListCommand() *cli.Command {
	return &cli.Command{
		Name:    "list",
		Aliases: []string{"ls"},
		Usage:   "List stored snapshots",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "type",
				Usage: "Only list snapshots of this type",
			},
			&cli.BoolFlag{
				Name:  "forward",
				Usage: "Hide reversed records",
			},
		},
		Action: listAction,
	}
}

// DeleteCommand removes snapshots together with their partners.
func DeleteCommand() *cli.Command {
	return &cli.Command{
		Name:      "delete",
		Aliases:   []string{"rm"},
		Usage:     "Delete snapshots and their reversal partners",
		ArgsUsage: "ID...",
		Action:    deleteAction,
	}
}

func createAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("create: expected FILE or -")
	}
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	doc, err := readDocument(c, c.Args().First())
	if err != nil {
		return err
	}
	snap, err := doc.Build(s.Types)
	if err != nil {
		return err
	}
	st, err := s.Store()
	if err != nil {
		return err
	}
	if _, err := st.Save(c.Context, snap); err != nil {
		return err
	}
	return printSnapshot(c, snap)
}

func readDocument(c *cli.Context, path string) (*document.Document, error) {
	if path != "-" {
		return document.ReadFile(path)
	}
	data, err := readInput(c, path)
	if err != nil {
		return nil, err
	}
	return document.Parse(data)
}

// readInput returns the contents of path, or of stdin for "-".
func readInput(c *cli.Context, path string) ([]byte, error) {
	if path != "-" {
		return os.ReadFile(path)
	}
	var in io.Reader = os.Stdin
	if c.App.Reader != nil {
		in = c.App.Reader
	}
	data, err := io.ReadAll(in)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	return data, nil
}

func showAction(c *cli.Context) error {
	snap, err := loadArg(c)
	if err != nil {
		return err
	}
	return printSnapshot(c, snap)
}

func reverseAction(c *cli.Context) error {
	snap, err := loadArg(c)
	if err != nil {
		return err
	}
	partner, err := snap.Reversed(c.Context)
	if err != nil {
		return err
	}
	return printSnapshot(c, partner)
}

func equalAction(c *cli.Context) error {
	if c.NArg() != 2 {
		return fmt.Errorf("equal: expected two IDs")
	}
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	first, err := domain.ParseIdentityToken(c.Args().Get(0))
	if err != nil {
		return err
	}
	second, err := domain.ParseIdentityToken(c.Args().Get(1))
	if err != nil {
		return err
	}
	st, err := s.Store()
	if err != nil {
		return err
	}

	cmp, err := st.Compare(c.Context, first, second)
	if err != nil {
		return err
	}
	return printResult(c, equalResult{
		First:    first.String(),
		Second:   second.String(),
		Equal:    cmp.Equal,
		Partners: cmp.Partners,
	})
}

func listAction(c *cli.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	st, err := s.Store()
	if err != nil {
		return err
	}
	infos, err := st.List(c.Context)
	if err != nil {
		return err
	}

	typeName := c.String("type")
	infos = slices.DeleteFunc(infos, func(info storage.Info) bool {
		return (typeName != "" && info.Type != typeName) || (c.Bool("forward") && info.Reversed)
	})
	return printInfos(c, infos)
}

// printInfos prints stored records, as rows with local times for tables.
func printInfos(c *cli.Context, infos []storage.Info) error {
	if !isTable(c) {
		return printResult(c, infos)
	}
	rows := make([]listRow, 0, len(infos))
	for _, info := range infos {
		rows = append(rows, listRow{
			ID:       info.ID,
			Type:     info.Type,
			Reversed: info.Reversed,
			Topology: info.Topology,
			Partner:  info.Partner,
			Mirrored: info.Mirrored,
			StoredAt: time.UnixMilli(info.StoredAt),
		})
	}
	return printResult(c, rows)
}

func deleteAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return fmt.Errorf("delete: expected at least one ID")
	}
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}
	st, err := s.Store()
	if err != nil {
		return err
	}
	for _, arg := range c.Args().Slice() {
		tok, err := domain.ParseIdentityToken(arg)
		if err != nil {
			return err
		}
		if err := st.Delete(c.Context, tok); err != nil {
			return err
		}
		fmt.Fprintf(outWriter(c), "deleted %s\n", tok)
	}
	return nil
}

// loadArg loads the snapshot named by the only argument.
func loadArg(c *cli.Context) (*snapshot.Snapshot, error) {
	if c.NArg() != 1 {
		return nil, fmt.Errorf("%s: expected one ID", c.Command.Name)
	}
	tok, err := domain.ParseIdentityToken(c.Args().First())
	if err != nil {
		return nil, err
	}
	s, err := sessionFrom(c)
	if err != nil {
		return nil, err
	}
	st, err := s.Store()
	if err != nil {
		return nil, err
	}
	return st.Load(c.Context, tok)
}

func printSnapshot(c *cli.Context, snap *snapshot.Snapshot) error {
	doc, err := document.FromSnapshot(snap)
	if err != nil {
		return err
	}
	return printDocument(c, doc)
}

// printDocument prints doc in full, or as a summary row for tables.
func printDocument(c *cli.Context, doc *document.Document) error {
	if !isTable(c) {
		return printResult(c, doc)
	}
	view := snapshotView{
		ID:         doc.ID,
		Type:       doc.Type,
		Reversed:   doc.Reversed,
		Partner:    doc.Partner,
		Attributes: doc.AttributeNames(),
	}
	if doc.Topology != nil {
		view.Topology = doc.Topology.Name
		view.NAtoms = doc.Topology.NAtoms
	}
	return printResult(c, view)
}

// isTable reports whether the effective output format is the table.
func isTable(c *cli.Context) bool {
	s, err := sessionFrom(c)
	if err != nil {
		return true
	}
	name := s.Config.Output.Format
	if c.IsSet("output") {
		name = c.String("output")
	}
	format, err := output.ParseFormat(name)
	return err == nil && format == output.FormatTable
}

// storedIDs returns the stored IDs starting with prefix, for completion.
func storedIDs(s *Session) func(prefix string) []string {
	return func(prefix string) []string {
		st, err := s.Store()
		if err != nil {
			return nil
		}
		infos, err := st.List(context.Background())
		if err != nil {
			return nil
		}
		var out []string
		for _, info := range infos {
			if strings.HasPrefix(info.ID, prefix) {
				out = append(out, info.ID)
			}
		}
		return out
	}
}
