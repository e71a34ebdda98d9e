package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

type typeRow struct {
	Name         string   `json:"name" yaml:"name"`
	Capabilities []string `json:"capabilities" yaml:"capabilities"`
	Attributes   []string `json:"attributes" yaml:"attributes"`
	Fingerprint  string   `json:"fingerprint" yaml:"fingerprint" table:"wide"`
}

type attributeRow struct {
	Name    string `json:"name" yaml:"name"`
	Kind    string `json:"kind" yaml:"kind"`
	Owner   string `json:"owner" yaml:"owner"`
	Derived bool   `json:"derived" yaml:"derived"`
}

// TypesCommand lists the registered snapshot types, or the attributes of
// one type.
func TypesCommand() *cli.Command {
	return &cli.Command{
		Name:      "types",
		Usage:     "List snapshot types or describe one",
		ArgsUsage: "[TYPE]",
		Action:    typesAction,
	}
}

func typesAction(c *cli.Context) error {
	s, err := sessionFrom(c)
	if err != nil {
		return err
	}

	if name := c.Args().First(); name != "" {
		typ, err := s.Types.Lookup(name)
		if err != nil {
			return err
		}
		var rows []attributeRow
		for _, attrName := range typ.AttributeNames() {
			attr, _ := typ.Attribute(attrName)
			rows = append(rows, attributeRow{
				Name:    attr.Name,
				Kind:    attr.Kind.String(),
				Owner:   typ.Owner(attr.Name),
				Derived: attr.Derived,
			})
		}
		return printResult(c, rows)
	}

	var rows []typeRow
	for _, typ := range s.Types.Types() {
		rows = append(rows, typeRow{
			Name:         typ.Name(),
			Capabilities: typ.CapabilityNames(),
			Attributes:   typ.AttributeNames(),
			Fingerprint:  fmt.Sprintf("%016x", typ.Fingerprint()),
		})
	}
	return printResult(c, rows)
}
