package repl

import (
	"strings"

	"github.com/chzyer/readline"
	"github.com/urfave/cli/v2"
)

// Builtins are handled by the loop itself.
var Builtins = []string{"exit", "quit"}

// NewCompleter builds tab completion from a command tree. Commands whose
// ArgsUsage mentions an ID complete their arguments with ids().
func NewCompleter(commands []*cli.Command, ids func(prefix string) []string) *readline.PrefixCompleter {
	items := commandItems(commands, ids)
	for _, b := range Builtins {
		items = append(items, readline.PcItem(b))
	}
	return readline.NewPrefixCompleter(items...)
}

func commandItems(commands []*cli.Command, ids func(string) []string) []readline.PrefixCompleterInterface {
	var items []readline.PrefixCompleterInterface
	for _, cmd := range commands {
		if cmd.Hidden {
			continue
		}
		var children []readline.PrefixCompleterInterface
		children = append(children, commandItems(cmd.Subcommands, ids)...)
		if ids != nil && strings.Contains(cmd.ArgsUsage, "ID") {
			children = append(children, readline.PcItemDynamic(ids))
		}
		for _, name := range cmd.Names() {
			items = append(items, readline.PcItem(name, children...))
		}
	}
	return items
}
