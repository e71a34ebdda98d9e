package main

import (
	"context"
	"os"

	"github.com/yndnr/trajsnap/internal/cli/command"
	"github.com/yndnr/trajsnap/internal/infra/shutdown"
)

func main() {
	ctx, stop := shutdown.WithSignals(context.Background())
	err := command.App().RunContext(ctx, os.Args)
	stop()
	if err != nil {
		command.PrintError("%v", err)
		os.Exit(1)
	}
}
