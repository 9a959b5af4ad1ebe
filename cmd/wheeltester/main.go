package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "wheeltester: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "wheeltester",
		Usage: "Test Python package installs on arm64 containers",
		Flags: globalFlags,
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "Run every catalog package against every container and installer",
				Flags:  runFlags,
				Action: runAction,
			},
			{
				Name:      "summarize",
				Usage:     "Print a per-package summary of one or more results files",
				ArgsUsage: "[results.json[.xz] ...]",
				Flags:     summarizeFlags,
				Action:    summarizeAction,
			},
		},
	}
}

func loggerFromContext(c *cli.Context) (*slog.Logger, error) {
	return newLogger(c.App.ErrWriter, c.String(LogLevelFlag.Name), c.String(LogFormatFlag.Name))
}
