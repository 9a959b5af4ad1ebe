package main

import (
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/infra/results"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/report"
)

func summarizeAction(c *cli.Context) error {
	paths := c.Args().Slice()
	if len(paths) == 0 {
		latest, err := results.Latest(c.String(OutputDirFlag.Name))
		if err != nil {
			return cli.Exit(err.Error(), 1)
		}
		paths = []string{latest}
	}

	out, err := summarizeFiles(paths, c.StringSlice(IgnoreFlag.Name))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	fmt.Fprint(c.App.Writer, out)
	return nil
}

func summarizeFiles(paths []string, ignore []string) (string, error) {
	sources := make([]report.Source, 0, len(paths))
	for _, path := range paths {
		table, err := results.Load(path)
		if err != nil {
			return "", err
		}
		sources = append(sources, report.Source{Name: filepath.Base(path), Table: table})
	}
	return report.Format(report.Summarize(sources, ignore)), nil
}
