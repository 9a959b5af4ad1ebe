// Package report condenses one or more result tables into per-package badges.
package report

import (
	"slices"
	"strings"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

// Badge names shared by every package row.
const (
	BadgePerfectScore  = "perfect-score"
	BadgeAllPassed     = "all-passed"
	BadgeBuildRequired = "build-required"
	BadgeSlowInstall   = "slow-install"
)

// Source is a result table labelled by where it came from.
type Source struct {
	Name  string
	Table execution.ResultTable
}

// Row holds the badges of one package across every source. A nil cell means
// the package is missing from that source.
type Row struct {
	Package   string
	Cells     [][]string
	Different bool
}

// Summary is the rendered-ready condensation of a set of sources.
type Summary struct {
	Sources []string
	Rows    []Row
	// Passing and Failing count packages of the last source.
	Passing int
	Failing int
}

// Badges lists the badges for one package's tests, skipping ignored test
// names. Failing test names follow the fixed badges in sorted order.
func Badges(tests map[string]execution.Result, ignore []string) []string {
	var failing []string
	buildRequired, slowInstall := false, false

	for name, result := range tests {
		if slices.Contains(ignore, name) {
			continue
		}
		if !result.Passed {
			failing = append(failing, name)
		}
		buildRequired = buildRequired || result.BuildRequired
		slowInstall = slowInstall || result.SlowInstall
	}
	slices.Sort(failing)

	badges := make([]string, 0, 3+len(failing))
	switch {
	case len(failing) == 0 && !buildRequired && !slowInstall:
		badges = append(badges, BadgePerfectScore)
	case len(failing) == 0:
		badges = append(badges, BadgeAllPassed)
	}
	if buildRequired {
		badges = append(badges, BadgeBuildRequired)
	}
	if slowInstall {
		badges = append(badges, BadgeSlowInstall)
	}
	return append(badges, failing...)
}

// Summarize builds one row per package found in any source, sorted
// case-insensitively by package name.
func Summarize(sources []Source, ignore []string) Summary {
	summary := Summary{Sources: make([]string, 0, len(sources))}

	seen := make(map[string]struct{})
	var packages []string
	for _, src := range sources {
		summary.Sources = append(summary.Sources, src.Name)
		for pkg := range src.Table {
			if _, ok := seen[pkg]; ok {
				continue
			}
			seen[pkg] = struct{}{}
			packages = append(packages, pkg)
		}
	}
	slices.SortFunc(packages, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})

	for _, pkg := range packages {
		row := Row{Package: pkg, Cells: make([][]string, len(sources))}
		var first []string
		for i, src := range sources {
			tests, ok := src.Table[pkg]
			if !ok {
				continue
			}
			badges := Badges(tests, ignore)
			row.Cells[i] = badges
			if first == nil {
				first = badges
			} else if !slices.Equal(first, badges) {
				row.Different = true
			}
		}
		summary.Rows = append(summary.Rows, row)

		if n := len(sources); n > 0 {
			if last := row.Cells[n-1]; last != nil {
				if passing(last) {
					summary.Passing++
				} else {
					summary.Failing++
				}
			}
		}
	}
	return summary
}

func passing(badges []string) bool {
	return len(badges) > 0 && (badges[0] == BadgePerfectScore || badges[0] == BadgeAllPassed)
}
