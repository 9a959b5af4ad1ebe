package matrix

import (
	"fmt"
	"iter"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/installer"
)

// DefaultImagePrefix is prepended to target names to form image references.
const DefaultImagePrefix = "wheel-tester/"

// Option customises a Generator.
type Option func(*Generator) error

// WithImagePrefix overrides the image reference prefix.
func WithImagePrefix(prefix string) Option {
	return func(g *Generator) error {
		g.imagePrefix = prefix
		return nil
	}
}

// WithTargetFilter restricts generation to the named targets. An empty
// list keeps every target.
func WithTargetFilter(names ...string) Option {
	return func(g *Generator) error {
		if len(names) == 0 {
			return nil
		}

		byName := make(map[string]execution.Target, len(g.targets))
		for _, target := range g.targets {
			byName[target.Name] = target
		}

		filtered := make([]execution.Target, 0, len(names))
		seen := make(map[string]struct{}, len(names))
		for _, name := range names {
			target, ok := byName[name]
			if !ok {
				return fmt.Errorf("unknown target %q", name)
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			filtered = append(filtered, target)
		}
		g.targets = filtered
		return nil
	}
}

// Generator expands a package catalog across installers and targets.
type Generator struct {
	packages    []execution.PackageSpec
	installers  *installer.Registry
	targets     []execution.Target
	imagePrefix string
}

// NewGenerator validates the matrix inputs and builds a Generator.
func NewGenerator(packages []execution.PackageSpec, installers *installer.Registry, targets []execution.Target, opts ...Option) (*Generator, error) {
	if installers == nil {
		return nil, fmt.Errorf("installer registry must be provided")
	}

	known := make(map[execution.InstallerKind]struct{})
	for _, kind := range installers.Kinds() {
		known[kind] = struct{}{}
	}

	seen := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		if target.Name == "" {
			return nil, fmt.Errorf("target missing name")
		}
		if _, dup := seen[target.Name]; dup {
			return nil, fmt.Errorf("duplicate target %q", target.Name)
		}
		seen[target.Name] = struct{}{}

		for _, kind := range target.Installers {
			if _, ok := known[kind]; !ok {
				return nil, fmt.Errorf("target %q names unregistered installer %q", target.Name, kind)
			}
		}
	}

	g := &Generator{
		packages:    packages,
		installers:  installers,
		targets:     append([]execution.Target(nil), targets...),
		imagePrefix: DefaultImagePrefix,
	}
	for _, opt := range opts {
		if err := opt(g); err != nil {
			return nil, err
		}
	}

	return g, nil
}

// Cases lazily yields every applicable test case. Each call restarts the
// sequence from the beginning and yields the same cases in the same order.
func (g *Generator) Cases() iter.Seq[execution.TestCase] {
	return func(yield func(execution.TestCase) bool) {
		for _, pkg := range g.packages {
			for _, kind := range g.installers.Kinds() {
				identifier, ok := pkg.Identifier(kind)
				if !ok {
					continue
				}
				// Kinds come from the registry so the lookup cannot fail.
				helper, _ := g.installers.HelperScript(kind)

				for _, target := range g.targets {
					if !target.Supports(kind) {
						continue
					}

					tc := execution.TestCase{
						Package:      pkg.MainName(),
						Installer:    kind,
						Identifier:   identifier,
						Target:       target.Name,
						Image:        g.imagePrefix + target.Name,
						HelperScript: helper,
						Script:       pkg.TestScript,
						TestName:     execution.TestName(target.Name, kind),
					}
					if !yield(tc) {
						return
					}
				}
			}
		}
	}
}

// Collect materialises Cases into a slice.
func (g *Generator) Collect() []execution.TestCase {
	var cases []execution.TestCase
	for tc := range g.Cases() {
		cases = append(cases, tc)
	}
	return cases
}
