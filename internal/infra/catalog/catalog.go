package catalog

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

// ErrNoPackages is returned for a catalog without package entries.
var ErrNoPackages = errors.New("catalog lists no packages")

// Catalog is the parsed package catalog.
type Catalog struct {
	Packages []execution.PackageSpec
	// Targets overrides the default container matrix when non-nil.
	Targets []execution.Target
}

type document struct {
	Packages   []packageEntry `yaml:"packages"`
	Containers targetList     `yaml:"containers"`
}

type packageEntry struct {
	Name  string  `yaml:"PKG_NAME"`
	Test  string  `yaml:"PKG_TEST"`
	Pip   *string `yaml:"PIP_NAME"`
	Conda *string `yaml:"CONDA_NAME"`
	Apt   *string `yaml:"APT_NAME"`
	Yum   *string `yaml:"YUM_NAME"`
}

// targetList keeps the document order of the containers mapping.
type targetList []execution.Target

func (l *targetList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: containers must be a mapping", node.Line)
	}

	targets := make([]execution.Target, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := node.Content[i].Value

		var raw []string
		if err := node.Content[i+1].Decode(&raw); err != nil {
			return fmt.Errorf("container %q: %w", name, err)
		}

		target := execution.Target{Name: name}
		for _, r := range raw {
			kind, err := execution.ParseInstallerKind(r)
			if err != nil {
				return fmt.Errorf("container %q: %w", name, err)
			}
			target.Installers = append(target.Installers, kind)
		}
		targets = append(targets, target)
	}

	*l = targets
	return nil
}

// Load reads and parses the catalog at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a YAML catalog document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if len(doc.Packages) == 0 {
		return nil, ErrNoPackages
	}

	cat := &Catalog{
		Packages: make([]execution.PackageSpec, 0, len(doc.Packages)),
		Targets:  doc.Containers,
	}

	seen := make(map[string]int, len(doc.Packages))
	for i, entry := range doc.Packages {
		spec, err := entry.toSpec()
		if err != nil {
			return nil, fmt.Errorf("package #%d: %w", i+1, err)
		}

		main := spec.MainName()
		if prev, dup := seen[main]; dup {
			return nil, fmt.Errorf("package #%d: %q duplicates package #%d", i+1, main, prev)
		}
		seen[main] = i + 1

		cat.Packages = append(cat.Packages, spec)
	}

	return cat, nil
}

func (e packageEntry) toSpec() (execution.PackageSpec, error) {
	spec := execution.PackageSpec{
		Name:        e.Name,
		TestScript:  e.Test,
		Identifiers: make(map[execution.InstallerKind]string),
	}
	if spec.MainName() == "" {
		return spec, fmt.Errorf("missing PKG_NAME")
	}
	if e.Test == "" {
		return spec, fmt.Errorf("%s: missing PKG_TEST", spec.MainName())
	}

	for kind, id := range map[execution.InstallerKind]*string{
		execution.InstallerPip:   e.Pip,
		execution.InstallerConda: e.Conda,
		execution.InstallerApt:   e.Apt,
		execution.InstallerYum:   e.Yum,
	} {
		if id != nil {
			spec.Identifiers[kind] = *id
		}
	}

	return spec, nil
}
