package execution

import (
	"fmt"
	"slices"
	"strings"
)

// InstallerKind identifies a package-acquisition mechanism exercised inside a test container.
type InstallerKind string

const (
	InstallerPip   InstallerKind = "PIP"
	InstallerConda InstallerKind = "CONDA"
	InstallerApt   InstallerKind = "APT"
	InstallerYum   InstallerKind = "YUM"
)

// ParseInstallerKind normalises raw into a known InstallerKind.
func ParseInstallerKind(raw string) (InstallerKind, error) {
	kind := InstallerKind(strings.ToUpper(strings.TrimSpace(raw)))
	switch kind {
	case InstallerPip, InstallerConda, InstallerApt, InstallerYum:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown installer kind %q", raw)
	}
}

// PackageSpec is a single catalog entry.
type PackageSpec struct {
	// Name is the display name. Extra words after the first token are
	// annotations and do not take part in result keys.
	Name string
	// Identifiers holds the package list handed to each installer.
	// A missing kind means the package is not tested with that installer.
	Identifiers map[InstallerKind]string
	// TestScript is the Python source executed after installation.
	TestScript string
}

// MainName returns the first whitespace-separated token of the display name.
func (p PackageSpec) MainName() string {
	fields := strings.Fields(p.Name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// Identifier returns the installer package list for kind.
func (p PackageSpec) Identifier(kind InstallerKind) (string, bool) {
	id, ok := p.Identifiers[kind]
	return id, ok
}

// Target describes a test container image and the installers it supports.
type Target struct {
	Name       string
	Installers []InstallerKind
}

// Supports reports whether the target can run cases for kind.
func (t Target) Supports(kind InstallerKind) bool {
	return slices.Contains(t.Installers, kind)
}

// DefaultTargets returns the stock container matrix.
func DefaultTargets() []Target {
	return []Target{
		{Name: "amazon-linux2", Installers: []InstallerKind{InstallerPip, InstallerConda}},
		{Name: "focal", Installers: []InstallerKind{InstallerPip, InstallerApt, InstallerConda}},
		{Name: "jammy", Installers: []InstallerKind{InstallerPip, InstallerApt}},
		{Name: "amazon-linux2-py38", Installers: []InstallerKind{InstallerPip}},
		{Name: "amazon-linux2023", Installers: []InstallerKind{InstallerPip, InstallerYum}},
	}
}
