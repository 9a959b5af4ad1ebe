package installer

import (
	"fmt"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

// Installer binds an installer kind to the helper script that drives it
// inside a test container.
type Installer struct {
	Kind         execution.InstallerKind
	HelperScript string
}

// Defaults returns the stock installers in their canonical order.
func Defaults() []Installer {
	return []Installer{
		{Kind: execution.InstallerConda, HelperScript: "container-conda-test.sh"},
		{Kind: execution.InstallerPip, HelperScript: "container-script.sh"},
		{Kind: execution.InstallerApt, HelperScript: "container-apt-test.sh"},
		{Kind: execution.InstallerYum, HelperScript: "container-yum-test.sh"},
	}
}

// Registry is an ordered, immutable set of installers.
type Registry struct {
	order   []execution.InstallerKind
	scripts map[execution.InstallerKind]string
}

// NewRegistry constructs a registry from the supplied installers.
func NewRegistry(installers ...Installer) (*Registry, error) {
	reg := &Registry{
		order:   make([]execution.InstallerKind, 0, len(installers)),
		scripts: make(map[execution.InstallerKind]string, len(installers)),
	}

	for _, inst := range installers {
		if inst.Kind == "" {
			return nil, fmt.Errorf("installer missing kind")
		}
		if inst.HelperScript == "" {
			return nil, fmt.Errorf("installer %q missing helper script", inst.Kind)
		}
		if _, exists := reg.scripts[inst.Kind]; exists {
			return nil, fmt.Errorf("duplicate installer %q", inst.Kind)
		}

		reg.order = append(reg.order, inst.Kind)
		reg.scripts[inst.Kind] = inst.HelperScript
	}

	if len(reg.order) == 0 {
		return nil, fmt.Errorf("at least one installer must be registered")
	}

	return reg, nil
}

// Kinds returns the registered kinds in registration order.
func (r *Registry) Kinds() []execution.InstallerKind {
	return append([]execution.InstallerKind(nil), r.order...)
}

// HelperScript returns the helper script for kind.
func (r *Registry) HelperScript(kind execution.InstallerKind) (string, error) {
	script, ok := r.scripts[kind]
	if !ok {
		return "", fmt.Errorf("no installer registered for kind %q", kind)
	}
	return script, nil
}

// HelperScripts returns every distinct helper script name.
func (r *Registry) HelperScripts() []string {
	seen := make(map[string]struct{}, len(r.order))
	scripts := make([]string, 0, len(r.order))
	for _, kind := range r.order {
		script := r.scripts[kind]
		if _, ok := seen[script]; ok {
			continue
		}
		seen[script] = struct{}{}
		scripts = append(scripts, script)
	}
	return scripts
}
