package execution

import "strings"

// TestCase describes one (package, installer, target) combination ready to run.
type TestCase struct {
	Package      string
	Installer    InstallerKind
	Identifier   string
	Target       string
	Image        string
	HelperScript string
	Script       string
	TestName     string
}

// ResultKey addresses a single entry of a ResultTable.
type ResultKey struct {
	Package  string
	TestName string
}

func (k ResultKey) String() string {
	return k.Package + "/" + k.TestName
}

// Key returns the ResultTable key the case reports under.
func (tc TestCase) Key() ResultKey {
	return ResultKey{Package: tc.Package, TestName: tc.TestName}
}

// TestName composes the result name for a target and installer. Pip cases
// keep the bare target name so older result files stay comparable.
func TestName(target string, kind InstallerKind) string {
	if kind == InstallerPip {
		return target
	}
	return target + "-" + strings.ToLower(string(kind))
}
