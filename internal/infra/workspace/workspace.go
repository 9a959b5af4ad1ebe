package workspace

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/ports"
)

// TestScriptName is the file each case's test script is written to.
const TestScriptName = "test-script.py"

const dirPrefix = "work_"

//go:embed scripts/*.sh
var embeddedScripts embed.FS

// DefaultHelpers returns the helper scripts shipped with the binary.
func DefaultHelpers() fs.FS {
	sub, err := fs.Sub(embeddedScripts, "scripts")
	if err != nil {
		panic(err)
	}
	return sub
}

// Config describes where worker scratch directories live.
type Config struct {
	// Root is the local directory under which scratch directories are created.
	Root string
	// HostRoot is the path of Root as seen by the Docker daemon. It differs
	// from Root when the tester itself runs in a container. Empty means Root.
	HostRoot string
	// Helpers holds the static helper scripts copied into every scratch
	// directory. Nil selects DefaultHelpers.
	Helpers fs.FS
	Logger  *slog.Logger
}

// Manager creates per-worker scratch directories.
type Manager struct {
	root     string
	hostRoot string
	helpers  fs.FS
	logger   *slog.Logger
}

var _ ports.ScratchProvider = (*Manager)(nil)

// NewManager validates cfg and prepares the root directory.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Root == "" {
		return nil, fmt.Errorf("workspace root must be provided")
	}

	root, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace root: %w", err)
	}

	hostRoot := cfg.HostRoot
	if hostRoot == "" {
		hostRoot = root
	}

	helpers := cfg.Helpers
	if helpers == nil {
		helpers = DefaultHelpers()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		root:     root,
		hostRoot: hostRoot,
		helpers:  helpers,
		logger:   logger,
	}, nil
}

// NewScratch creates the scratch directory for workerID and populates it
// with the helper scripts.
func (m *Manager) NewScratch(workerID int) (ports.Scratch, error) {
	name := fmt.Sprintf("%spid_%d_%d", dirPrefix, os.Getpid(), workerID)
	dir := filepath.Join(m.root, name)

	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("clear stale scratch %s: %w", dir, err)
	}
	if err := os.Mkdir(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create scratch %s: %w", dir, err)
	}

	if err := m.copyHelpers(dir); err != nil {
		_ = os.RemoveAll(dir)
		return nil, err
	}

	m.logger.Debug("created scratch directory", "worker", workerID, "dir", dir)

	return &Workspace{
		dir:         dir,
		mountSource: filepath.Join(m.hostRoot, name),
	}, nil
}

func (m *Manager) copyHelpers(dir string) error {
	entries, err := fs.ReadDir(m.helpers, ".")
	if err != nil {
		return fmt.Errorf("list helper scripts: %w", err)
	}

	copied := 0
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		data, err := fs.ReadFile(m.helpers, entry.Name())
		if err != nil {
			return fmt.Errorf("read helper %s: %w", entry.Name(), err)
		}
		if err := os.WriteFile(filepath.Join(dir, entry.Name()), data, 0o755); err != nil {
			return fmt.Errorf("write helper %s: %w", entry.Name(), err)
		}
		copied++
	}

	if copied == 0 {
		return fmt.Errorf("no helper scripts found")
	}
	return nil
}

// Cleanup removes every scratch directory left under the root.
func (m *Manager) Cleanup() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("list workspace root: %w", err)
	}

	var errs []error
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), dirPrefix) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(m.root, entry.Name())); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Workspace is a single worker's scratch directory.
type Workspace struct {
	dir         string
	mountSource string
}

var _ ports.Scratch = (*Workspace)(nil)

// Dir returns the local path of the scratch directory.
func (w *Workspace) Dir() string {
	return w.dir
}

// MountSource returns the daemon-visible path of the scratch directory.
func (w *Workspace) MountSource() string {
	return w.mountSource
}

// WriteTestScript overwrites the test script for the next case.
func (w *Workspace) WriteTestScript(source string) error {
	if err := os.WriteFile(filepath.Join(w.dir, TestScriptName), []byte(source), 0o644); err != nil {
		return fmt.Errorf("write test script: %w", err)
	}
	return nil
}

// Close removes the scratch directory.
func (w *Workspace) Close() error {
	return os.RemoveAll(w.dir)
}
