package results

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/geoffreyblake/arm64-python-wheel-tester/internal/domain/execution"
)

const (
	filePrefix      = "results-"
	jsonSuffix      = ".json"
	xzSuffix        = ".xz"
	timestampLayout = "2006-01-02_15-04-05"
)

// FileName returns the results file name for a run finished at now.
func FileName(now time.Time, compressed bool) string {
	name := filePrefix + now.UTC().Format(timestampLayout) + jsonSuffix
	if compressed {
		name += xzSuffix
	}
	return name
}

// ParseFileName extracts the run timestamp from a results file name.
func ParseFileName(name string) (time.Time, error) {
	base := filepath.Base(name)
	stamp := strings.TrimSuffix(strings.TrimSuffix(base, xzSuffix), jsonSuffix)
	if !strings.HasPrefix(stamp, filePrefix) || stamp == base {
		return time.Time{}, fmt.Errorf("%q is not a results file name", base)
	}
	ts, err := time.ParseInLocation(timestampLayout, strings.TrimPrefix(stamp, filePrefix), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp of %q: %w", base, err)
	}
	return ts, nil
}

// Store persists result tables in a directory.
type Store struct {
	dir      string
	compress bool
}

// NewStore creates dir when missing.
func NewStore(dir string, compress bool) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("results directory must be provided")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create results directory: %w", err)
	}
	return &Store{dir: dir, compress: compress}, nil
}

// Write encodes table to a new timestamped file and returns its path.
func (s *Store) Write(table execution.ResultTable, now time.Time) (string, error) {
	path := filepath.Join(s.dir, FileName(now, s.compress))

	tmp, err := os.CreateTemp(s.dir, ".results-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, table, s.compress); err != nil {
		_ = tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", fmt.Errorf("rename results file: %w", err)
	}

	return path, nil
}

func encode(w io.Writer, table execution.ResultTable, compress bool) error {
	var xw *xz.Writer
	if compress {
		var err error
		xw, err = xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("create xz writer: %w", err)
		}
		w = xw
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(table); err != nil {
		return fmt.Errorf("encode results: %w", err)
	}

	if xw != nil {
		if err := xw.Close(); err != nil {
			return fmt.Errorf("finish xz stream: %w", err)
		}
	}
	return nil
}

// Load reads a results file, decompressing it when it ends in .xz.
func Load(path string) (execution.ResultTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open results: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, xzSuffix) {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz stream %s: %w", path, err)
		}
		r = xr
	}

	var table execution.ResultTable
	if err := json.NewDecoder(r).Decode(&table); err != nil {
		return nil, fmt.Errorf("decode results %s: %w", path, err)
	}
	return table, nil
}

// List returns the results files in dir, oldest first.
func List(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list results: %w", err)
	}

	type stamped struct {
		path string
		ts   time.Time
	}
	var files []stamped
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ts, err := ParseFileName(entry.Name())
		if err != nil {
			continue
		}
		files = append(files, stamped{path: filepath.Join(dir, entry.Name()), ts: ts})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].ts.Before(files[j].ts) })

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.path
	}
	return paths, nil
}

// ErrNoResults is returned by Latest when dir holds no results files.
var ErrNoResults = errors.New("no results files found")

// Latest returns the newest results file in dir.
func Latest(dir string) (string, error) {
	paths, err := List(dir)
	if err != nil {
		return "", err
	}
	if len(paths) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNoResults, dir)
	}
	return paths[len(paths)-1], nil
}
