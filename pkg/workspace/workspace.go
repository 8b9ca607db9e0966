// Package workspace allocates the isolated directory tree owned by one job.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	jobPrefix = "job_"

	MapDir      = "map"
	ReduceDir   = "reduce"
	CountersDir = "counters"
	LogDir      = "log"

	// CompleteMarker is the zero-byte file left at the job root once the job
	// finished normally.
	CompleteMarker = "_COMPLETE"
)

// ErrWorkspaceExists is returned when a directory of a freshly allocated job
// already exists.
var ErrWorkspaceExists = errors.New("job workspace already exists")

type Workspace struct {
	ID   int
	Root string
}

// Create allocates job_<N> under root, where N is one greater than the
// largest job ordinal already present. An empty root means os.TempDir().
func Create(root string) (*Workspace, error) {
	if root == "" {
		root = os.TempDir()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("error creating workspace root %s: %w", root, err)
	}

	last, err := LastID(root)
	if err != nil {
		return nil, err
	}

	ws := &Workspace{
		ID:   last + 1,
		Root: filepath.Join(root, fmt.Sprintf("%s%d", jobPrefix, last+1)),
	}

	for _, dir := range append([]string{ws.Root}, ws.dirs()...) {
		if err := os.Mkdir(dir, 0o755); err != nil {
			if errors.Is(err, os.ErrExist) {
				return nil, fmt.Errorf("%w: %s", ErrWorkspaceExists, dir)
			}
			return nil, fmt.Errorf("error creating workspace directory %s: %w", dir, err)
		}
	}

	return ws, nil
}

// LastID returns the largest job ordinal found directly under root, or 0.
func LastID(root string) (int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, fmt.Errorf("error scanning workspace root %s: %w", root, err)
	}

	last := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		suffix, ok := strings.CutPrefix(entry.Name(), jobPrefix)
		if !ok {
			continue
		}
		id, err := strconv.Atoi(suffix)
		if err != nil || id < 0 {
			continue
		}
		last = max(last, id)
	}
	return last, nil
}

func (w *Workspace) MapDir() string      { return filepath.Join(w.Root, MapDir) }
func (w *Workspace) ReduceDir() string   { return filepath.Join(w.Root, ReduceDir) }
func (w *Workspace) CountersDir() string { return filepath.Join(w.Root, CountersDir) }
func (w *Workspace) LogDir() string      { return filepath.Join(w.Root, LogDir) }

// Complete removes the map and reduce scratch trees, keeps counters and logs,
// and leaves the completion marker at the job root.
func (w *Workspace) Complete() error {
	for _, dir := range []string{w.MapDir(), w.ReduceDir()} {
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("error removing scratch directory %s: %w", dir, err)
		}
	}
	return os.WriteFile(filepath.Join(w.Root, CompleteMarker), nil, 0o644)
}

// Completed reports whether the completion marker is present.
func (w *Workspace) Completed() bool {
	_, err := os.Stat(filepath.Join(w.Root, CompleteMarker))
	return err == nil
}

func (w *Workspace) dirs() []string {
	return []string{w.MapDir(), w.ReduceDir(), w.CountersDir(), w.LogDir()}
}
