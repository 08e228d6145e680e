package explorer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/TFMV/explorer/internal/fsys"
)

// fakeWatcher records watch calls and tracks the resulting active set.
type fakeWatcher struct {
	mu      sync.Mutex
	watched map[string]struct{}
	calls   []string
	fail    map[string]error

	events chan fsys.Change
	errs   chan error
}

var _ fsys.Watcher = (*fakeWatcher)(nil)

func newFakeWatcher() *fakeWatcher {
	return &fakeWatcher{
		watched: make(map[string]struct{}),
		fail:    make(map[string]error),
		events:  make(chan fsys.Change, 16),
		errs:    make(chan error, 1),
	}
}

func (w *fakeWatcher) Watch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "watch "+path)
	if err := w.fail[path]; err != nil {
		return err
	}
	w.watched[path] = struct{}{}
	return nil
}

func (w *fakeWatcher) Unwatch(path string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, "unwatch "+path)
	if _, ok := w.watched[path]; !ok {
		return errors.New("not watched: " + path)
	}
	delete(w.watched, path)
	return nil
}

func (w *fakeWatcher) Events() <-chan fsys.Change { return w.events }
func (w *fakeWatcher) Errors() <-chan error       { return w.errs }
func (w *fakeWatcher) Close() error               { return nil }

// paths returns the watched paths, sorted.
func (w *fakeWatcher) paths() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	paths := make([]string, 0, len(w.watched))
	for path := range w.watched {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

func (w *fakeWatcher) takeCalls() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	calls := w.calls
	w.calls = nil
	return calls
}

// faultyFS fails Stat and List for selected paths and defers the rest.
type faultyFS struct {
	fsys.FileSystem
	fail map[string]error
}

func (f *faultyFS) Stat(ctx context.Context, path string) (fsys.Info, error) {
	if kind, ok := f.fail[path]; ok {
		return fsys.Info{}, &fsys.PathError{Op: "stat", Path: path, Kind: kind, Err: kind}
	}
	return f.FileSystem.Stat(ctx, path)
}

func (f *faultyFS) List(ctx context.Context, path string) ([]string, error) {
	if kind, ok := f.fail[path]; ok {
		return nil, &fsys.PathError{Op: "list", Path: path, Kind: kind, Err: kind}
	}
	return f.FileSystem.List(ctx, path)
}

// makeTree creates entries beneath root. Entries ending in "/" are
// directories; everything else is an empty file.
func makeTree(t *testing.T, root string, entries ...string) {
	t.Helper()
	for _, entry := range entries {
		path := filepath.Join(root, filepath.FromSlash(entry))
		if strings.HasSuffix(entry, "/") {
			if err := os.MkdirAll(path, 0755); err != nil {
				t.Fatalf("Failed to create directory %s: %v", path, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("Failed to create directory for %s: %v", path, err)
		}
		if err := os.WriteFile(path, nil, 0644); err != nil {
			t.Fatalf("Failed to create file %s: %v", path, err)
		}
	}
}

func idOf(t *testing.T, fs fsys.FileSystem, path string) fsys.FileID {
	t.Helper()
	info, err := fs.Stat(context.Background(), path)
	if err != nil {
		t.Fatalf("Stat %s failed: %v", path, err)
	}
	return info.ID
}

// rootFor builds a Root for dir with the given subdirectories expanded.
func rootFor(t *testing.T, fs fsys.FileSystem, dir string, expanded ...string) Root {
	t.Helper()
	id := idOf(t, fs, dir)
	root := Root{
		ID:       id,
		Name:     filepath.Base(dir),
		Path:     dir,
		Expanded: map[fsys.FileID]string{id: dir},
	}
	for _, rel := range expanded {
		path := filepath.Join(dir, filepath.FromSlash(rel))
		root.Expanded[idOf(t, fs, path)] = path
	}
	return root
}

func names(files []FileNode) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

// checkSkipIndex verifies that files is a pre-order flattening whose indices
// and NextNonChild pointers delimit exactly each node's subtree.
func checkSkipIndex(t *testing.T, files []FileNode) {
	t.Helper()
	for i, f := range files {
		if f.Index != i {
			t.Errorf("Node %d (%s) has index %d", i, f.Name, f.Index)
		}
		if i == 0 && f.Depth != 0 {
			t.Errorf("First node has depth %d", f.Depth)
		}
		if i > 0 && f.Depth > files[i-1].Depth+1 {
			t.Errorf("Node %d (%s) jumps from depth %d to %d", i, f.Name, files[i-1].Depth, f.Depth)
		}
		j := f.NextNonChild
		if j <= i || j > len(files) {
			t.Errorf("Node %d (%s) has NextNonChild %d out of range", i, f.Name, j)
			continue
		}
		for k := i + 1; k < j; k++ {
			if files[k].Depth <= f.Depth {
				t.Errorf("Node %d (%s) lies inside the subtree of %d (%s) but is not deeper", k, files[k].Name, i, f.Name)
			}
		}
		if j < len(files) && files[j].Depth > f.Depth {
			t.Errorf("Node %d (%s) has NextNonChild %d pointing at a descendant", i, f.Name, j)
		}
	}
}
