package explorer

import (
	"context"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/fsys"
)

// Root is a top-level directory registered for browsing.
type Root struct {
	ID   fsys.FileID `json:"id"`
	Name string      `json:"name"`
	Path string      `json:"path"`

	// Expanded maps the identity of every directory beneath the root that
	// should be materialized and watched to its canonical path. The root's
	// own identity is always present.
	Expanded map[fsys.FileID]string `json:"-"`

	// Generation increases on every change to Expanded.
	Generation uint64 `json:"generation"`
}

func (r *Root) clone() Root {
	c := *r
	c.Expanded = maps.Clone(r.Expanded)
	return c
}

// Store owns the registered roots and their expansion maps. Mutations are
// serialized and each one ends by reconciling the watch set.
type Store struct {
	fs      fsys.FileSystem
	watches *WatchSet
	logger  *zap.Logger

	mu    sync.Mutex
	roots map[fsys.FileID]*Root
	order []fsys.FileID
}

// NewStore creates an empty store. watches is reconciled after every
// mutation.
func NewStore(fs fsys.FileSystem, watches *WatchSet, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		fs:      fs,
		watches: watches,
		logger:  logger,
		roots:   make(map[fsys.FileID]*Root),
	}
}

// Add registers the directory at path. It fails with ErrNotFound when the
// path does not exist, ErrInvalidRoot when it is not a directory and
// ErrRootExists when the same directory is already registered. On failure the
// store is unchanged.
func (s *Store) Add(ctx context.Context, path string) (Root, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Root{}, fmt.Errorf("resolve %s: %w", path, err)
	}
	info, err := s.fs.Stat(ctx, abs)
	if err != nil {
		return Root{}, err
	}
	if !info.IsDir {
		return Root{}, fmt.Errorf("%s: %w", abs, ErrInvalidRoot)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.roots[info.ID]; ok {
		return Root{}, fmt.Errorf("%s (registered as %s): %w", abs, existing.Path, ErrRootExists)
	}
	root := &Root{
		ID:       info.ID,
		Name:     filepath.Base(abs),
		Path:     abs,
		Expanded: map[fsys.FileID]string{info.ID: abs},
	}
	s.roots[root.ID] = root
	s.order = append(s.order, root.ID)
	s.logger.Info("root added", zap.String("root", abs), zap.String("id", string(root.ID)))

	s.syncLocked()
	return root.clone(), nil
}

// Update replaces the expansion map of a root wholesale. The root's own
// identity is kept regardless of what expanded contains. Relative paths are
// taken relative to the root; entries outside the root are dropped.
func (s *Store) Update(id fsys.FileID, expanded map[fsys.FileID]string) (Root, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.roots[id]
	if !ok {
		return Root{}, fmt.Errorf("root %s: %w", id, ErrNotFound)
	}
	next := make(map[fsys.FileID]string, len(expanded)+1)
	for dirID, path := range expanded {
		if !filepath.IsAbs(path) {
			path = filepath.Join(root.Path, path)
		}
		path = filepath.Clean(path)
		if !within(root.Path, path) {
			s.logger.Debug("dropping expansion outside root",
				zap.String("root", root.Path),
				zap.String("path", path),
			)
			continue
		}
		next[dirID] = path
	}
	next[root.ID] = root.Path

	root.Expanded = next
	root.Generation++
	s.logger.Debug("root updated",
		zap.String("root", root.Path),
		zap.Int("expanded", len(next)),
		zap.Uint64("generation", root.Generation),
	)

	s.syncLocked()
	return root.clone(), nil
}

// Remove unregisters a root. Removing an unknown id is a no-op.
func (s *Store) Remove(id fsys.FileID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.roots[id]
	if !ok {
		return
	}
	delete(s.roots, id)
	s.order = slices.DeleteFunc(s.order, func(other fsys.FileID) bool { return other == id })
	s.logger.Info("root removed", zap.String("root", root.Path), zap.String("id", string(id)))

	s.syncLocked()
}

// Retain narrows a root's expansion map to the directories a materialization
// actually reached, refreshing their paths, provided the root has not changed
// since the snapshot that pass started from. It reports whether the map
// changed.
func (s *Store) Retain(id fsys.FileID, generation uint64, reached map[fsys.FileID]string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.roots[id]
	if !ok || root.Generation != generation {
		return false
	}
	next := maps.Clone(reached)
	if next == nil {
		next = make(map[fsys.FileID]string, 1)
	}
	next[root.ID] = root.Path
	if maps.Equal(next, root.Expanded) {
		return false
	}

	root.Expanded = next
	root.Generation++
	s.logger.Debug("expansion narrowed to reachable directories",
		zap.String("root", root.Path),
		zap.Int("expanded", len(next)),
	)

	s.syncLocked()
	return true
}

// Get returns a snapshot of one root.
func (s *Store) Get(id fsys.FileID) (Root, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	root, ok := s.roots[id]
	if !ok {
		return Root{}, false
	}
	return root.clone(), true
}

// List returns snapshots of every root in registration order.
func (s *Store) List() []Root {
	s.mu.Lock()
	defer s.mu.Unlock()

	roots := make([]Root, 0, len(s.order))
	for _, id := range s.order {
		roots = append(roots, s.roots[id].clone())
	}
	return roots
}

// desiredLocked is the union of every root's expansion map.
func (s *Store) desiredLocked() map[fsys.FileID]string {
	desired := make(map[fsys.FileID]string)
	for _, root := range s.roots {
		for id, path := range root.Expanded {
			desired[id] = path
		}
	}
	return desired
}

func (s *Store) syncLocked() {
	if s.watches == nil {
		return
	}
	s.watches.Reconcile(s.desiredLocked())
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
