package explorer

import (
	"cmp"
	"maps"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/fsys"
)

// Target is one watch target.
type Target struct {
	ID   fsys.FileID
	Path string
}

// Diff compares two target sets by identity. An identity missing from
// desired is removed and one missing from current is added. An identity
// present in both under different paths (a rename) is both removed at its old
// path and added at its new one. Both slices are sorted by path.
func Diff(desired, current map[fsys.FileID]string) (toAdd, toRemove []Target) {
	for id, path := range current {
		if next, ok := desired[id]; !ok || next != path {
			toRemove = append(toRemove, Target{ID: id, Path: path})
		}
	}
	for id, path := range desired {
		if prev, ok := current[id]; !ok || prev != path {
			toAdd = append(toAdd, Target{ID: id, Path: path})
		}
	}
	byPath := func(a, b Target) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.ID, b.ID))
	}
	slices.SortFunc(toAdd, byPath)
	slices.SortFunc(toRemove, byPath)
	return toAdd, toRemove
}

// WatchSet keeps a watcher's active targets equal to a desired set.
type WatchSet struct {
	watcher fsys.Watcher
	logger  *zap.Logger

	mu     sync.Mutex
	active map[fsys.FileID]string
}

// NewWatchSet creates a WatchSet driving watcher, starting from no targets.
// A nil watcher only tracks the set.
func NewWatchSet(watcher fsys.Watcher, logger *zap.Logger) *WatchSet {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WatchSet{
		watcher: watcher,
		logger:  logger,
		active:  make(map[fsys.FileID]string),
	}
}

// Reconcile unwatches what is no longer desired, watches what is new, and
// then records desired as the active set. A path still needed by another
// desired identity is not unwatched, which keeps a directory deleted and
// recreated under the same path covered. Watch failures are logged and do
// not affect other targets.
func (w *WatchSet) Reconcile(desired map[fsys.FileID]string) (toAdd, toRemove []Target) {
	w.mu.Lock()
	defer w.mu.Unlock()

	toAdd, toRemove = Diff(desired, w.active)
	if w.watcher == nil {
		w.active = maps.Clone(desired)
		return toAdd, toRemove
	}

	stillNeeded := make(map[string]struct{}, len(desired))
	for _, path := range desired {
		stillNeeded[path] = struct{}{}
	}

	for _, target := range toRemove {
		if _, ok := stillNeeded[target.Path]; ok {
			continue
		}
		if err := w.watcher.Unwatch(target.Path); err != nil {
			metricWatchFailures.WithLabelValues("unwatch").Inc()
			w.logger.Warn("unwatch failed", zap.String("path", target.Path), zap.Error(err))
		}
	}
	for _, target := range toAdd {
		if err := w.watcher.Watch(target.Path); err != nil {
			metricWatchFailures.WithLabelValues("watch").Inc()
			w.logger.Warn("watch failed", zap.String("path", target.Path), zap.Error(err))
		}
	}

	w.active = maps.Clone(desired)
	if w.active == nil {
		w.active = make(map[fsys.FileID]string)
	}
	metricWatchTargets.Set(float64(len(w.active)))

	if len(toAdd) > 0 || len(toRemove) > 0 {
		w.logger.Debug("watch set reconciled",
			zap.Int("added", len(toAdd)),
			zap.Int("removed", len(toRemove)),
			zap.Int("active", len(w.active)),
		)
	}
	return toAdd, toRemove
}

// Active returns a copy of the active targets.
func (w *WatchSet) Active() map[fsys.FileID]string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return maps.Clone(w.active)
}
