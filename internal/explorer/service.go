package explorer

import (
	"context"
	"errors"
	"maps"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"

	"github.com/TFMV/explorer/internal/fsys"
)

// DefaultMaxConcurrentRoots bounds how many roots are materialized at once
// when Config leaves it unset.
const DefaultMaxConcurrentRoots = 4

// Payload is the complete client view: every root that materialized, plus a
// diagnostic for every root that did not.
type Payload struct {
	Trees  []*FlatTree  `json:"trees"`
	Errors []Diagnostic `json:"errors"`
}

// Config configures a Service.
type Config struct {
	Locale             language.Tag
	MaxConcurrentRoots int
	Logger             *zap.Logger
}

// Service wires the store, watch set, materializer, hub and notifier
// together. It is the only owner of process-wide explorer state.
type Service struct {
	store        *Store
	watches      *WatchSet
	materializer *Materializer
	hub          *Hub
	notifier     *Notifier
	logger       *zap.Logger
	limit        int
}

// NewService creates a Service reading through fs and watching through
// watcher. The watcher is owned by the caller, who closes it after Serve
// returns.
func NewService(fs fsys.FileSystem, watcher fsys.Watcher, cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locale := cfg.Locale
	if locale == language.Und {
		locale = DefaultLocale
	}
	limit := cfg.MaxConcurrentRoots
	if limit <= 0 {
		limit = DefaultMaxConcurrentRoots
	}

	s := &Service{
		hub:    NewHub(),
		logger: logger,
		limit:  limit,
	}
	s.watches = NewWatchSet(watcher, logger.Named("watchset"))
	s.store = NewStore(fs, s.watches, logger.Named("store"))
	s.materializer = NewMaterializer(fs, WithLocale(locale), WithLogger(logger.Named("materializer")))
	s.notifier = NewNotifier(watcher, s.hub, s.Trees, logger.Named("notifier"))
	return s
}

// Store returns the root store.
func (s *Service) Store() *Store { return s.store }

// WatchSet returns the watch set.
func (s *Service) WatchSet() *WatchSet { return s.watches }

// Notifier returns the change notifier.
func (s *Service) Notifier() *Notifier { return s.notifier }

// Serve runs the change notifier until ctx is done.
func (s *Service) Serve(ctx context.Context) error {
	return s.notifier.Serve(ctx)
}

// Subscribe registers for the payloads broadcast after every cycle.
func (s *Service) Subscribe() *Subscription {
	return s.hub.Subscribe()
}

// AddRoot registers path and, when expanded is non-empty, applies it as the
// new root's expansion map.
func (s *Service) AddRoot(ctx context.Context, path string, expanded map[fsys.FileID]string) (Root, error) {
	root, err := s.store.Add(ctx, path)
	if err != nil {
		return Root{}, err
	}
	if len(expanded) > 0 {
		if root, err = s.store.Update(root.ID, expanded); err != nil {
			return Root{}, err
		}
	}
	s.notifier.Trigger(ctx)
	return root, nil
}

// UpdateRoot replaces the expansion map of a registered root.
func (s *Service) UpdateRoot(ctx context.Context, id fsys.FileID, expanded map[fsys.FileID]string) (Root, error) {
	root, err := s.store.Update(id, expanded)
	if err != nil {
		return Root{}, err
	}
	s.notifier.Trigger(ctx)
	return root, nil
}

// RemoveRoot unregisters a root; unknown ids are ignored.
func (s *Service) RemoveRoot(ctx context.Context, id fsys.FileID) {
	s.store.Remove(id)
	s.notifier.Trigger(ctx)
}

type materialized struct {
	tree *FlatTree
	err  error
}

// Trees materializes every registered root. Roots are independent: a
// failure becomes a Diagnostic and the others are still returned. A root
// whose path has vanished is removed from the store as a side effect.
// Successful passes narrow their root's expansion map to what was reached.
func (s *Service) Trees(ctx context.Context) Payload {
	roots := s.store.List()
	results := make([]materialized, len(roots))

	var g errgroup.Group
	g.SetLimit(s.limit)
	for i, root := range roots {
		g.Go(func() error {
			tree, err := s.materializer.Materialize(ctx, root)
			results[i] = materialized{tree: tree, err: err}
			return nil
		})
	}
	_ = g.Wait()

	payload := Payload{
		Trees:  make([]*FlatTree, 0, len(roots)),
		Errors: []Diagnostic{},
	}
	for i, result := range results {
		root := roots[i]
		if result.err != nil {
			payload.Errors = append(payload.Errors, diagnose(root, result.err))
			if errors.Is(result.err, ErrStaleRoot) {
				s.logger.Warn("removing stale root", zap.String("root", root.Path), zap.Error(result.err))
				s.store.Remove(root.ID)
			} else {
				s.logger.Warn("materialization failed", zap.String("root", root.Path), zap.Error(result.err))
			}
			continue
		}
		payload.Trees = append(payload.Trees, result.tree)
		if !maps.Equal(result.tree.reached, root.Expanded) {
			s.store.Retain(root.ID, root.Generation, result.tree.reached)
		}
	}
	return payload
}
