// Package explorer keeps a live, flattened view of registered root
// directories: which directories are expanded, what is visible beneath them,
// which paths the watcher must cover, and who gets told when that changes.
package explorer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/TFMV/explorer/internal/fsys"
)

// DefaultLocale orders sibling names when no locale is configured.
var DefaultLocale = language.English

// Materializer turns a root and its expansion state into a FlatTree. It holds
// no mutable state and is safe for concurrent use across roots.
type Materializer struct {
	fs     fsys.FileSystem
	locale language.Tag
	logger *zap.Logger
}

// MaterializerOption configures a Materializer.
type MaterializerOption func(*Materializer)

// WithLocale sets the collation locale used to order siblings.
func WithLocale(tag language.Tag) MaterializerOption {
	return func(m *Materializer) { m.locale = tag }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) MaterializerOption {
	return func(m *Materializer) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewMaterializer creates a Materializer reading through fs.
func NewMaterializer(fs fsys.FileSystem, opts ...MaterializerOption) *Materializer {
	m := &Materializer{
		fs:     fs,
		locale: DefaultLocale,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Materialize produces the visible tree of root. Only directories whose
// identity is in root.Expanded are descended into; the root node itself is
// always expanded. The expansion map is copied up front, so edits made while
// the pass runs are seen by the next pass only.
//
// Any stat or listing failure aborts this root. A root whose path has vanished
// fails with ErrStaleRoot; one that is no longer a directory with
// ErrInvalidRoot.
func (m *Materializer) Materialize(ctx context.Context, root Root) (*FlatTree, error) {
	start := time.Now()
	tree, err := m.materialize(ctx, root)
	observeMaterialization(time.Since(start), tree, err)

	if err != nil {
		m.logger.Debug("materialization failed", zap.String("root", root.Path), zap.Error(err))
		return nil, err
	}
	m.logger.Debug("materialized",
		zap.String("root", root.Path),
		zap.Int("nodes", tree.Len()),
		zap.Duration("elapsed", time.Since(start)),
	)
	return tree, nil
}

func (m *Materializer) materialize(ctx context.Context, root Root) (*FlatTree, error) {
	info, err := m.fs.Stat(ctx, root.Path)
	if err != nil {
		if errors.Is(err, fsys.ErrNotFound) {
			return nil, fmt.Errorf("root %s: %w: %w", root.Path, ErrStaleRoot, err)
		}
		return nil, fmt.Errorf("root %s: %w", root.Path, err)
	}
	if !info.IsDir {
		return nil, fmt.Errorf("root %s: %w", root.Path, ErrInvalidRoot)
	}

	p := &pass{
		ctx:       ctx,
		fs:        m.fs,
		logger:    m.logger,
		collator:  collate.New(m.locale),
		expanded:  make(map[fsys.FileID]struct{}, len(root.Expanded)),
		ancestors: map[fsys.FileID]struct{}{info.ID: {}},
		reached:   map[fsys.FileID]string{root.ID: root.Path},
	}
	for id := range root.Expanded {
		p.expanded[id] = struct{}{}
	}

	name := root.Name
	if name == "" {
		name = filepath.Base(root.Path)
	}
	p.nodes = append(p.nodes, FileNode{
		Name:       name,
		Path:       filepath.Dir(root.Path),
		Depth:      0,
		ID:         info.ID,
		IsDir:      true,
		IsExpanded: true,
	})

	if err := p.collect(root.Path, 1); err != nil {
		return nil, err
	}
	linkSubtrees(p.nodes)

	return &FlatTree{
		RootID:  root.ID,
		Name:    name,
		Path:    root.Path,
		Files:   p.nodes,
		reached: p.reached,
	}, nil
}

// pass is the state of one materialization. It is owned by a single
// goroutine and walks depth first, one filesystem call at a time.
type pass struct {
	ctx      context.Context
	fs       fsys.FileSystem
	logger   *zap.Logger
	collator *collate.Collator

	expanded  map[fsys.FileID]struct{}
	ancestors map[fsys.FileID]struct{}
	reached   map[fsys.FileID]string
	nodes     []FileNode
}

// collect appends the sorted children of dir, recursing into each expanded
// child directory right after it.
func (p *pass) collect(dir string, depth int) error {
	names, err := p.fs.List(p.ctx, dir)
	if err != nil {
		return err
	}

	children := make([]FileNode, 0, len(names))
	for _, name := range names {
		info, err := p.fs.Stat(p.ctx, filepath.Join(dir, name))
		if err != nil {
			return err
		}
		_, expanded := p.expanded[info.ID]
		children = append(children, FileNode{
			Name:       name,
			Path:       dir,
			Depth:      depth,
			ID:         info.ID,
			IsDir:      info.IsDir,
			IsExpanded: info.IsDir && expanded,
		})
	}
	p.sort(children)

	for _, child := range children {
		if child.IsExpanded {
			if _, cyclic := p.ancestors[child.ID]; cyclic {
				// A symlink back to an ancestor; show it, never descend.
				p.logger.Debug("skipping cyclic directory", zap.String("path", filepath.Join(dir, child.Name)))
				child.IsExpanded = false
			}
		}
		p.nodes = append(p.nodes, child)
		if !child.IsExpanded {
			continue
		}

		childPath := filepath.Join(dir, child.Name)
		p.reached[child.ID] = childPath
		p.ancestors[child.ID] = struct{}{}
		err := p.collect(childPath, depth+1)
		delete(p.ancestors, child.ID)
		if err != nil {
			return err
		}
	}
	return nil
}

// sort orders siblings: directories first, then by locale-aware collation of
// the name, falling back to a bytewise comparison so the order is total.
func (p *pass) sort(nodes []FileNode) {
	slices.SortFunc(nodes, func(a, b FileNode) int {
		if a.IsDir != b.IsDir {
			if a.IsDir {
				return -1
			}
			return 1
		}
		if c := p.collator.CompareString(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}
