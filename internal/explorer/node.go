package explorer

import "github.com/TFMV/explorer/internal/fsys"

// FileNode is one visible entry of a materialized tree.
type FileNode struct {
	Name         string      `json:"name"`         // Base name
	Path         string      `json:"path"`         // Parent directory
	Depth        int         `json:"depth"`        // Distance from the root node
	ID           fsys.FileID `json:"id"`           // Durable identity
	IsDir        bool        `json:"isDir"`        // Whether the entry is a directory
	IsExpanded   bool        `json:"isExpanded"`   // Whether its children follow it
	Index        int         `json:"index"`        // Position in the flattened sequence
	NextNonChild int         `json:"nextNonChild"` // First following node outside its subtree
}

// FlatTree is the pre-order flattening of the visible part of one root.
type FlatTree struct {
	RootID fsys.FileID `json:"id"`
	Name   string      `json:"name"`
	Path   string      `json:"path"`
	Files  []FileNode  `json:"files"`

	// reached holds every expanded directory the pass descended into,
	// keyed by identity with its current path.
	reached map[fsys.FileID]string
}

// Len returns the number of visible nodes.
func (t *FlatTree) Len() int { return len(t.Files) }

// Subtree returns the descendants of node i, which occupy the half-open
// range (i, NextNonChild).
func (t *FlatTree) Subtree(i int) []FileNode {
	return t.Files[i+1 : t.Files[i].NextNonChild]
}

// Reached returns a copy of the expanded directories the pass descended into.
func (t *FlatTree) Reached() map[fsys.FileID]string {
	reached := make(map[fsys.FileID]string, len(t.reached))
	for id, path := range t.reached {
		reached[id] = path
	}
	return reached
}

// frame is a directory that opened a subtree, waiting for the index at which
// that subtree ends.
type frame struct {
	index int
	depth int
}

// linkSubtrees assigns flat indices and NextNonChild in a single pass over a
// pre-order node arena. A node whose successor is deeper is pushed; when the
// depth falls back, every pushed node at or below the new depth is closed at
// the current index. Nodes that never open a subtree skip to their successor.
func linkSubtrees(nodes []FileNode) {
	stack := make([]frame, 0, 16)
	prevDepth := 0

	for i := range nodes {
		depth := nodes[i].Depth
		nodes[i].Index = i
		nodes[i].NextNonChild = i + 1

		if i > 0 && depth > prevDepth {
			stack = append(stack, frame{index: i - 1, depth: prevDepth})
		}
		if depth < prevDepth {
			for len(stack) > 0 && stack[len(stack)-1].depth >= depth {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				nodes[top.index].NextNonChild = i
			}
		}
		prevDepth = depth
	}

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes[top.index].NextNonChild = len(nodes)
	}
}
