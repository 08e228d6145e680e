package explorer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/TFMV/explorer/internal/fsys"
)

// setupBenchmarkTree creates dirCount directories holding fileCount files each
// and returns a Root with none of them expanded.
func setupBenchmarkTree(b *testing.B, fs fsys.FileSystem, dirCount, fileCount int) (Root, []string) {
	b.Helper()
	tmpDir := b.TempDir()

	dirs := make([]string, dirCount)
	for i := range dirs {
		dirs[i] = filepath.Join(tmpDir, fmt.Sprintf("dir%03d", i))
		if err := os.MkdirAll(dirs[i], 0755); err != nil {
			b.Fatalf("Failed to create directory: %v", err)
		}
		for j := 0; j < fileCount; j++ {
			path := filepath.Join(dirs[i], fmt.Sprintf("file%03d.txt", j))
			if err := os.WriteFile(path, nil, 0644); err != nil {
				b.Fatalf("Failed to create file: %v", err)
			}
		}
	}

	info, err := fs.Stat(context.Background(), tmpDir)
	if err != nil {
		b.Fatalf("Failed to stat root: %v", err)
	}
	root := Root{
		ID:       info.ID,
		Name:     filepath.Base(tmpDir),
		Path:     tmpDir,
		Expanded: map[fsys.FileID]string{info.ID: tmpDir},
	}
	return root, dirs
}

// BenchmarkMaterialize measures a pass as the number of visible nodes grows
// while the tree on disk stays the same size.
func BenchmarkMaterialize(b *testing.B) {
	ctx := context.Background()
	fs := fsys.NewOS()
	root, dirs := setupBenchmarkTree(b, fs, 32, 32)
	m := NewMaterializer(fs)

	for _, expandedDirs := range []int{0, 1, 8, 32} {
		r := Root{ID: root.ID, Name: root.Name, Path: root.Path, Expanded: map[fsys.FileID]string{}}
		for id, path := range root.Expanded {
			r.Expanded[id] = path
		}
		for _, dir := range dirs[:expandedDirs] {
			info, err := fs.Stat(ctx, dir)
			if err != nil {
				b.Fatalf("Failed to stat %s: %v", dir, err)
			}
			r.Expanded[info.ID] = dir
		}

		b.Run(fmt.Sprintf("Expanded-%d", expandedDirs), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := m.Materialize(ctx, r); err != nil {
					b.Fatalf("Materialize failed: %v", err)
				}
			}
		})
	}
}

// BenchmarkLinkSubtrees measures the skip-index pass alone on synthetic
// sequences of increasing length.
func BenchmarkLinkSubtrees(b *testing.B) {
	for _, size := range []int{1_000, 10_000, 100_000} {
		nodes := make([]FileNode, size)
		for i := range nodes {
			// A repeating descent and climb, five levels deep.
			depth := i % 10
			if depth > 5 {
				depth = 10 - depth
			}
			if i == 0 || depth == 0 {
				depth = 1
			}
			nodes[i].Depth = depth
		}
		nodes[0].Depth = 0

		b.Run(fmt.Sprintf("Nodes-%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				linkSubtrees(nodes)
			}
		})
	}
}
