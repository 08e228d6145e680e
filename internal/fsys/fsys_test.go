package fsys

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"testing"
)

func TestOSStat(t *testing.T) {
	tmpDir := t.TempDir()
	file := filepath.Join(tmpDir, "file.txt")
	if err := os.WriteFile(file, []byte("content"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fsys := NewOS()
	ctx := context.Background()

	tests := []struct {
		name  string
		path  string
		isDir bool
	}{
		{"directory", tmpDir, true},
		{"regular file", file, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info, err := fsys.Stat(ctx, tt.path)
			if err != nil {
				t.Fatalf("Stat failed: %v", err)
			}
			if info.IsDir != tt.isDir {
				t.Errorf("Expected IsDir=%v, got %v", tt.isDir, info.IsDir)
			}
			if info.ID == "" {
				t.Errorf("Expected a non-empty identity")
			}
			if info.Name != filepath.Base(tt.path) {
				t.Errorf("Expected name %q, got %q", filepath.Base(tt.path), info.Name)
			}
		})
	}
}

func TestOSStatIdentity(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a")
	b := filepath.Join(tmpDir, "b")
	if err := os.Mkdir(a, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}
	if err := os.Mkdir(b, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	fsys := NewOS()
	ctx := context.Background()

	infoA, err := fsys.Stat(ctx, a)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	infoB, err := fsys.Stat(ctx, b)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if infoA.ID == infoB.ID {
		t.Errorf("Distinct directories share identity %q", infoA.ID)
	}

	again, err := fsys.Stat(ctx, a)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if again.ID != infoA.ID {
		t.Errorf("Identity changed between stats: %q != %q", infoA.ID, again.ID)
	}

	if runtime.GOOS == "windows" {
		t.Skip("synthetic identities do not follow renames")
	}
	renamed := filepath.Join(tmpDir, "renamed")
	if err := os.Rename(a, renamed); err != nil {
		t.Fatalf("Failed to rename: %v", err)
	}
	moved, err := fsys.Stat(ctx, renamed)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if moved.ID != infoA.ID {
		t.Errorf("Identity did not survive rename: %q != %q", infoA.ID, moved.ID)
	}
}

func TestOSErrors(t *testing.T) {
	fsys := NewOS()
	ctx := context.Background()
	missing := filepath.Join(t.TempDir(), "missing")

	_, err := fsys.Stat(ctx, missing)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from Stat, got %v", err)
	}
	var pathErr *PathError
	if !errors.As(err, &pathErr) || pathErr.Path != missing || pathErr.Op != "stat" {
		t.Errorf("Expected a PathError for %s, got %#v", missing, err)
	}

	_, err = fsys.List(ctx, missing)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound from List, got %v", err)
	}

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := fsys.Stat(canceled, missing); !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}

func TestOSStatBelowFile(t *testing.T) {
	tmpDir := t.TempDir()
	parent := filepath.Join(tmpDir, "parent")
	if err := os.WriteFile(parent, nil, 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	fsys := NewOS()
	below := filepath.Join(parent, "root")
	if _, err := fsys.Stat(context.Background(), below); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for a path below a file, got %v", err)
	}
	if _, err := fsys.List(context.Background(), below); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound listing below a file, got %v", err)
	}
}

func TestOSList(t *testing.T) {
	tmpDir := t.TempDir()
	for _, name := range []string{"b.txt", "a.txt"} {
		if err := os.WriteFile(filepath.Join(tmpDir, name), nil, 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}
	if err := os.Mkdir(filepath.Join(tmpDir, "dir"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	names, err := NewOS().List(context.Background(), tmpDir)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	sort.Strings(names)
	expected := []string{"a.txt", "b.txt", "dir"}
	if len(names) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, names)
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("Expected %v, got %v", expected, names)
			break
		}
	}
}

func TestIdentityCache(t *testing.T) {
	cache := NewIdentityCache()

	first := cache.Lookup("/a")
	if first == "" {
		t.Fatal("Expected a non-empty identity")
	}
	if got := cache.Lookup("/a"); got != first {
		t.Errorf("Expected cached identity %q, got %q", first, got)
	}
	if other := cache.Lookup("/b"); other == first {
		t.Errorf("Distinct paths share identity %q", first)
	}

	cache.Forget("/a")
	if got := cache.Lookup("/a"); got == first {
		t.Errorf("Expected a fresh identity after Forget, got %q again", got)
	}
}
