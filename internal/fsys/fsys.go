// Package fsys provides the filesystem primitives the explorer is built on:
// stat and directory listing with durable file identities, and a path-set
// watcher backed by fsnotify.
package fsys

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"syscall"

	"github.com/karrick/godirwalk"
)

// FileID is a durable identity for a file object. It is tied to the underlying
// file rather than its path, so a rename on the same volume keeps the id.
type FileID string

// Info is the subset of stat results the explorer needs.
type Info struct {
	Name  string // Base name of the file
	Path  string // Path that was stat'ed
	IsDir bool   // Whether the target (after following symlinks) is a directory
	ID    FileID // Durable identity
}

// FileSystem is the stat and listing surface used by the materializer and the
// root store. Both calls fail with errors matching ErrNotFound or
// ErrPermissionDenied where applicable.
type FileSystem interface {
	Stat(ctx context.Context, path string) (Info, error)
	List(ctx context.Context, path string) ([]string, error)
}

// Filesystem error kinds.
var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// PathError records a failed filesystem operation. It matches its Kind (one of
// the package sentinels, or nil) as well as the underlying error.
type PathError struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *PathError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As.
func (e *PathError) Unwrap() []error {
	if e.Kind == nil {
		return []error{e.Err}
	}
	return []error{e.Kind, e.Err}
}

// wrapError classifies err into the package taxonomy.
func wrapError(op, path string, err error) error {
	if err == nil {
		return nil
	}
	var kind error
	switch {
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, syscall.ENOTDIR):
		// ENOTDIR: a directory on the way to path has become a file.
		kind = ErrNotFound
	case errors.Is(err, fs.ErrPermission):
		kind = ErrPermissionDenied
	}
	return &PathError{Op: op, Path: path, Kind: kind, Err: err}
}

// OS is the FileSystem of the local machine.
type OS struct {
	ids *IdentityCache
}

var _ FileSystem = (*OS)(nil)

// NewOS returns a FileSystem backed by the operating system.
func NewOS() *OS {
	return &OS{ids: NewIdentityCache()}
}

// Stat follows symlinks, like stat(2).
func (o *OS) Stat(ctx context.Context, path string) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	isDir, id, err := o.stat(path)
	if err != nil {
		return Info{}, wrapError("stat", path, err)
	}
	return Info{
		Name:  filepath.Base(path),
		Path:  path,
		IsDir: isDir,
		ID:    id,
	}, nil
}

// List returns the names of the entries in the directory, excluding "." and
// "..", in no particular order.
func (o *OS) List(ctx context.Context, path string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	names, err := godirwalk.ReadDirnames(path, nil)
	if err != nil {
		return nil, wrapError("list", path, err)
	}
	return names, nil
}
