package explorer

import (
	"io"
	"net/http"

	"go.uber.org/zap"

	internal "github.com/TFMV/explorer/internal/explorer"
	"github.com/TFMV/explorer/internal/fsys"
	"github.com/TFMV/explorer/internal/server"
)

// Re-export the types of the internal packages
type (
	// FileID identifies a file independently of its path.
	FileID = fsys.FileID

	// FileSystem is the read side of the filesystem a Service explores.
	FileSystem = fsys.FileSystem

	// Watcher delivers change notifications for individual directories.
	Watcher = fsys.Watcher

	// Service owns the registered roots and keeps their views current.
	Service = internal.Service

	// Config configures a Service.
	Config = internal.Config

	// Root is a registered top-level directory and its expansion map.
	Root = internal.Root

	// FileNode is one visible entry of a flattened tree.
	FileNode = internal.FileNode

	// FlatTree is the flattened view of one root.
	FlatTree = internal.FlatTree

	// Payload is the complete view broadcast to subscribers.
	Payload = internal.Payload

	// Diagnostic describes a root that could not be materialized.
	Diagnostic = internal.Diagnostic

	// Subscription receives every broadcast Payload.
	Subscription = internal.Subscription
)

// Re-export the error sentinels
var (
	ErrNotFound         = internal.ErrNotFound
	ErrPermissionDenied = internal.ErrPermissionDenied
	ErrInvalidRoot      = internal.ErrInvalidRoot
	ErrStaleRoot        = internal.ErrStaleRoot
	ErrRootExists       = internal.ErrRootExists
)

// NewService creates a Service over an arbitrary filesystem and watcher.
func NewService(fs FileSystem, watcher Watcher, cfg Config) *Service {
	return internal.NewService(fs, watcher, cfg)
}

// Open creates a Service over the operating system's filesystem, watched
// through fsnotify. Close the returned watcher once Serve has returned.
func Open(cfg Config) (*Service, io.Closer, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	watcher, err := fsys.NewNotifyWatcher(logger.Named("watcher"))
	if err != nil {
		return nil, nil, err
	}
	return internal.NewService(fsys.NewOS(), watcher, cfg), watcher, nil
}

// Handler serves svc over HTTP: JSON endpoints under /api, a websocket on
// /api/ws and Prometheus metrics on /metrics.
func Handler(svc *Service, logger *zap.Logger) http.Handler {
	return server.New(svc, logger, server.Options{})
}
