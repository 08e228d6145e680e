package explorer

import (
	"errors"

	"github.com/TFMV/explorer/internal/fsys"
)

// Error taxonomy. NotFound and PermissionDenied come straight from the
// filesystem layer so that a single errors.Is check covers both sources.
var (
	ErrNotFound         = fsys.ErrNotFound
	ErrPermissionDenied = fsys.ErrPermissionDenied
	ErrInvalidRoot      = errors.New("not a directory")
	ErrStaleRoot        = errors.New("root path no longer exists")
	ErrRootExists       = errors.New("root already registered")
)

// DiagnosticKind classifies a per-root failure reported in a Payload.
type DiagnosticKind string

const (
	KindNotFound         DiagnosticKind = "NotFound"
	KindPermissionDenied DiagnosticKind = "PermissionDenied"
	KindInvalidRoot      DiagnosticKind = "InvalidRoot"
	KindStaleRoot        DiagnosticKind = "StaleRoot"
	KindInternal         DiagnosticKind = "Internal"
)

// Diagnostic describes why one root could not be materialized.
type Diagnostic struct {
	RootID  fsys.FileID    `json:"rootId,omitempty"`
	Path    string         `json:"path"`
	Kind    DiagnosticKind `json:"kind"`
	Message string         `json:"message"`
}

// KindOf maps an error onto the taxonomy. StaleRoot wins over NotFound
// because a stale root error also wraps the underlying not-found cause.
func KindOf(err error) DiagnosticKind {
	switch {
	case errors.Is(err, ErrStaleRoot):
		return KindStaleRoot
	case errors.Is(err, ErrInvalidRoot):
		return KindInvalidRoot
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermissionDenied):
		return KindPermissionDenied
	default:
		return KindInternal
	}
}

func diagnose(root Root, err error) Diagnostic {
	return Diagnostic{
		RootID:  root.ID,
		Path:    root.Path,
		Kind:    KindOf(err),
		Message: err.Error(),
	}
}
