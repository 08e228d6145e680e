package server

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/explorer"
)

// httpError carries an explicit status code.
type httpError struct {
	Code int
	Err  error
}

func (h httpError) Error() string { return h.Err.Error() }
func (h httpError) Unwrap() error { return h.Err }

// handlerFunc is an http handler that reports failure by returning an error.
type handlerFunc func(w http.ResponseWriter, r *http.Request) error

func (s *Server) handle(fn handlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := fn(w, r)
		if err == nil {
			return
		}
		code := statusCode(err)
		if code >= http.StatusInternalServerError {
			s.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		}
		writeJSON(w, code, errorResponse{Error: err.Error(), Kind: kindOf(err)})
	})
}

type errorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

func statusCode(err error) int {
	var herr httpError
	switch {
	case errors.As(err, &herr):
		return herr.Code
	case errors.Is(err, explorer.ErrRootExists):
		return http.StatusConflict
	case errors.Is(err, explorer.ErrInvalidRoot):
		return http.StatusUnprocessableEntity
	case errors.Is(err, explorer.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, explorer.ErrPermissionDenied):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) string {
	if errors.Is(err, explorer.ErrRootExists) {
		return "RootExists"
	}
	if kind := explorer.KindOf(err); kind != explorer.KindInternal {
		return string(kind)
	}
	return ""
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
