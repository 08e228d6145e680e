// Package server exposes an explorer.Service over HTTP: JSON endpoints for
// reading trees and editing roots, a websocket pushing every recomputed
// payload, and the Prometheus metrics endpoint.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/TFMV/explorer/internal/explorer"
	"github.com/TFMV/explorer/internal/fsys"
)

// maxBodyBytes bounds root submissions.
const maxBodyBytes = 1 << 20

// Options configures a Server.
type Options struct {
	// WriteTimeout bounds each websocket write.
	WriteTimeout time.Duration

	// CheckOrigin overrides the websocket same-origin check.
	CheckOrigin func(r *http.Request) bool
}

// Server routes HTTP requests to an explorer.Service.
type Server struct {
	svc      *explorer.Service
	logger   *zap.Logger
	router   *mux.Router
	upgrader websocket.Upgrader
	opts     Options
}

// New creates a Server for svc.
func New(svc *explorer.Service, logger *zap.Logger, opts Options) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	s := &Server{
		svc:    svc,
		logger: logger,
		router: mux.NewRouter(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     opts.CheckOrigin,
		},
		opts: opts,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(s.logRequests)

	r.Handle("/api", s.handle(s.getTrees)).Methods(http.MethodGet)
	r.Handle("/api", s.handle(s.submitRoot)).Methods(http.MethodPut)
	r.Handle("/api/trees", s.handle(s.getTrees)).Methods(http.MethodGet)
	r.Handle("/api/roots", s.handle(s.submitRoot)).Methods(http.MethodPost, http.MethodPut)
	r.Handle("/api/roots/{id}", s.handle(s.deleteRoot)).Methods(http.MethodDelete)
	r.HandleFunc("/api/ws", s.serveWebsocket)

	r.Handle("/metrics", promhttp.Handler())
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// expandedDir is one entry of a root's expansion map on the wire.
type expandedDir struct {
	FileID fsys.FileID `json:"fileId"`
	Path   string      `json:"path"`
}

// rootSubmission adds a root when ID is empty and updates it otherwise.
type rootSubmission struct {
	ID           fsys.FileID   `json:"id,omitempty"`
	Path         string        `json:"path"`
	ExpandedDirs []expandedDir `json:"expandedDirs"`
}

type rootResponse struct {
	ID           fsys.FileID   `json:"id"`
	Name         string        `json:"name"`
	Path         string        `json:"path"`
	Generation   uint64        `json:"generation"`
	ExpandedDirs []expandedDir `json:"expandedDirs"`
}

func newRootResponse(root explorer.Root) rootResponse {
	resp := rootResponse{
		ID:           root.ID,
		Name:         root.Name,
		Path:         root.Path,
		Generation:   root.Generation,
		ExpandedDirs: make([]expandedDir, 0, len(root.Expanded)),
	}
	for id, path := range root.Expanded {
		resp.ExpandedDirs = append(resp.ExpandedDirs, expandedDir{FileID: id, Path: path})
	}
	return resp
}

func (s *Server) getTrees(w http.ResponseWriter, r *http.Request) error {
	writeJSON(w, http.StatusOK, s.svc.Trees(r.Context()))
	return nil
}

func (s *Server) submitRoot(w http.ResponseWriter, r *http.Request) error {
	var sub rootSubmission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		return httpError{Code: http.StatusBadRequest, Err: fmt.Errorf("decoding root submission: %w", err)}
	}

	expanded := make(map[fsys.FileID]string, len(sub.ExpandedDirs))
	for _, dir := range sub.ExpandedDirs {
		if dir.FileID == "" || dir.Path == "" {
			return httpError{Code: http.StatusBadRequest, Err: errors.New("expanded directories need both fileId and path")}
		}
		expanded[dir.FileID] = dir.Path
	}

	if sub.ID == "" {
		if sub.Path == "" {
			return httpError{Code: http.StatusBadRequest, Err: errors.New("a new root needs a path")}
		}
		root, err := s.svc.AddRoot(r.Context(), sub.Path, expanded)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusCreated, newRootResponse(root))
		return nil
	}

	root, err := s.svc.UpdateRoot(r.Context(), sub.ID, expanded)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, newRootResponse(root))
	return nil
}

func (s *Server) deleteRoot(w http.ResponseWriter, r *http.Request) error {
	s.svc.RemoveRoot(r.Context(), fsys.FileID(mux.Vars(r)["id"]))
	w.WriteHeader(http.StatusNoContent)
	return nil
}

// HTTPService runs an http.Server until its context is done, shutting down
// gracefully. It satisfies suture.Service.
type HTTPService struct {
	Addr            string
	Handler         http.Handler
	Logger          *zap.Logger
	ShutdownTimeout time.Duration
}

// Serve listens on Addr.
func (h *HTTPService) Serve(ctx context.Context) error {
	logger := h.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := h.ShutdownTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	srv := &http.Server{
		Addr:              h.Addr,
		Handler:           h.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", h.Addr))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("http server on %s: %w", h.Addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down http server: %w", err)
		}
		return nil
	}
}
