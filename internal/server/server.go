// Package server serves the project store and the code helpers over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/agentic-research/codepad/api"
	"github.com/agentic-research/codepad/internal/assist"
	"github.com/agentic-research/codepad/internal/editor"
	"github.com/agentic-research/codepad/internal/remote"
)

type Config struct {
	Store remote.Store
	// Assistant and Runner are optional; their endpoints answer 503 when unset.
	Assistant editor.Assistant
	Runner    editor.Runner
	Logger    logrus.FieldLogger
}

type Server struct {
	store     remote.Store
	assistant editor.Assistant
	runner    editor.Runner
	log       logrus.FieldLogger
}

func New(cfg Config) (*Server, error) {
	if cfg.Store == nil {
		return nil, errors.New("server: missing store")
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Server{
		store:     cfg.Store,
		assistant: cfg.Assistant,
		runner:    cfg.Runner,
		log:       log.WithField("component", "server"),
	}, nil
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)

	mux.HandleFunc("GET /api/projects", s.handleListProjects)
	mux.HandleFunc("POST /api/projects", s.handleCreateProject)
	mux.HandleFunc("GET /api/projects/{projectId}", s.handleGetProject)
	mux.HandleFunc("PUT /api/projects/{projectId}", s.handleUpdateProject)
	mux.HandleFunc("DELETE /api/projects/{projectId}", s.handleDeleteProject)
	mux.HandleFunc("GET /api/projects/{projectId}/download", s.handleDownload)

	mux.HandleFunc("GET /api/getFileTree", s.handleGetTree)
	mux.HandleFunc("POST /api/saveFileTree", s.handleSaveTree)
	mux.HandleFunc("POST /api/saveFile", s.handleSaveFile)

	mux.HandleFunc("POST /api/suggestion", s.handleSuggestion)
	mux.HandleFunc("POST /api/bugfix", s.handleBugFix)
	mux.HandleFunc("POST /api/bugdetect", s.handleBugDetect)
	mux.HandleFunc("POST /api/format", s.handleFormat)
	mux.HandleFunc("POST /api/run", s.handleRun)
	return s.withLogging(mux)
}

// ListenAndServe serves until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.WithField("addr", addr).Info("listening")

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, api.Message{Message: "ok"})
}

// statusRecorder captures the response status for the access log.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		entry := s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start),
		})
		if rec.status >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, api.Message{Message: msg})
}

// writeError maps store and collaborator errors onto HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var authErr *assist.AuthError
	var rateErr *assist.RateLimitError
	switch {
	case errors.Is(err, remote.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, remote.ErrInvalid):
		status = http.StatusBadRequest
	case errors.Is(err, assist.ErrMissingKey):
		status = http.StatusServiceUnavailable
	case errors.As(err, &rateErr):
		status = http.StatusTooManyRequests
	case errors.As(err, &authErr):
		status = http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	}
	if status >= 500 {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request error")
	}
	writeMessage(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 16<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}
