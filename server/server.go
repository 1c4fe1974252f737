// Package server exposes the pipeline over HTTP. Each request is an
// independent pipeline run; fragments are returned inline rather than
// written to disk.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"omegacode/assemble"
	"omegacode/language"
	"omegacode/llm"
	"omegacode/metrics"
	"omegacode/pipeline"
)

// maxRequestBodySize limits POST body sizes to prevent DoS.
const maxRequestBodySize = 1 << 20 // 1 MB

// Server serves the generation API.
type Server struct {
	pipeline *pipeline.Pipeline
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a server over a pipeline. metrics may be nil to disable the
// /metrics endpoint.
func New(p *pipeline.Pipeline, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{pipeline: p, metrics: m, logger: logger}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/generate", s.handleGenerate)
	mux.HandleFunc("/v1/languages", s.handleLanguages)
	mux.HandleFunc("/healthz", s.handleHealthz)
	if s.metrics != nil {
		mux.Handle("/metrics", s.metrics.Handler())
	}
	return mux
}

// ListenAndServe runs the server until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", slog.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// GenerateRequest is the body for POST /v1/generate.
type GenerateRequest struct {
	Description string `json:"description"`
	Language    string `json:"language"`
	MaxAttempts int    `json:"max_attempts,omitempty"`
	SingleFile  string `json:"single_file,omitempty"`
}

// GeneratedFile is one fragment in a generate response.
type GeneratedFile struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// GenerateResponse is the body for a completed generate call, accepted or
// exhausted.
type GenerateResponse struct {
	RunID        string           `json:"run_id"`
	Accepted     bool             `json:"accepted"`
	Attempts     int              `json:"attempts"`
	Reason       string           `json:"reason,omitempty"`
	Files        []GeneratedFile  `json:"files"`
	Dependencies []string         `json:"dependencies,omitempty"`
	Report       *assemble.Report `json:"report"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Description == "" || req.Language == "" {
		http.Error(w, "description and language are required", http.StatusBadRequest)
		return
	}

	res, err := s.pipeline.Run(r.Context(), pipeline.Input{
		Description: req.Description,
		Language:    req.Language,
		MaxAttempts: req.MaxAttempts,
		SingleFile:  req.SingleFile,
	})
	if err != nil {
		s.writeRunError(w, err)
		return
	}

	resp := GenerateResponse{
		RunID:    res.RunID,
		Accepted: res.Manifest.Accepted,
		Attempts: res.Manifest.Attempts,
		Reason:   res.Loop.Reason,
		Files:    make([]GeneratedFile, 0, len(res.Manifest.Fragments)),
		Report:   res.Report,
	}
	for _, frag := range res.Manifest.Fragments {
		resp.Files = append(resp.Files, GeneratedFile{Path: frag.Path, Content: frag.Content})
	}
	for _, dep := range res.Manifest.Dependencies {
		resp.Dependencies = append(resp.Dependencies, dep.String())
	}

	writeJSON(w, http.StatusOK, resp)
}

// writeRunError maps pipeline errors onto HTTP statuses: caller errors are
// 4xx, oracle infrastructure failures are 502.
func (s *Server) writeRunError(w http.ResponseWriter, err error) {
	s.logger.Error("generate failed", slog.String("error", err.Error()))

	switch {
	case errors.Is(err, language.ErrUnsupportedLanguage):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, assemble.ErrConflictingDependencyVersion):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, llm.ErrOracleUnavailable), errors.Is(err, llm.ErrOracleTimeout):
		http.Error(w, err.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func (s *Server) handleLanguages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"languages": s.pipeline.Languages()})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
