// Package server exposes the per-session components as a JSON API for the
// single-page frontend.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/chat"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/model"
	"github.com/ppiankov/reportlens/internal/section"
	"github.com/ppiankov/reportlens/internal/upload"
)

// Backend is the analysis service as the server uses it
type Backend interface {
	factcheck.Verifier
	section.Fetcher
	FinancialStatements(ctx context.Context) ([]byte, error)
	Health(ctx context.Context) error
}

// Registry records uploaded reports
type Registry interface {
	Record(ctx context.Context, r *model.Report) error
	List(ctx context.Context, limit int) ([]model.Report, error)
}

// Options wires the server to its dependencies.
// Registry may be nil.
type Options struct {
	Backend    Backend
	Chat       chat.Responder
	Uploads    *upload.Store
	Registry   Registry
	SessionTTL time.Duration
	Prefetch   bool
	Workers    int

	// PrefetchTimeout bounds the background warm-up of a new session
	PrefetchTimeout time.Duration
}

// Server is the HTTP API
type Server struct {
	opts     Options
	sessions *cache.SessionStore[*Session]
	mux      *http.ServeMux

	bg sync.WaitGroup
}

// New creates a server
func New(opts Options) (*Server, error) {
	if opts.Backend == nil {
		return nil, errors.New("server needs an analysis service backend")
	}
	if opts.Chat == nil {
		return nil, errors.New("server needs a chat responder")
	}
	if opts.Uploads == nil {
		return nil, errors.New("server needs an uploads store")
	}
	if opts.Workers <= 0 {
		opts.Workers = len(model.Sections)
	}
	if opts.PrefetchTimeout <= 0 {
		opts.PrefetchTimeout = 5 * time.Minute
	}

	s := &Server{opts: opts, mux: http.NewServeMux()}
	s.sessions = cache.NewSessionStore(opts.SessionTTL, s.newSession)
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server
func (s *Server) Handler() http.Handler {
	return logRequests(s.mux)
}

// Sessions returns the number of live sessions
func (s *Server) Sessions() int {
	return s.sessions.Len()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.HandleFunc("POST /api/session", s.handleCreateSession)
	s.mux.HandleFunc("DELETE /api/session", s.handleEndSession)

	s.mux.HandleFunc("GET /api/chat/messages", s.handleMessages)
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("PATCH /api/chat/input", s.handleChatInput)
	s.mux.HandleFunc("DELETE /api/chat/error", s.handleClearChatError)
	s.mux.HandleFunc("POST /api/chat/messages/{id}/fact-check", s.handleMessageFactCheck)
	s.mux.HandleFunc("POST /api/chat/messages/{id}/resync", s.handleMessageResync)

	s.mux.HandleFunc("GET /api/sections/{section}", s.handleSection)
	s.mux.HandleFunc("POST /api/sections/{section}/resync", s.handleSectionResync)
	s.mux.HandleFunc("POST /api/sections/{section}/fact-check", s.handleSectionFactCheck)

	s.mux.HandleFunc("GET /api/financial-statements", s.handleStatements)

	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/save-pdf", s.handleSavePDF)
	s.mux.HandleFunc("GET /api/reports", s.handleReports)
	s.mux.Handle("GET /uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(s.opts.Uploads.Dir()))))

	s.mux.HandleFunc("GET /api/viewer", s.handleViewer)
	s.mux.HandleFunc("POST /api/viewer/{action}", s.handleViewerAction)
}

// ListenAndServe serves on addr until ctx is cancelled
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	log.Printf("reportlens listening on %s", addr)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.Wait()
	return nil
}

// Wait blocks until background prefetches finish
func (s *Server) Wait() {
	s.bg.Wait()
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":   "ok",
		"sessions": s.sessions.Len(),
	}
	if r.URL.Query().Get("deep") != "" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()
		if err := s.opts.Backend.Health(ctx); err != nil {
			resp["backend"] = "unavailable"
			resp["status"] = "degraded"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
		resp["backend"] = "ok"
	}
	writeJSON(w, http.StatusOK, resp)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		log.Printf("%s %s %d %s", r.Method, r.URL.Path, rec.status, time.Since(start).Round(time.Millisecond))
	})
}
