package server

import (
	"context"
	"log"
	"net/http"

	"github.com/ppiankov/reportlens/internal/cache"
	"github.com/ppiankov/reportlens/internal/chat"
	"github.com/ppiankov/reportlens/internal/factcheck"
	"github.com/ppiankov/reportlens/internal/section"
	"github.com/ppiankov/reportlens/internal/viewer"
)

const (
	sessionHeader = "X-Session-ID"
	sessionCookie = "session_id"
)

// Session is everything one browser tab owns. Nothing is shared between
// sessions except the upstream clients.
type Session struct {
	ID       string
	Cache    *cache.MemoryCache
	Facts    *factcheck.Orchestrator
	Chat     *chat.Manager
	Viewer   *viewer.Viewer
	Sections *section.Service
}

func (s *Server) newSession(id string) *Session {
	c := cache.NewSessionCache()
	facts := factcheck.NewOrchestrator(c, s.opts.Backend)
	return &Session{
		ID:       id,
		Cache:    c,
		Facts:    facts,
		Chat:     chat.NewManager(s.opts.Chat, facts),
		Viewer:   viewer.New(),
		Sections: section.NewService(s.opts.Backend, c, facts),
	}
}

func requestSessionID(r *http.Request) string {
	if id := r.Header.Get(sessionHeader); id != "" {
		return id
	}
	if c, err := r.Cookie(sessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// session resolves the caller's session, starting a new one when the ID is
// missing, unknown or expired
func (s *Server) session(w http.ResponseWriter, r *http.Request) *Session {
	id, sess := s.sessions.GetOrCreate(requestSessionID(r))
	setSessionID(w, id)
	return sess
}

func setSessionID(w http.ResponseWriter, id string) {
	w.Header().Set(sessionHeader, id)
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    id,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id, sess := s.sessions.Create()
	setSessionID(w, id)

	prefetch := s.opts.Prefetch
	switch r.URL.Query().Get("prefetch") {
	case "true", "1":
		prefetch = true
	case "false", "0":
		prefetch = false
	}
	if prefetch {
		s.prefetch(sess)
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"session_id": id,
		"prefetch":   prefetch,
	})
}

// prefetch warms every section of sess in the background
func (s *Server) prefetch(sess *Session) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.PrefetchTimeout)
		defer cancel()

		for _, res := range sess.Sections.Prefetch(ctx, s.opts.Workers) {
			if res.Err != nil {
				log.Printf("session %s: prefetch %s failed: %v", sess.ID, res.Name, res.Err)
			}
		}
	}()
}

func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := requestSessionID(r)
	if sess, ok := s.sessions.Get(id); ok {
		sess.Chat.Reset()
		_ = sess.Viewer.Close()
		_ = sess.Cache.Clear()
		s.sessions.End(id)
	}
	http.SetCookie(w, &http.Cookie{Name: sessionCookie, Value: "", Path: "/", MaxAge: -1})
	w.WriteHeader(http.StatusNoContent)
}
