/*-------------------------------------------------------------------------
 *
 * sqlpilot - Web Chat Server
 *
 * HTTP surface for the assistant: a JSON chat API, stored-session
 * endpoints, health and metrics, and the embedded chat page.
 *
 * Portions copyright (c) 2025, pgEdge, Inc.
 * This software is released under The PostgreSQL License
 *
 *-------------------------------------------------------------------------
 */

package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"sqlpilot/internal/agent"
	"sqlpilot/internal/conversations"
	"sqlpilot/internal/llm"
	"sqlpilot/internal/logging"
	"sqlpilot/internal/metrics"
	"sqlpilot/internal/web/ui"
)

// Conversation is the slice of a session the web surface drives. It is
// satisfied by *agent.Session.
type Conversation interface {
	TryAsk(ctx context.Context, text string) (agent.Answer, error)
	History() []llm.Message
	State() agent.State
}

// SessionFactory builds the conversation behind a session ID, seeded with
// any history previously recorded in the store.
type SessionFactory func(id string, history []llm.Message) Conversation

// HealthCheck reports whether the metadata provider is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds the web server settings.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// ShutdownTimeout bounds the graceful drain on shutdown. Zero means 10s.
	ShutdownTimeout time.Duration
}

// Server owns the HTTP surface and the pool of live sessions behind it.
// Completed turns are appended to the store so sessions survive restarts.
type Server struct {
	cfg     Config
	store   *conversations.Store
	factory SessionFactory
	health  HealthCheck

	mu   sync.Mutex
	live map[string]*liveSession
}

// liveSession pairs an in-memory conversation with how much of its history
// has already been written to the store.
type liveSession struct {
	id   string
	conv Conversation

	mu        sync.Mutex
	persisted int
}

// NewServer wires the web surface. The factory is called lazily, the first
// time each session ID sees a chat request.
func NewServer(cfg Config, store *conversations.Store, factory SessionFactory, health HealthCheck) *Server {
	return &Server{
		cfg:     cfg,
		store:   store,
		factory: factory,
		health:  health,
		live:    make(map[string]*liveSession),
	}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/chat", s.handleChat)
	mux.HandleFunc("GET /api/history", s.handleHistory)
	mux.HandleFunc("GET /api/sessions", s.handleListSessions)
	mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Handler())
	mux.Handle("GET /{path...}", ui.Handler())
	return metrics.Middleware(mux)
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Handler(),
	}

	errs := make(chan error, 1)
	go func() {
		logging.Info("web server listening", "addr", s.cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
	}()

	select {
	case err := <-errs:
		return fmt.Errorf("web server failed: %w", err)
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	logging.Info("shutting down web server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		server.Close()
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

// session returns the live conversation for id, creating it from stored
// history on first use.
func (s *Server) session(id string) (*liveSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if live, ok := s.live[id]; ok {
		return live, nil
	}

	history, err := s.store.LoadHistory(id)
	if err != nil {
		return nil, err
	}
	live := &liveSession{
		id:        id,
		conv:      s.factory(id, history),
		persisted: len(history),
	}
	s.live[id] = live
	return live, nil
}

// persist appends the history recorded since the last write. Turns are
// persisted after each completed request, so the store trails the live
// session only while a turn is in flight.
func (l *liveSession) persist(store *conversations.Store) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.conv.History()
	if len(history) <= l.persisted {
		return nil
	}
	if err := store.AppendTurns(l.id, history[l.persisted:]); err != nil {
		return err
	}
	l.persisted = len(history)
	return nil
}
