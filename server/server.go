package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chazu/quill/savestore"
	"github.com/chazu/quill/vm"
)

// StoryServer hosts sessions of one story over Connect (HTTP/JSON). All
// sessions share the story graph; each is driven by its own worker.
type StoryServer struct {
	story    *vm.Story
	sessions *SessionStore
	service  *StoryService
	mux      *http.ServeMux
	http     *http.Server

	stopSweeper func()
}

// ServerOption configures a StoryServer.
type ServerOption func(*serverConfig)

type serverConfig struct {
	sessionOpts   []vm.Option
	saves         *savestore.Store
	sessionTTL    time.Duration
	sweepInterval time.Duration
}

// WithSessionOptions sets the options every hosted session starts with.
func WithSessionOptions(opts ...vm.Option) ServerOption {
	return func(c *serverConfig) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// WithSaveStore enables the Save, Load and ListSaves procedures.
func WithSaveStore(st *savestore.Store) ServerOption {
	return func(c *serverConfig) { c.saves = st }
}

// WithSessionTTL sets how long an idle session is kept and how often idle
// sessions are swept.
func WithSessionTTL(ttl, interval time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.sessionTTL = ttl
		c.sweepInterval = interval
	}
}

// New creates a StoryServer for story.
func New(story *vm.Story, opts ...ServerOption) *StoryServer {
	cfg := &serverConfig{
		sessionTTL:    30 * time.Minute,
		sweepInterval: time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	RegisterMetrics()

	sessions := NewSessionStore(story, cfg.sessionOpts...)
	s := &StoryServer{
		story:    story,
		sessions: sessions,
		service:  NewStoryService(story, sessions, cfg.saves),
		mux:      http.NewServeMux(),
	}

	path, handler := s.service.Handler()
	s.mux.Handle(path, handler)
	s.mux.Handle("/metrics", promhttp.Handler())
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok\n"))
	})

	s.stopSweeper = sessions.StartSweeper(cfg.sweepInterval, cfg.sessionTTL)
	return s
}

// Handler returns the server's HTTP handler.
func (s *StoryServer) Handler() http.Handler { return s.mux }

// Sessions returns the server's session store.
func (s *StoryServer) Sessions() *SessionStore { return s.sessions }

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *StoryServer) ListenAndServe(addr string) error {
	s.http = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	log.Noticef("quill story server listening on %s", addr)
	log.Infof("  Connect (HTTP/JSON): http://%s%s", addr, StartSessionProcedure)
	log.Infof("  metrics:             http://%s/metrics", addr)
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *StoryServer) Shutdown(ctx context.Context) error {
	var err error
	if s.http != nil {
		err = s.http.Shutdown(ctx)
	}
	s.Stop()
	return err
}

// Stop ends every session and the sweeper.
func (s *StoryServer) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
		s.stopSweeper = nil
	}
	s.sessions.Close()
}
