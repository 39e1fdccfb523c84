package server

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chazu/quill/vm"
)

// hostedSession is a story session owned by the server.
type hostedSession struct {
	id       string
	worker   *SessionWorker
	created  time.Time
	lastUsed time.Time
}

// SessionStore maps opaque session IDs to running story sessions. Every
// session plays the same shared story graph.
type SessionStore struct {
	mu       sync.Mutex
	story    *vm.Story
	opts     []vm.Option
	sessions map[string]*hostedSession
}

// NewSessionStore creates a new session store for story. opts apply to
// every session it creates.
func NewSessionStore(story *vm.Story, opts ...vm.Option) *SessionStore {
	return &SessionStore{
		story:    story,
		opts:     opts,
		sessions: make(map[string]*hostedSession),
	}
}

// Create starts a new session. extra options follow the store defaults.
func (s *SessionStore) Create(extra ...vm.Option) (string, *SessionWorker, error) {
	opts := append(append([]vm.Option(nil), s.opts...), extra...)
	sess, err := vm.NewSession(s.story, opts...)
	if err != nil {
		return "", nil, fmt.Errorf("starting session: %w", err)
	}

	now := time.Now()
	h := &hostedSession{
		id:       uuid.NewString(),
		worker:   NewSessionWorker(sess),
		created:  now,
		lastUsed: now,
	}

	s.mu.Lock()
	s.sessions[h.id] = h
	n := len(s.sessions)
	s.mu.Unlock()

	sessionsActive.Set(float64(n))
	log.Debugf("session %s started (%d active)", h.id, n)
	return h.id, h.worker, nil
}

// Get retrieves a session's worker by ID and marks it used.
func (s *SessionStore) Get(id string) (*SessionWorker, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	h.lastUsed = time.Now()
	return h.worker, true
}

// Destroy stops a session. It reports whether the session existed.
func (s *SessionStore) Destroy(id string) bool {
	s.mu.Lock()
	h, ok := s.sessions[id]
	delete(s.sessions, id)
	n := len(s.sessions)
	s.mu.Unlock()

	if !ok {
		return false
	}
	h.worker.Stop()
	sessionsActive.Set(float64(n))
	log.Debugf("session %s ended after %s", id, time.Since(h.created).Round(time.Millisecond))
	return true
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Sweep removes sessions that haven't been accessed within the TTL.
func (s *SessionStore) Sweep(ttl time.Duration) int {
	s.mu.Lock()
	cutoff := time.Now().Add(-ttl)
	var expired []*hostedSession
	for id, h := range s.sessions {
		if h.lastUsed.Before(cutoff) {
			expired = append(expired, h)
			delete(s.sessions, id)
		}
	}
	n := len(s.sessions)
	s.mu.Unlock()

	for _, h := range expired {
		h.worker.Stop()
	}
	if len(expired) > 0 {
		sessionsActive.Set(float64(n))
		sessionsExpired.Add(float64(len(expired)))
		log.Infof("swept %d idle sessions", len(expired))
	}
	return len(expired)
}

// StartSweeper runs periodic TTL sweeps in the background.
// Returns a stop function.
func (s *SessionStore) StartSweeper(interval, ttl time.Duration) func() {
	ticker := time.NewTicker(interval)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				s.Sweep(ttl)
			case <-done:
				ticker.Stop()
				return
			}
		}
	}()
	return func() { close(done) }
}

// Close stops every session.
func (s *SessionStore) Close() {
	s.mu.Lock()
	all := s.sessions
	s.sessions = make(map[string]*hostedSession)
	s.mu.Unlock()

	for _, h := range all {
		h.worker.Stop()
	}
	sessionsActive.Set(0)
}
