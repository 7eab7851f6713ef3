package handlers

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/jwebster45206/story-runtime/pkg/engine"
)

// ErrSessionClosed is returned by Session.Do once the session has been closed
var ErrSessionClosed = errors.New("session closed")

// EngineFactory builds the engine for a play session
type EngineFactory func(sessionID uuid.UUID) *engine.Engine

// Session is one live play session. An engine is not safe for concurrent
// use, so every request runs its engine calls through Do.
type Session struct {
	mu       sync.Mutex
	id       uuid.UUID
	engine   *engine.Engine
	lastUsed time.Time
	closed   bool
	done     chan struct{} // closed once the engine has stopped
}

func newSession(id uuid.UUID, eng *engine.Engine) *Session {
	return &Session{id: id, engine: eng, lastUsed: time.Now(), done: make(chan struct{})}
}

// ID returns the session ID
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Do runs fn with exclusive access to the session's engine and returns its
// error. A closed session never runs fn and returns ErrSessionClosed.
func (s *Session) Do(fn func(e *engine.Engine) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSessionClosed
	}
	s.lastUsed = time.Now()
	return fn(s.engine)
}

// close waits for a running Do, then stops the engine for good
func (s *Session) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	s.engine.Close()
	close(s.done)
}

func (s *Session) idleSince() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}

// Registry keeps the live sessions of one server. At most one engine runs
// per session ID: opens of the same ID share one start, and reopening a
// session that is still closing waits for its engine to stop.
type Registry struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*Session
	closing  map[uuid.UUID]*Session
	opening  singleflight.Group
	factory  EngineFactory
	logger   *slog.Logger
}

// NewRegistry creates an empty session registry
func NewRegistry(factory EngineFactory, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		sessions: make(map[uuid.UUID]*Session),
		closing:  make(map[uuid.UUID]*Session),
		factory:  factory,
		logger:   logger,
	}
}

type openResult struct {
	session  *Session
	restored bool
}

// Open returns the live session for id, starting it when it is not live.
// Starting restores the progress saved for id, if any, and restored reports
// whether it did. uuid.Nil opens a brand new session.
//
// The engine starts outside the registry lock, so a slow storage load does
// not hold up requests for other sessions.
func (r *Registry) Open(id uuid.UUID) (s *Session, restored bool) {
	if id == uuid.Nil {
		id = uuid.New()
	} else if s, ok := r.Get(id); ok {
		return s, false
	}

	v, _, _ := r.opening.Do(id.String(), func() (interface{}, error) {
		r.mu.Lock()
		if s, ok := r.sessions[id]; ok {
			r.mu.Unlock()
			return openResult{session: s}, nil
		}
		prev := r.closing[id]
		r.mu.Unlock()

		if prev != nil {
			<-prev.done
		}

		eng := r.factory(id)
		restored := eng.Start()
		s := newSession(id, eng)

		r.mu.Lock()
		r.sessions[id] = s
		r.mu.Unlock()

		r.logger.Info("Session opened", "session_id", id.String(), "restored", restored, "node_id", eng.NodeID())
		return openResult{session: s, restored: restored}, nil
	})
	res := v.(openResult)
	return res.session, res.restored
}

// Get returns a live session
func (r *Registry) Get(id uuid.UUID) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	return s, ok
}

// Close stops a session's engine and forgets it. Requests still holding the
// session get ErrSessionClosed from Do. Its saved progress stays in storage,
// so the session can be opened again later.
func (r *Registry) Close(id uuid.UUID) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
		r.closing[id] = s
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	s.close()

	r.mu.Lock()
	if r.closing[id] == s {
		delete(r.closing, id)
	}
	r.mu.Unlock()

	r.logger.Info("Session closed", "session_id", id.String())
	return true
}

// CloseAll closes every live session
func (r *Registry) CloseAll() {
	r.mu.Lock()
	ids := make([]uuid.UUID, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	for _, id := range ids {
		r.Close(id)
	}
}

// Sweep closes sessions idle for longer than maxIdle and returns how many it
// closed
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	candidates := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		candidates = append(candidates, s)
	}
	r.mu.Unlock()

	closed := 0
	for _, s := range candidates {
		if s.idleSince().Before(cutoff) && r.Close(s.id) {
			closed++
		}
	}
	if closed > 0 {
		r.logger.Debug("Idle sessions closed", "count", closed)
	}
	return closed
}

// Len returns the number of live sessions
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}
