package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/breedid/internal/logging"
)

// Registry tracks open capture sessions by ID. Sessions that sit idle
// longer than the TTL are cancelled by Sweep, which is how a server notices
// a user who navigated away without saying so.
type Registry struct {
	opts   Options
	logger *slog.Logger

	sessions   map[string]*Session
	sessionsMu sync.RWMutex
}

func NewRegistry(opts Options) *Registry {
	return &Registry{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "capture-registry"),
		sessions: make(map[string]*Session),
	}
}

func (r *Registry) Create(mode Mode) *Session {
	session := NewSession(uuid.New().String(), mode, r.opts)

	r.sessionsMu.Lock()
	r.sessions[session.ID] = session
	n := len(r.sessions)
	r.sessionsMu.Unlock()

	r.opts.Metrics.SetSessions(n)
	r.logger.Info("capture session created",
		slog.String(logging.FieldSession, session.ID),
		slog.String("mode", string(mode)),
	)
	return session
}

func (r *Registry) Get(id string) (*Session, bool) {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()

	session, exists := r.sessions[id]
	return session, exists
}

// Remove cancels the session and forgets it.
func (r *Registry) Remove(id string) error {
	r.sessionsMu.Lock()
	session, exists := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.sessionsMu.Unlock()

	if !exists {
		return fmt.Errorf("session not found")
	}
	session.Cancel()
	r.opts.Metrics.SetSessions(n)
	return nil
}

func (r *Registry) Len() int {
	r.sessionsMu.RLock()
	defer r.sessionsMu.RUnlock()
	return len(r.sessions)
}

// Sweep cancels and removes sessions not touched within ttl. Sessions with a
// submission in flight are left alone. It returns the number of sessions
// that were still open when they expired.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := time.Now().Add(-ttl)

	var expired []*Session
	r.sessionsMu.Lock()
	for id, session := range r.sessions {
		snap := session.Snapshot()
		if snap.Processing || snap.UpdatedAt.After(cutoff) {
			continue
		}
		finished := snap.State == StateClosed || snap.State == StateHandedOff
		delete(r.sessions, id)
		if !finished {
			expired = append(expired, session)
		}
	}
	n := len(r.sessions)
	r.sessionsMu.Unlock()

	for _, session := range expired {
		session.Cancel()
		r.logger.Info("capture session expired",
			slog.String(logging.FieldSession, session.ID),
			slog.String(logging.FieldEventType, "capture_session_expired"),
		)
	}
	r.opts.Metrics.SetSessions(n)
	r.opts.Metrics.SessionsExpired(len(expired))
	return len(expired)
}

// RunSweeper calls Sweep every interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, ttl, interval time.Duration) {
	if interval <= 0 {
		interval = ttl / 2
	}
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(ttl)
		}
	}
}

// Close cancels every session.
func (r *Registry) Close() {
	r.sessionsMu.Lock()
	sessions := make([]*Session, 0, len(r.sessions))
	for id, session := range r.sessions {
		sessions = append(sessions, session)
		delete(r.sessions, id)
	}
	r.sessionsMu.Unlock()

	for _, session := range sessions {
		session.Cancel()
	}
	r.opts.Metrics.SetSessions(0)
}
