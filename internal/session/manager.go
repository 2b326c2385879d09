// Package session maps visitor cookies to demo workspaces and tears idle
// workspaces down.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"infrascan/internal/demo"
	"infrascan/internal/metrics"
	"infrascan/internal/models"
	"infrascan/internal/storage"
)

// Factory builds the workspace for a new session ID.
type Factory func(id string) *demo.Workspace

// Options tune session expiry.
type Options struct {
	IdleTTL       time.Duration
	SweepInterval time.Duration
	// OnClose runs after a session's workspace has been closed.
	OnClose func(ctx context.Context, id string)
}

// NewOptions returns the default expiry settings.
func NewOptions() Options {
	return Options{
		IdleTTL:       30 * time.Minute,
		SweepInterval: time.Minute,
	}
}

// Manager owns every live workspace.
type Manager struct {
	db      *storage.DB
	factory Factory
	opts    Options
	metrics *metrics.Registry
	now     func() time.Time

	mu         sync.Mutex
	workspaces map[string]*demo.Workspace
}

// NewManager creates a manager backed by the db session index.
func NewManager(db *storage.DB, factory Factory, opts Options, reg *metrics.Registry) (*Manager, error) {
	if db == nil {
		return nil, errors.New("session index is required")
	}
	if factory == nil {
		return nil, errors.New("workspace factory is required")
	}
	if opts.IdleTTL <= 0 {
		return nil, fmt.Errorf("idle ttl must be positive, got %s", opts.IdleTTL)
	}
	if opts.SweepInterval <= 0 {
		return nil, fmt.Errorf("sweep interval must be positive, got %s", opts.SweepInterval)
	}
	return &Manager{
		db:         db,
		factory:    factory,
		opts:       opts,
		metrics:    reg,
		now:        time.Now,
		workspaces: make(map[string]*demo.Workspace),
	}, nil
}

// Acquire returns the workspace for id, touching its last-seen time. An empty
// or unknown id gets a fresh session; the returned id is the one to set in
// the cookie.
func (m *Manager) Acquire(ctx context.Context, id string) (string, *demo.Workspace, error) {
	now := m.now().UTC()

	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if ws, ok := m.workspaces[id]; ok {
			err := m.db.TouchSession(ctx, id, now)
			if err == nil {
				return id, ws, nil
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return "", nil, err
			}
			delete(m.workspaces, id)
			ws.Close(ctx)
		}
	}

	id = uuid.NewString()
	if err := m.db.SaveSession(ctx, models.Session{ID: id, CreatedAt: now, LastSeen: now}); err != nil {
		return "", nil, err
	}
	ws := m.factory(id)
	m.workspaces[id] = ws
	m.metrics.Inc(ctx, "sessions_created_total", nil, 1)
	log.Ctx(ctx).Debug().Str("session", id).Msg("session created")
	return id, ws, nil
}

// Lookup returns the live workspace for id without touching it.
func (m *Manager) Lookup(id string) (*demo.Workspace, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ws, ok := m.workspaces[id]
	return ws, ok
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep closes every session idle longer than the idle TTL.
func (m *Manager) Sweep(ctx context.Context) (int, error) {
	cutoff := m.now().UTC().Add(-m.opts.IdleTTL)
	ids, err := m.db.ExpiredSessions(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	n := 0
	for _, id := range ids {
		expired, err := m.expire(ctx, id, cutoff)
		if err != nil {
			return n, err
		}
		if expired {
			n++
		}
	}
	if n > 0 {
		m.metrics.Inc(ctx, "sessions_expired_total", nil, int64(n))
		log.Ctx(ctx).Info().Int("count", n).Msg("idle sessions expired")
	}
	return n, nil
}

// expire closes session id. A non-zero cutoff skips sessions seen since.
func (m *Manager) expire(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	m.mu.Lock()
	if !cutoff.IsZero() {
		s, err := m.db.GetSession(ctx, id)
		if err == nil && !s.LastSeen.Before(cutoff) {
			m.mu.Unlock()
			return false, nil
		}
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			m.mu.Unlock()
			return false, err
		}
	}
	ws, ok := m.workspaces[id]
	delete(m.workspaces, id)
	err := m.db.DeleteSession(ctx, id)
	m.mu.Unlock()

	if ok {
		ws.Close(ctx)
	}
	if err != nil {
		return false, err
	}
	if m.opts.OnClose != nil {
		m.opts.OnClose(ctx, id)
	}
	log.Ctx(ctx).Debug().Str("session", id).Msg("session closed")
	return true, nil
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	ticker := time.NewTicker(m.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := m.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Ctx(ctx).Error().Err(err).Msg("session sweep failed")
			}
		}
	}
}

// Close tears down every live session.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	ids := make([]string, 0, len(m.workspaces))
	for id := range m.workspaces {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if _, err := m.expire(ctx, id, time.Time{}); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
