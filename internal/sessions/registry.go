package sessions

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/angelmondragon/productfeed/internal/catalog"
	pkgerrors "github.com/angelmondragon/productfeed/pkg/errors"
	"github.com/angelmondragon/productfeed/pkg/logger"
	"github.com/angelmondragon/productfeed/pkg/metrics"
	"github.com/google/uuid"
)

const (
	defaultIdleTTL       = 30 * time.Minute
	defaultSweepInterval = time.Minute
)

// ControllerFactory builds a fresh controller for a new session.
type ControllerFactory func() (*catalog.Controller, error)

// Params configure the session registry.
type Params struct {
	Logger        *logger.Logger
	Metrics       *metrics.CatalogMetrics
	Factory       ControllerFactory
	IdleTTL       time.Duration
	MaxSessions   int
	SweepInterval time.Duration
}

// Session is one browsing session and its controller.
type Session struct {
	ID         string
	Controller *catalog.Controller
	CreatedAt  time.Time

	lastSeen time.Time
}

// Registry holds live sessions in memory and evicts idle ones.
type Registry struct {
	logg     *logger.Logger
	metrics  *metrics.CatalogMetrics
	factory  ControllerFactory
	idleTTL  time.Duration
	max      int
	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry validates params and returns an empty registry.
func NewRegistry(params Params) (*Registry, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Factory == nil {
		return nil, errors.New("controller factory required")
	}
	if params.MaxSessions < 0 {
		return nil, errors.New("max sessions must not be negative")
	}
	idle := params.IdleTTL
	if idle <= 0 {
		idle = defaultIdleTTL
	}
	interval := params.SweepInterval
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	return &Registry{
		logg:     params.Logger,
		metrics:  params.Metrics,
		factory:  params.Factory,
		idleTTL:  idle,
		max:      params.MaxSessions,
		interval: interval,
		now:      time.Now,
		sessions: map[string]*Session{},
	}, nil
}

// Create registers a new session. MaxSessions of 0 means unlimited.
func (r *Registry) Create(ctx context.Context) (*Session, error) {
	ctrl, err := r.factory()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build catalog controller")
	}

	r.mu.Lock()
	if r.max > 0 && len(r.sessions) >= r.max {
		r.mu.Unlock()
		ctrl.Close()
		return nil, pkgerrors.New(pkgerrors.CodeRateLimit, "too many active sessions")
	}
	now := r.now()
	session := &Session{
		ID:         uuid.NewString(),
		Controller: ctrl,
		CreatedAt:  now,
		lastSeen:   now,
	}
	r.sessions[session.ID] = session
	count := len(r.sessions)
	r.mu.Unlock()

	r.metrics.SetActiveSessions(count)
	r.logg.Info(r.logg.WithSessionID(ctx, session.ID), "session.created")
	return session, nil
}

// Get returns a live session and marks it as used.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	session.lastSeen = r.now()
	return session, nil
}

// Delete ends a session and stops its controller.
func (r *Registry) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	session, ok := r.sessions[id]
	if ok {
		delete(r.sessions, id)
	}
	count := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	session.Controller.Close()
	r.metrics.SetActiveSessions(count)
	r.logg.Info(r.logg.WithSessionID(ctx, id), "session.deleted")
	return nil
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL.
func (r *Registry) Sweep(ctx context.Context) int {
	cutoff := r.now().Add(-r.idleTTL)

	r.mu.Lock()
	var expired []*Session
	for id, session := range r.sessions {
		if session.lastSeen.Before(cutoff) {
			expired = append(expired, session)
			delete(r.sessions, id)
		}
	}
	count := len(r.sessions)
	r.mu.Unlock()

	for _, session := range expired {
		session.Controller.Close()
	}
	if len(expired) > 0 {
		r.metrics.SetActiveSessions(count)
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"evicted": len(expired),
			"active":  count,
		}), "session.sweep")
	}
	return len(expired)
}

// Run sweeps on a fixed cadence until the context is canceled.
func (r *Registry) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logg.Info(ctx, "session janitor stopped")
			return ctx.Err()
		case <-ticker.C:
			r.Sweep(ctx)
		}
	}
}

// CloseAll stops every controller and empties the registry.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = map[string]*Session{}
	r.mu.Unlock()

	for _, session := range sessions {
		session.Controller.Close()
	}
	r.metrics.SetActiveSessions(0)
}
