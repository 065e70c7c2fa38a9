package server

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/randutil"
	"github.com/lox/redenvelope/internal/sessionid"
)

// sweepInterval is how often Run looks for sessions to evict.
const sweepInterval = time.Minute

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrTooManySessions = errors.New("too many sessions")
)

// Config holds the settings every new session is created with.
type Config struct {
	Rules        game.RuleSet
	SpinInterval time.Duration
	MaxSessions  int
	// IdleTimeout evicts sessions nobody is connected to and nobody has
	// touched for this long. Zero disables idle eviction.
	IdleTimeout time.Duration
}

// DefaultConfig returns the standard session settings.
func DefaultConfig() Config {
	return Config{
		Rules:        game.DefaultRules,
		SpinInterval: game.DefaultSpinInterval,
		MaxSessions:  1000,
		IdleTimeout:  30 * time.Minute,
	}
}

// Registry owns the live sessions.
type Registry struct {
	cfg    Config
	clock  quartz.Clock
	ids    *sessionid.Generator
	logger *log.Logger

	mu       sync.RWMutex
	rng      *rand.Rand // guarded by mu; seeds per-session generators
	sessions map[string]*entry
}

type entry struct {
	session  *game.Session
	conns    int
	lastSeen time.Time
}

// finished reports whether the draw can make no further progress.
func (e *entry) finished() bool {
	if _, ok := e.session.Result(); ok {
		return true
	}
	return e.session.Err() != nil
}

// NewRegistry creates an empty registry.
func NewRegistry(cfg Config, clock quartz.Clock, rng *rand.Rand, logger *log.Logger) *Registry {
	return &Registry{
		cfg:      cfg,
		clock:    clock,
		ids:      sessionid.NewGenerator(clock, nil),
		logger:   logger.WithPrefix("registry"),
		rng:      rng,
		sessions: make(map[string]*entry),
	}
}

// Create starts a new session for gc.
func (r *Registry) Create(gc game.Config) (*game.Session, error) {
	id, err := r.ids.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cfg.MaxSessions > 0 && len(r.sessions) >= r.cfg.MaxSessions {
		r.sweepLocked()
		if len(r.sessions) >= r.cfg.MaxSessions {
			return nil, ErrTooManySessions
		}
	}

	s, err := game.NewSession(gc,
		game.WithID(id),
		game.WithClock(r.clock),
		game.WithRNG(randutil.New(r.rng.Int64())),
		game.WithSpinInterval(r.cfg.SpinInterval),
		game.WithRules(r.cfg.Rules),
		game.WithLogger(r.logger),
	)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = &entry{session: s, lastSeen: r.clock.Now("registry", "create")}

	r.logger.Info("Session created", "id", id, "digits", gc.DigitCount, "maxPrice", gc.MaxPrice, "total", len(r.sessions))
	return s, nil
}

// Get returns the session with id and marks it as recently used.
func (r *Registry) Get(id string) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.lastSeen = r.clock.Now("registry", "touch")
	return e.session, nil
}

// Attach returns the session with id and counts a new connection to it.
// Every successful Attach must be paired with a Detach.
func (r *Registry) Attach(id string) (*game.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.conns++
	e.lastSeen = r.clock.Now("registry", "touch")
	return e.session, nil
}

// Detach drops a connection from id. A finished session is evicted once its
// last connection goes.
func (r *Registry) Detach(id string) {
	r.mu.Lock()
	e, ok := r.sessions[id]
	if !ok {
		r.mu.Unlock()
		return
	}
	if e.conns > 0 {
		e.conns--
	}
	e.lastSeen = r.clock.Now("registry", "touch")
	evict := e.conns == 0 && e.finished()
	if evict {
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	if evict {
		e.session.Close()
		r.logger.Info("Session evicted", "id", id, "reason", "finished")
	}
}

// Remove closes and forgets the session with id.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	e, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	e.session.Close()
	r.logger.Info("Session removed", "id", id)
	return nil
}

// Sweep evicts every session without connections that is finished or has
// been idle for IdleTimeout. It returns the number evicted.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sweepLocked()
}

// Run sweeps the registry every sweepInterval until ctx is done.
func (r *Registry) Run(ctx context.Context) error {
	ticker := r.clock.NewTicker(sweepInterval, "registry", "sweep")
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				r.logger.Debug("Swept sessions", "evicted", n, "remaining", r.Len())
			}
		}
	}
}

func (r *Registry) sweepLocked() int {
	now := r.clock.Now("registry", "sweep")
	evicted := 0
	for id, e := range r.sessions {
		if e.conns > 0 {
			continue
		}
		reason := ""
		switch {
		case e.finished():
			reason = "finished"
		case r.cfg.IdleTimeout > 0 && now.Sub(e.lastSeen) >= r.cfg.IdleTimeout:
			reason = "idle"
		default:
			continue
		}
		delete(r.sessions, id)
		e.session.Close()
		evicted++
		r.logger.Info("Session evicted", "id", id, "reason", reason)
	}
	return evicted
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// CloseAll closes every session.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*entry)
	r.mu.Unlock()

	for _, e := range sessions {
		e.session.Close()
	}
}
