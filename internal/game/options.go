package game

import (
	"io"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
)

// SessionOption configures a Session during creation.
type SessionOption func(*sessionConfig)

type sessionConfig struct {
	id           string
	clock        quartz.Clock
	rng          *rand.Rand
	spinInterval time.Duration
	rules        RuleSet
	logger       *log.Logger
	observers    []Observer
}

func defaultSessionConfig() *sessionConfig {
	return &sessionConfig{
		clock:        quartz.NewReal(),
		spinInterval: DefaultSpinInterval,
		rules:        DefaultRules,
		logger:       log.NewWithOptions(io.Discard, log.Options{}),
	}
}

// WithID sets the session identifier carried by events.
func WithID(id string) SessionOption {
	return func(c *sessionConfig) { c.id = id }
}

// WithClock sets the clock that drives spin ticks.
func WithClock(clock quartz.Clock) SessionOption {
	return func(c *sessionConfig) { c.clock = clock }
}

// WithRNG sets the random source used to sample digits. Without it the
// session seeds its own from the clock.
func WithRNG(rng *rand.Rand) SessionOption {
	return func(c *sessionConfig) { c.rng = rng }
}

// WithSpinInterval sets the re-sample period. Zero disables the repeating
// re-sample; a card then keeps its first sample until stopped.
func WithSpinInterval(d time.Duration) SessionOption {
	return func(c *sessionConfig) { c.spinInterval = d }
}

// WithRules replaces the correlation table. Pass nil for no rules.
func WithRules(rules RuleSet) SessionOption {
	return func(c *sessionConfig) { c.rules = rules }
}

// WithLogger sets the session logger.
func WithLogger(logger *log.Logger) SessionOption {
	return func(c *sessionConfig) { c.logger = logger }
}

// WithObserver subscribes an observer before the session starts.
func WithObserver(o Observer) SessionOption {
	return func(c *sessionConfig) { c.observers = append(c.observers, o) }
}
