package main

import (
	"time"

	"github.com/coder/quartz"

	"github.com/lox/redenvelope/cmd/redenvelope/shared"
	"github.com/lox/redenvelope/internal/randutil"
	"github.com/lox/redenvelope/internal/server"
)

// ServeCmd runs the HTTP and WebSocket server
type ServeCmd struct {
	Addr        string        `short:"a" help:"Server address to bind to (overrides config)"`
	MaxSessions int           `default:"1000" help:"Maximum live sessions"`
	IdleTimeout time.Duration `default:"30m" help:"Evict unconnected sessions idle this long (0 disables)"`
}

func (c *ServeCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger, err := g.logger(cfg)
	if err != nil {
		return err
	}

	rules, err := cfg.RuleSet()
	if err != nil {
		return err
	}
	interval, err := cfg.SpinInterval()
	if err != nil {
		return err
	}

	rng, seed := randutil.Seeded(g.Seed)
	logger.Info("Using seed", "seed", seed)

	addr := cfg.Address()
	if c.Addr != "" {
		addr = c.Addr
	}

	s := server.NewServer(server.Config{
		Rules:        rules,
		SpinInterval: interval,
		MaxSessions:  c.MaxSessions,
		IdleTimeout:  c.IdleTimeout,
	}, quartz.NewReal(), rng, logger)

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	logger.Info("Starting red envelope server",
		"address", addr,
		"rules", len(rules),
		"spinInterval", interval,
		"maxSessions", c.MaxSessions,
		"idleTimeout", c.IdleTimeout,
	)
	return s.Run(ctx, addr)
}
