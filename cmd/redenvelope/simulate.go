package main

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/lox/redenvelope/cmd/redenvelope/shared"
	"github.com/lox/redenvelope/internal/fileutil"
	"github.com/lox/redenvelope/internal/randutil"
	"github.com/lox/redenvelope/internal/simulator"
)

// SimulateCmd plays many draws and reports statistics
type SimulateCmd struct {
	GameFlags
	Games    int           `short:"n" default:"10000" help:"Number of games to play"`
	Workers  int           `short:"w" help:"Worker goroutines (default: number of CPUs)"`
	Strategy string        `short:"s" default:"in-order" enum:"in-order,shuffled,draw-all-first" help:"Card order: in-order, shuffled, draw-all-first"`
	Timeout  time.Duration `default:"5m" help:"Give up after this long"`
	Output   string        `short:"o" help:"Also write a JSON report to this file"`
}

func (c *SimulateCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger, err := g.logger(cfg)
	if err != nil {
		return err
	}

	gc, err := c.gameConfig(cfg)
	if err != nil {
		return err
	}
	rules, err := cfg.RuleSet()
	if err != nil {
		return err
	}

	workers := c.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	_, seed := randutil.Seeded(g.Seed)

	simCfg := simulator.Config{
		Games:    c.Games,
		Game:     gc,
		Rules:    rules,
		Strategy: simulator.Strategy(c.Strategy),
		Workers:  workers,
		Seed:     seed,
		Timeout:  c.Timeout,
		Logger:   logger,
	}

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	logger.Info("Starting simulation", "games", c.Games, "workers", workers, "strategy", c.Strategy, "seed", seed)
	start := time.Now()
	stats, err := simulator.New(simCfg).Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("Simulation complete", "duration", time.Since(start).Round(time.Millisecond))

	simulator.PrintSummary(os.Stdout, stats, simCfg)

	if c.Output != "" {
		if err := fileutil.WriteJSON(c.Output, simulator.NewReport(stats, simCfg)); err != nil {
			return err
		}
		logger.Info("Wrote report", "file", c.Output)
	}

	if stats.Violations > 0 {
		return fmt.Errorf("%d games broke the maximum price (seed %d)", stats.Violations, seed)
	}
	return nil
}
