package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/coder/quartz"

	"github.com/lox/redenvelope/cmd/redenvelope/shared"
	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/randutil"
	"github.com/lox/redenvelope/internal/sessionid"
	"github.com/lox/redenvelope/internal/tui"
)

// PlayCmd plays one draw in the terminal
type PlayCmd struct {
	GameFlags
	LogFile string `help:"Write logs to this file while the UI owns the terminal"`
	NoColor bool   `help:"Disable colored output"`
}

func (c *PlayCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}

	logOut := io.Discard
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
	}
	logger, err := g.loggerTo(logOut, cfg)
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
	interval, err := cfg.SpinInterval()
	if err != nil {
		return err
	}

	clock := quartz.NewReal()
	rng, seed := randutil.Seeded(g.Seed)
	logger.Info("Starting draw", "digits", gc.DigitCount, "maxPrice", gc.MaxPrice, "seed", seed)

	session, err := game.NewSession(gc,
		game.WithID(sessionid.New()),
		game.WithClock(clock),
		game.WithRNG(rng),
		game.WithSpinInterval(interval),
		game.WithRules(rules),
		game.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer session.Close()

	tui.ConfigureColor(c.NoColor)

	ctx, cancel := shared.SetupSignalHandler(logger)
	defer cancel()

	if err := tui.Run(ctx, session, logger, tea.WithAltScreen()); err != nil {
		return err
	}

	if res, ok := session.Result(); ok {
		fmt.Println(res.ClaimMessage())
		if mood := res.Outcome.Mood(); mood != "" {
			fmt.Println(mood)
		}
	}
	return nil
}
