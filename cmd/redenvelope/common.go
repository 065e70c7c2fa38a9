package main

import (
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/lox/redenvelope/cmd/redenvelope/shared"
	"github.com/lox/redenvelope/internal/config"
	"github.com/lox/redenvelope/internal/game"
)

// GameFlags override the game block of the config file
type GameFlags struct {
	Digits   int     `short:"d" help:"Number of digits (overrides config)"`
	MaxPrice *string `name:"max" short:"m" help:"Maximum price, blank for unlimited (overrides config)"`
}

// gameConfig merges the flags over the file settings.
func (f GameFlags) gameConfig(cfg *config.Config) (game.Config, error) {
	gc, err := cfg.GameConfig()
	if err != nil {
		return game.Config{}, err
	}
	digits, maxPrice := gc.DigitCount, gc.MaxPrice
	if f.Digits != 0 {
		digits = f.Digits
	}
	if f.MaxPrice != nil {
		if maxPrice, err = game.ParseMaxPrice(*f.MaxPrice); err != nil {
			return game.Config{}, err
		}
	}
	return game.NewConfig(digits, maxPrice)
}

// load reads and validates the config file, applying global overrides.
func (g *Globals) load() (*config.Config, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Server.LogLevel = g.LogLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", g.Config, err)
	}
	return cfg, nil
}

func (g *Globals) logger(cfg *config.Config) (*log.Logger, error) {
	return shared.SetupLogger(cfg.Server.LogLevel, g.Debug)
}

func (g *Globals) loggerTo(w io.Writer, cfg *config.Config) (*log.Logger, error) {
	return shared.NewLogger(w, cfg.Server.LogLevel, g.Debug)
}
