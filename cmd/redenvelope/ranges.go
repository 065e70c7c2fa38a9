package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/lox/redenvelope/internal/game"
)

// RangesCmd prints the opening range of every position
type RangesCmd struct {
	GameFlags
}

func (c *RangesCmd) Run(g *Globals) error {
	cfg, err := g.load()
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
	if err := rules.Validate(); err != nil {
		return err
	}

	engine := game.NewEngine(gc, rules)

	limit := "unlimited"
	if gc.Limited() {
		limit = fmt.Sprint(gc.MaxPrice)
	}
	fmt.Printf("%d digits, max %s\n\n", gc.DigitCount, limit)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POSITION\tBASE\tALLOWED")
	for p := gc.Leading(); p >= 0; p-- {
		allowed := engine.AllowedRange(p, nil)
		note := ""
		if allowed.IsEmpty() {
			note = "  (no legal digit)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s%s\n", game.PositionName(p), engine.BaseRange(p), allowed, note)
	}
	return w.Flush()
}
