package simulator

import (
	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/statistics"
)

// Report is the machine-readable form of a simulation run.
type Report struct {
	Digits     int            `json:"digits"`
	MaxPrice   int            `json:"maxPrice,omitempty"`
	Strategy   Strategy       `json:"strategy"`
	Seed       int64          `json:"seed"`
	Games      int            `json:"games"`
	Completed  int            `json:"completed"`
	Exhausted  int            `json:"exhausted"`
	Violations int            `json:"violations"`
	Redraws    int            `json:"redraws"`
	Totals     *TotalsReport  `json:"totals,omitempty"`
	Outcomes   map[string]int `json:"outcomes"`
	// Digits per position, most significant first; each row counts 0-9.
	DigitCounts []PositionReport `json:"digitCounts"`
}

type TotalsReport struct {
	Min    int     `json:"min"`
	Max    int     `json:"max"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"stdDev"`
	P5     float64 `json:"p5"`
	P95    float64 `json:"p95"`
}

type PositionReport struct {
	Position int     `json:"position"`
	Label    string  `json:"label"`
	Counts   [10]int `json:"counts"`
}

// NewReport summarizes stats for cfg.
func NewReport(stats *statistics.Statistics, cfg Config) Report {
	r := Report{
		Digits:     cfg.Game.DigitCount,
		MaxPrice:   cfg.Game.MaxPrice,
		Strategy:   cfg.Strategy,
		Seed:       cfg.Seed,
		Games:      stats.Games,
		Completed:  stats.Completed,
		Exhausted:  stats.Exhausted,
		Violations: stats.Violations,
		Redraws:    stats.Redraws,
		Outcomes:   make(map[string]int),
	}
	if r.Strategy == "" {
		r.Strategy = InOrder
	}

	if stats.Completed > 0 {
		r.Totals = &TotalsReport{
			Min:    stats.MinTotal,
			Max:    stats.MaxTotal,
			Mean:   stats.Mean(),
			Median: stats.Median(),
			StdDev: stats.StdDev(),
			P5:     stats.Percentile(0.05),
			P95:    stats.Percentile(0.95),
		}
	}

	for _, o := range []game.Outcome{game.Neutral, game.Delight, game.Tease} {
		if n := stats.Outcomes[o]; n > 0 {
			r.Outcomes[o.String()] = n
		}
	}

	for p := len(stats.DigitCounts) - 1; p >= 0; p-- {
		r.DigitCounts = append(r.DigitCounts, PositionReport{
			Position: p,
			Label:    game.PositionName(p),
			Counts:   stats.DigitCounts[p],
		})
	}
	return r
}
