package simulator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"golang.org/x/sync/errgroup"

	"github.com/lox/redenvelope/internal/game"
	"github.com/lox/redenvelope/internal/randutil"
	"github.com/lox/redenvelope/internal/statistics"
)

// Strategy decides the order a simulated player works through the cards.
type Strategy string

const (
	// InOrder draws and flips from the leading digit down to the units.
	InOrder Strategy = "in-order"
	// Shuffled draws and flips the cards one at a time in random order.
	Shuffled Strategy = "shuffled"
	// DrawAllFirst draws every card before flipping any, in random order, so
	// flips can be rejected and redrawn.
	DrawAllFirst Strategy = "draw-all-first"
)

// maxRedraws bounds the redraw loop of a single card.
const maxRedraws = 100

var ErrUnknownStrategy = errors.New("unknown strategy")

// Config holds configuration for running simulations
type Config struct {
	Games    int
	Game     game.Config
	Rules    game.RuleSet
	Strategy Strategy
	Workers  int
	Seed     int64
	Timeout  time.Duration
	Logger   *log.Logger
}

// Simulator plays many independent draws and aggregates the results
type Simulator struct {
	config Config
}

// New creates a new simulator with the given configuration
func New(config Config) *Simulator {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Strategy == "" {
		config.Strategy = InOrder
	}
	if config.Logger == nil {
		config.Logger = log.New(io.Discard)
	}
	return &Simulator{config: config}
}

// Run plays every game and returns the aggregated statistics. Game i always
// uses seed Seed+i, so results do not depend on the worker count.
func (s *Simulator) Run(ctx context.Context) (*statistics.Statistics, error) {
	switch s.config.Strategy {
	case InOrder, Shuffled, DrawAllFirst:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, s.config.Strategy)
	}
	if err := s.config.Game.Validate(); err != nil {
		return nil, err
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	var (
		mu    sync.Mutex
		stats = &statistics.Statistics{}
	)

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < s.config.Workers; w++ {
		g.Go(func() error {
			local := &statistics.Statistics{}
			for i := w; i < s.config.Games; i += s.config.Workers {
				if err := ctx.Err(); err != nil {
					return fmt.Errorf("simulation stopped after %d games: %w", local.Games, err)
				}
				result, err := s.playGame(s.config.Seed + int64(i))
				if err != nil {
					return fmt.Errorf("game %d (seed %d): %w", i+1, s.config.Seed+int64(i), err)
				}
				local.Add(result)
			}

			mu.Lock()
			stats.Merge(local)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if err := stats.Validate(); err != nil {
		return nil, fmt.Errorf("statistics validation failed: %w", err)
	}
	return stats, nil
}

// playGame runs one draw to completion.
func (s *Simulator) playGame(seed int64) (statistics.GameResult, error) {
	rng := randutil.New(seed)
	session, err := game.NewSession(s.config.Game,
		game.WithID(fmt.Sprintf("sim-%d", seed)),
		game.WithClock(quartz.NewReal()),
		game.WithRNG(rng),
		game.WithSpinInterval(0),
		game.WithRules(s.config.Rules),
		game.WithLogger(s.config.Logger),
	)
	if err != nil {
		return statistics.GameResult{}, err
	}
	defer session.Close()

	result := statistics.GameResult{Seed: seed}
	order := s.order(rng)

	var playErr error
	switch s.config.Strategy {
	case DrawAllFirst:
		for _, p := range order {
			if playErr = draw(session, p); playErr != nil {
				break
			}
		}
		if playErr == nil {
			rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
			for _, p := range order {
				if playErr = flip(session, p, &result.Redraws); playErr != nil {
					break
				}
			}
		}
	default:
		for _, p := range order {
			if playErr = draw(session, p); playErr != nil {
				break
			}
			if playErr = flip(session, p, &result.Redraws); playErr != nil {
				break
			}
		}
	}

	switch {
	case errors.Is(playErr, game.ErrRangeExhausted):
		result.Exhausted = true
		return result, nil
	case errors.Is(playErr, game.ErrInvariantViolation):
		result.Violation = true
		s.config.Logger.Error("Invariant violated", "seed", seed, "error", playErr)
		return result, nil
	case playErr != nil:
		return result, playErr
	}

	res, ok := session.Result()
	if !ok {
		return result, fmt.Errorf("session %s finished without a result", session.ID())
	}
	result.Total = res.Total
	result.Digits = res.Digits
	result.Outcome = res.Outcome
	return result, nil
}

func (s *Simulator) order(rng *rand.Rand) []int {
	n := s.config.Game.DigitCount
	order := make([]int, n)
	for i := range order {
		order[i] = n - 1 - i
	}
	if s.config.Strategy != InOrder {
		rng.Shuffle(n, func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return order
}

func draw(session *game.Session, p int) error {
	if err := session.StartDraw(p); err != nil {
		return err
	}
	return session.StopDraw(p)
}

// flip locks p, drawing again whenever the held digit has stopped fitting.
func flip(session *game.Session, p int, redraws *int) error {
	for i := 0; ; i++ {
		err := session.Flip(p)
		if !errors.Is(err, game.ErrInfeasible) {
			return err
		}
		if i == maxRedraws {
			return fmt.Errorf("position %d still infeasible after %d redraws: %w", p, maxRedraws, err)
		}
		*redraws++
		if err := draw(session, p); err != nil {
			return err
		}
	}
}

// PrintSummary writes a summary of simulation results to w
func PrintSummary(w io.Writer, stats *statistics.Statistics, cfg Config) {
	limit := "unlimited"
	if cfg.Game.Limited() {
		limit = fmt.Sprintf("%d", cfg.Game.MaxPrice)
	}

	fmt.Fprintf(w, "\n=== SIMULATION: %d digits, max %s, %s ===\n", cfg.Game.DigitCount, limit, cfg.Strategy)
	fmt.Fprintf(w, "Games played: %d\n", stats.Games)
	fmt.Fprintf(w, "Completed: %d  Exhausted: %d  Invariant violations: %d\n",
		stats.Completed, stats.Exhausted, stats.Violations)
	fmt.Fprintf(w, "Redraws after rejected flips: %d\n", stats.Redraws)

	if stats.Completed == 0 {
		return
	}

	low, high := stats.ConfidenceInterval95()
	fmt.Fprintf(w, "\n=== TOTALS ===\n")
	fmt.Fprintf(w, "Min: %d  Max: %d\n", stats.MinTotal, stats.MaxTotal)
	fmt.Fprintf(w, "Mean: %.2f  Median: %.1f  Std Dev: %.2f\n", stats.Mean(), stats.Median(), stats.StdDev())
	fmt.Fprintf(w, "95%% CI: [%.2f, %.2f]\n", low, high)
	fmt.Fprintf(w, "Percentiles: P5=%.1f, P25=%.1f, P75=%.1f, P95=%.1f\n",
		stats.Percentile(0.05), stats.Percentile(0.25), stats.Percentile(0.75), stats.Percentile(0.95))

	fmt.Fprintf(w, "\n=== OUTCOMES ===\n")
	for _, o := range []game.Outcome{game.Neutral, game.Delight, game.Tease} {
		if n := stats.Outcomes[o]; n > 0 {
			fmt.Fprintf(w, "%s: %d (%.1f%%)\n", o, n, stats.OutcomeShare(o)*100)
		}
	}

	fmt.Fprintf(w, "\n=== DIGITS BY POSITION ===\n")
	for p := len(stats.DigitCounts) - 1; p >= 0; p-- {
		fmt.Fprintf(w, "%-18s", game.PositionName(p))
		for d := 0; d <= 9; d++ {
			fmt.Fprintf(w, " %d:%5.1f%%", d, stats.DigitShare(p, d)*100)
		}
		fmt.Fprintln(w)
	}
}
