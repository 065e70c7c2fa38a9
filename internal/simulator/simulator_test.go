package simulator

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/redenvelope/internal/game"
)

func testConfig(t *testing.T, digits, maxPrice, games int) Config {
	t.Helper()
	gc, err := game.NewConfig(digits, maxPrice)
	require.NoError(t, err)
	return Config{
		Games:   games,
		Game:    gc,
		Workers: 4,
		Seed:    12345,
		Timeout: 30 * time.Second,
		Logger:  log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel}),
	}
}

func TestNew(t *testing.T) {
	sim := New(Config{Games: 10})
	require.NotNil(t, sim)
	assert.Equal(t, 1, sim.config.Workers)
	assert.Equal(t, InOrder, sim.config.Strategy)
	assert.NotNil(t, sim.config.Logger)
	assert.Nil(t, sim.config.Rules)
}

func TestNew_KeepsRulesAsGiven(t *testing.T) {
	sim := New(Config{Rules: game.RuleSet{}})
	assert.NotNil(t, sim.config.Rules)
	assert.Empty(t, sim.config.Rules)

	sim = New(Config{Rules: game.DefaultRules})
	assert.Equal(t, game.DefaultRules, sim.config.Rules)
}

func TestRun_InOrder(t *testing.T) {
	cfg := testConfig(t, 4, 5000, 300)

	stats, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 300, stats.Games)
	assert.Equal(t, 300, stats.Completed)
	assert.Zero(t, stats.Violations)
	assert.Zero(t, stats.Exhausted)
	assert.Zero(t, stats.Redraws, "flipping straight after drawing never goes stale")
	assert.LessOrEqual(t, stats.MaxTotal, 5000)
	assert.GreaterOrEqual(t, stats.MinTotal, 1000)
	assert.Equal(t, 300, stats.Outcomes[game.Delight]+stats.Outcomes[game.Tease])

	// Leading digit of a four digit price under 5000 is 1 to 4
	assert.Zero(t, stats.DigitShare(3, 0))
	for d := 5; d <= 9; d++ {
		assert.Zero(t, stats.DigitShare(3, d), "leading digit %d", d)
	}
}

func TestRun_DeterministicAcrossWorkers(t *testing.T) {
	cfg := testConfig(t, 3, 500, 200)
	cfg.Strategy = Shuffled

	cfg.Workers = 1
	serial, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	cfg.Workers = 8
	parallel, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, serial.Completed, parallel.Completed)
	assert.Equal(t, serial.SumTotal, parallel.SumTotal)
	assert.Equal(t, serial.MinTotal, parallel.MinTotal)
	assert.Equal(t, serial.MaxTotal, parallel.MaxTotal)
	assert.Equal(t, serial.Outcomes, parallel.Outcomes)
	assert.Equal(t, serial.DigitCounts, parallel.DigitCounts)
	assert.Equal(t, serial.Median(), parallel.Median())
}

func TestRun_DrawAllFirstRedraws(t *testing.T) {
	// Tens 4 with units above 5 overshoots 145 once both are flipped
	cfg := testConfig(t, 3, 145, 500)
	cfg.Strategy = DrawAllFirst

	stats, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 500, stats.Completed)
	assert.Zero(t, stats.Violations)
	assert.Positive(t, stats.Redraws)
	assert.LessOrEqual(t, stats.MaxTotal, 145)
}

func TestRun_Exhausted(t *testing.T) {
	// No three digit price with a non-zero units digit fits under 100
	cfg := testConfig(t, 3, 100, 20)

	stats, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 20, stats.Exhausted)
	assert.Zero(t, stats.Completed)
}

func TestRun_Errors(t *testing.T) {
	t.Run("unknown strategy", func(t *testing.T) {
		cfg := testConfig(t, 3, 0, 1)
		cfg.Strategy = "backwards"
		_, err := New(cfg).Run(context.Background())
		require.ErrorIs(t, err, ErrUnknownStrategy)
	})

	t.Run("invalid game", func(t *testing.T) {
		cfg := testConfig(t, 3, 0, 1)
		cfg.Game = game.Config{}
		_, err := New(cfg).Run(context.Background())
		require.ErrorIs(t, err, game.ErrInvalidConfig)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := New(testConfig(t, 3, 0, 10)).Run(ctx)
		require.ErrorIs(t, err, context.Canceled)
	})
}

func TestPrintSummary(t *testing.T) {
	cfg := testConfig(t, 3, 250, 50)
	stats, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	var buf bytes.Buffer
	PrintSummary(&buf, stats, New(cfg).config)
	out := buf.String()

	assert.Contains(t, out, "3 digits, max 250, in-order")
	assert.Contains(t, out, "Games played: 50")
	assert.Contains(t, out, "Invariant violations: 0")
	assert.Contains(t, out, "hundreds")
}

func TestNewReport(t *testing.T) {
	cfg := testConfig(t, 3, 250, 40)
	stats, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	r := NewReport(stats, cfg)
	assert.Equal(t, 3, r.Digits)
	assert.Equal(t, 250, r.MaxPrice)
	assert.Equal(t, InOrder, r.Strategy)
	assert.Equal(t, 40, r.Games)
	require.NotNil(t, r.Totals)
	assert.LessOrEqual(t, r.Totals.Max, 250)
	assert.Equal(t, 40, r.Outcomes["delight"]+r.Outcomes["tease"])

	require.Len(t, r.DigitCounts, 3)
	assert.Equal(t, "hundreds", r.DigitCounts[0].Label)
	assert.Equal(t, 0, r.DigitCounts[2].Position)
}

func TestNewReportWithoutCompletedGames(t *testing.T) {
	cfg := testConfig(t, 3, 100, 5)
	stats, err := New(cfg).Run(context.Background())
	require.NoError(t, err)

	r := NewReport(stats, cfg)
	assert.Nil(t, r.Totals)
	assert.Empty(t, r.Outcomes)
	assert.Equal(t, 5, r.Exhausted)
}
