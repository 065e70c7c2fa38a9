package statistics

import (
	"math"
	"testing"

	"github.com/lox/redenvelope/internal/game"
)

func TestStatistics_Empty(t *testing.T) {
	stats := &Statistics{}

	if stats.Mean() != 0 {
		t.Errorf("Expected mean of 0 for empty stats, got %f", stats.Mean())
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for empty stats, got %f", stats.Variance())
	}
	if stats.StdError() != 0 {
		t.Errorf("Expected stderr of 0 for empty stats, got %f", stats.StdError())
	}
	if stats.Median() != 0 {
		t.Errorf("Expected median of 0 for empty stats, got %f", stats.Median())
	}
	if stats.OutcomeShare(game.Delight) != 0 {
		t.Errorf("Expected no outcome share for empty stats, got %f", stats.OutcomeShare(game.Delight))
	}
	if err := stats.Validate(); err == nil {
		t.Error("Expected empty stats to fail validation")
	}
}

func TestStatistics_SingleGame(t *testing.T) {
	stats := &Statistics{}
	stats.Add(GameResult{
		Seed:    12345,
		Total:   249,
		Digits:  []int{2, 4, 9},
		Outcome: game.Delight,
	})

	if stats.Games != 1 || stats.Completed != 1 {
		t.Errorf("Expected 1 completed game, got games=%d completed=%d", stats.Games, stats.Completed)
	}
	if stats.Mean() != 249 {
		t.Errorf("Expected mean of 249, got %f", stats.Mean())
	}
	if stats.MinTotal != 249 || stats.MaxTotal != 249 {
		t.Errorf("Expected min=max=249, got %d/%d", stats.MinTotal, stats.MaxTotal)
	}
	if stats.Variance() != 0 {
		t.Errorf("Expected variance of 0 for single value, got %f", stats.Variance())
	}
	if stats.DigitCounts[2][2] != 1 || stats.DigitCounts[1][4] != 1 || stats.DigitCounts[0][9] != 1 {
		t.Errorf("Digit counts not indexed by position: %v", stats.DigitCounts)
	}
	if stats.OutcomeShare(game.Delight) != 1 {
		t.Errorf("Expected delight share of 1, got %f", stats.OutcomeShare(game.Delight))
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}
}

func TestStatistics_MultipleGames(t *testing.T) {
	stats := &Statistics{}

	results := []GameResult{
		{Total: 10, Digits: []int{1, 0}, Outcome: game.Neutral},
		{Total: 20, Digits: []int{2, 0}, Outcome: game.Neutral},
		{Total: 30, Digits: []int{3, 0}, Outcome: game.Neutral},
		{Total: 40, Digits: []int{4, 0}, Outcome: game.Neutral, Redraws: 2},
		{Exhausted: true},
	}
	for _, r := range results {
		stats.Add(r)
	}

	if stats.Games != 5 {
		t.Errorf("Expected 5 games, got %d", stats.Games)
	}
	if stats.Completed != 4 || stats.Exhausted != 1 {
		t.Errorf("Expected 4 completed and 1 exhausted, got %d/%d", stats.Completed, stats.Exhausted)
	}
	if stats.Redraws != 2 {
		t.Errorf("Expected 2 redraws, got %d", stats.Redraws)
	}
	if stats.Mean() != 25 {
		t.Errorf("Expected mean of 25, got %f", stats.Mean())
	}
	if stats.Median() != 25 {
		t.Errorf("Expected median of 25, got %f", stats.Median())
	}

	// Sample variance of 10,20,30,40 is 166.67
	if math.Abs(stats.Variance()-500.0/3) > 1e-9 {
		t.Errorf("Expected variance of 166.67, got %f", stats.Variance())
	}
	if stats.MinTotal != 10 || stats.MaxTotal != 40 {
		t.Errorf("Expected range [10, 40], got [%d, %d]", stats.MinTotal, stats.MaxTotal)
	}
	if share := stats.DigitShare(0, 0); share != 1 {
		t.Errorf("Expected units always 0, got share %f", share)
	}
	if err := stats.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}
}

func TestStatistics_Merge(t *testing.T) {
	a := &Statistics{}
	b := &Statistics{}
	all := &Statistics{}

	results := []GameResult{
		{Total: 105, Digits: []int{1, 0, 5}, Outcome: game.Tease},
		{Total: 249, Digits: []int{2, 4, 9}, Outcome: game.Delight},
		{Violation: true},
		{Total: 131, Digits: []int{1, 3, 1}, Outcome: game.Delight, Redraws: 1},
	}
	for i, r := range results {
		if i%2 == 0 {
			a.Add(r)
		} else {
			b.Add(r)
		}
		all.Add(r)
	}

	a.Merge(b)
	a.Merge(nil)
	a.Merge(&Statistics{})

	if a.Games != all.Games || a.Completed != all.Completed || a.Violations != all.Violations {
		t.Errorf("Merged counts differ: %+v vs %+v", a, all)
	}
	if a.MinTotal != 105 || a.MaxTotal != 249 {
		t.Errorf("Expected range [105, 249], got [%d, %d]", a.MinTotal, a.MaxTotal)
	}
	if a.Mean() != all.Mean() || a.Median() != all.Median() {
		t.Errorf("Merged mean/median differ: %f/%f vs %f/%f", a.Mean(), a.Median(), all.Mean(), all.Median())
	}
	if a.Outcomes != all.Outcomes {
		t.Errorf("Merged outcomes differ: %v vs %v", a.Outcomes, all.Outcomes)
	}
	if err := a.Validate(); err != nil {
		t.Errorf("Unexpected validation error: %v", err)
	}
}

func TestStatistics_ValidateDetectsMismatch(t *testing.T) {
	stats := &Statistics{}
	stats.Add(GameResult{Total: 12, Digits: []int{1, 2}, Outcome: game.Neutral})
	stats.Values = nil

	if err := stats.Validate(); err == nil {
		t.Error("Expected validation to catch missing values")
	}
}
