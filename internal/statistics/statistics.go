package statistics

import (
	"fmt"
	"math"
	"sort"

	"github.com/lox/redenvelope/internal/game"
)

// GameResult represents the outcome of a single simulated draw
type GameResult struct {
	Seed      int64 // RNG seed for this game (for replay)
	Total     int
	Digits    []int // most significant first
	Outcome   game.Outcome
	Redraws   int  // flips rejected as infeasible and drawn again
	Exhausted bool // a position had no legal digit
	Violation bool // the finished total broke the maximum price
}

// Completed reports whether the game produced a result.
func (r GameResult) Completed() bool {
	return !r.Exhausted && !r.Violation
}

// Statistics aggregates simulated draws
type Statistics struct {
	Games      int
	Completed  int
	Exhausted  int
	Violations int
	Redraws    int

	SumTotal  float64
	SumTotal2 float64   // Sum of squares for variance calculation
	Values    []float64 // Completed totals for median/percentile calculation
	MinTotal  int
	MaxTotal  int

	Outcomes [3]int // indexed by game.Outcome

	// DigitCounts[p][d] counts completed games whose position p (0 = units)
	// ended on digit d.
	DigitCounts [][10]int
}

// Add incorporates a new game result into the statistics
func (s *Statistics) Add(result GameResult) {
	s.Games++
	s.Redraws += result.Redraws

	switch {
	case result.Violation:
		s.Violations++
		return
	case result.Exhausted:
		s.Exhausted++
		return
	}

	total := float64(result.Total)
	if s.Completed == 0 || result.Total < s.MinTotal {
		s.MinTotal = result.Total
	}
	if s.Completed == 0 || result.Total > s.MaxTotal {
		s.MaxTotal = result.Total
	}
	s.Completed++
	s.SumTotal += total
	s.SumTotal2 += total * total
	s.Values = append(s.Values, total)

	if o := int(result.Outcome); o >= 0 && o < len(s.Outcomes) {
		s.Outcomes[o]++
	}

	n := len(result.Digits)
	for len(s.DigitCounts) < n {
		s.DigitCounts = append(s.DigitCounts, [10]int{})
	}
	for i, d := range result.Digits {
		if d >= 0 && d <= 9 {
			s.DigitCounts[n-1-i][d]++
		}
	}
}

// Merge folds other into s.
func (s *Statistics) Merge(other *Statistics) {
	if other == nil || other.Games == 0 {
		return
	}
	if other.Completed > 0 {
		if s.Completed == 0 || other.MinTotal < s.MinTotal {
			s.MinTotal = other.MinTotal
		}
		if s.Completed == 0 || other.MaxTotal > s.MaxTotal {
			s.MaxTotal = other.MaxTotal
		}
	}

	s.Games += other.Games
	s.Completed += other.Completed
	s.Exhausted += other.Exhausted
	s.Violations += other.Violations
	s.Redraws += other.Redraws
	s.SumTotal += other.SumTotal
	s.SumTotal2 += other.SumTotal2
	s.Values = append(s.Values, other.Values...)

	for i, c := range other.Outcomes {
		s.Outcomes[i] += c
	}
	for len(s.DigitCounts) < len(other.DigitCounts) {
		s.DigitCounts = append(s.DigitCounts, [10]int{})
	}
	for p, counts := range other.DigitCounts {
		for d, c := range counts {
			s.DigitCounts[p][d] += c
		}
	}
}

// Mean returns the arithmetic mean of completed totals
func (s *Statistics) Mean() float64 {
	if s.Completed == 0 {
		return 0
	}
	return s.SumTotal / float64(s.Completed)
}

// Variance returns the sample variance of completed totals
func (s *Statistics) Variance() float64 {
	if s.Completed < 2 {
		return 0
	}
	mean := s.Mean()
	return (s.SumTotal2 - float64(s.Completed)*mean*mean) / float64(s.Completed-1)
}

// StdDev returns the sample standard deviation of completed totals
func (s *Statistics) StdDev() float64 {
	return math.Sqrt(s.Variance())
}

// StdError returns the standard error of the mean
func (s *Statistics) StdError() float64 {
	if s.Completed == 0 {
		return 0
	}
	return s.StdDev() / math.Sqrt(float64(s.Completed))
}

// ConfidenceInterval95 returns the 95% confidence interval for the mean
func (s *Statistics) ConfidenceInterval95() (float64, float64) {
	mean := s.Mean()
	margin := 1.96 * s.StdError()
	return mean - margin, mean + margin
}

// Median returns the median completed total
func (s *Statistics) Median() float64 {
	return s.Percentile(0.5)
}

// Percentile returns the value at the given percentile (0.0 to 1.0)
func (s *Statistics) Percentile(p float64) float64 {
	if len(s.Values) == 0 {
		return 0
	}
	sorted := make([]float64, len(s.Values))
	copy(sorted, s.Values)
	sort.Float64s(sorted)

	index := p * float64(len(sorted)-1)
	lower := int(index)
	upper := lower + 1

	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	weight := index - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

// OutcomeShare returns the fraction of completed games with outcome o.
func (s *Statistics) OutcomeShare(o game.Outcome) float64 {
	if s.Completed == 0 || int(o) < 0 || int(o) >= len(s.Outcomes) {
		return 0
	}
	return float64(s.Outcomes[o]) / float64(s.Completed)
}

// DigitShare returns how often position ended on digit.
func (s *Statistics) DigitShare(position, digit int) float64 {
	if s.Completed == 0 || position < 0 || position >= len(s.DigitCounts) || digit < 0 || digit > 9 {
		return 0
	}
	return float64(s.DigitCounts[position][digit]) / float64(s.Completed)
}

// Validate performs consistency checks on the aggregated data
func (s *Statistics) Validate() error {
	if s.Games <= 0 {
		return fmt.Errorf("invalid games count: %d", s.Games)
	}

	if sum := s.Completed + s.Exhausted + s.Violations; sum != s.Games {
		return fmt.Errorf("completed (%d) + exhausted (%d) + violations (%d) does not match games (%d)",
			s.Completed, s.Exhausted, s.Violations, s.Games)
	}

	if len(s.Values) != s.Completed {
		return fmt.Errorf("values array length (%d) does not match completed count (%d)",
			len(s.Values), s.Completed)
	}

	outcomes := 0
	for _, c := range s.Outcomes {
		outcomes += c
	}
	if outcomes != s.Completed {
		return fmt.Errorf("outcome total (%d) does not match completed count (%d)", outcomes, s.Completed)
	}

	for p, counts := range s.DigitCounts {
		n := 0
		for _, c := range counts {
			n += c
		}
		if n != s.Completed {
			return fmt.Errorf("position %d digit total (%d) does not match completed count (%d)", p, n, s.Completed)
		}
	}

	return nil
}
