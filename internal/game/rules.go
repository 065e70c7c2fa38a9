package game

import (
	"fmt"
	"maps"
	"slices"
)

// Rule narrows the range of one position when specific higher positions are
// locked at exact values. Rules are table data and know nothing about the
// maximum price.
type Rule struct {
	Name       string
	DigitCount int
	Position   int
	When       map[int]int // position -> required locked value
	Allow      DigitSet
}

// Applies reports whether the rule fires for position under the given locks.
func (r Rule) Applies(digitCount, position int, locked map[int]int) bool {
	if r.DigitCount != digitCount || r.Position != position {
		return false
	}
	for p, want := range r.When {
		got, ok := locked[p]
		if !ok || got != want {
			return false
		}
	}
	return true
}

func (r Rule) String() string {
	keys := slices.Sorted(maps.Keys(r.When))
	slices.Reverse(keys)
	cond := ""
	for i, p := range keys {
		if i > 0 {
			cond += ","
		}
		cond += fmt.Sprintf("%d=%d", p, r.When[p])
	}
	return fmt.Sprintf("%s: digits=%d pos=%d when[%s] -> %s", r.Name, r.DigitCount, r.Position, cond, r.Allow)
}

// RuleSet is an ordered correlation table.
type RuleSet []Rule

// DefaultRules is the promotional table shipped with the game.
var DefaultRules = RuleSet{
	{
		Name:       "double-zero-lifts-tens",
		DigitCount: 4,
		Position:   1,
		When:       map[int]int{3: 0, 2: 0},
		Allow:      DigitsOf(6, 7, 8, 9),
	},
	{
		Name:       "five-two-zero-nine",
		DigitCount: 4,
		Position:   0,
		When:       map[int]int{3: 5, 2: 2, 1: 0},
		Allow:      DigitsOf(9),
	},
}

// Override intersects the Allow sets of every applying rule. With no applying
// rule it returns AllDigits.
func (rs RuleSet) Override(digitCount, position int, locked map[int]int) DigitSet {
	allowed := AllDigits
	for _, r := range rs {
		if r.Applies(digitCount, position, locked) {
			allowed = allowed.Intersect(r.Allow)
		}
	}
	return allowed
}

// Validate checks that every rule is internally consistent.
func (rs RuleSet) Validate() error {
	for i, r := range rs {
		name := r.Name
		if name == "" {
			name = fmt.Sprintf("#%d", i)
		}
		if r.DigitCount < MinDigits || r.DigitCount > MaxDigits {
			return fmt.Errorf("rule %s: digit count %d out of range", name, r.DigitCount)
		}
		if r.Position < 0 || r.Position >= r.DigitCount {
			return fmt.Errorf("rule %s: position %d out of range", name, r.Position)
		}
		if len(r.When) == 0 {
			return fmt.Errorf("rule %s: needs at least one trigger", name)
		}
		for p, v := range r.When {
			if p == r.Position {
				return fmt.Errorf("rule %s: triggers on its own position", name)
			}
			if p < 0 || p >= r.DigitCount {
				return fmt.Errorf("rule %s: trigger position %d out of range", name, p)
			}
			if v < 0 || v > 9 {
				return fmt.Errorf("rule %s: trigger value %d is not a digit", name, v)
			}
		}
		if r.Allow.IsEmpty() {
			return fmt.Errorf("rule %s: allows no digit", name)
		}
	}
	return nil
}
