package game

// Engine computes legal digits. It is pure: the answer depends only on the
// config, the rule table, the position and the locked digits passed in.
type Engine struct {
	cfg   Config
	rules RuleSet
}

// NewEngine returns an engine for cfg. A nil rule set disables correlation
// rules.
func NewEngine(cfg Config, rules RuleSet) *Engine {
	return &Engine{cfg: cfg, rules: rules}
}

// Config returns the engine's configuration.
func (e *Engine) Config() Config { return e.cfg }

// Rules returns the engine's correlation table.
func (e *Engine) Rules() RuleSet { return e.rules }

// BaseRange is the structural range of a position: no leading zero, and the
// promotional ceiling on the leading digit of four-digit prices.
func (e *Engine) BaseRange(position int) DigitSet {
	if position < 0 || position >= e.cfg.DigitCount {
		return EmptySet
	}
	if position == e.cfg.Leading() {
		base := DigitRange(1, 9)
		if e.cfg.DigitCount == promoDigitCount {
			base = base.Intersect(DigitRange(0, promoLeadingLimit))
		}
		return base
	}
	return AllDigits
}

// minDigit is the smallest digit an unlocked position is assumed to take when
// bounding the total from below. The units place counts as at least 1.
func (e *Engine) minDigit(position int) int {
	if position == e.cfg.Leading() || position == 0 {
		return 1
	}
	return 0
}

// MinimumTotal is the smallest total reachable if candidate is placed at
// position: locked positions count their value, every other position its
// structural minimum.
func (e *Engine) MinimumTotal(position, candidate int, locked map[int]int) int {
	total := 0
	for p := e.cfg.DigitCount - 1; p >= 0; p-- {
		switch v, ok := locked[p]; {
		case p == position:
			total += candidate * pow10(p)
		case ok:
			total += v * pow10(p)
		default:
			total += e.minDigit(p) * pow10(p)
		}
	}
	return total
}

// Feasible reports whether candidate at position can still end at or below
// the maximum price.
func (e *Engine) Feasible(position, candidate int, locked map[int]int) bool {
	if !e.cfg.Limited() {
		return true
	}
	return e.MinimumTotal(position, candidate, locked) <= e.cfg.MaxPrice
}

// AllowedRange is base ∩ rule override ∩ feasible. An empty set means the
// position is exhausted.
func (e *Engine) AllowedRange(position int, locked map[int]int) DigitSet {
	allowed := e.BaseRange(position).Intersect(e.rules.Override(e.cfg.DigitCount, position, locked))
	for _, d := range allowed.Digits() {
		if !e.Feasible(position, d, locked) {
			allowed = allowed.Without(d)
		}
	}
	return allowed
}
