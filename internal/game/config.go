package game

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	MinDigits = 2
	MaxDigits = 7

	// DefaultSpinInterval is how often a spinning card re-samples its digit.
	DefaultSpinInterval = 100 * time.Millisecond

	// promoDigitCount is the only digit count with a capped leading digit.
	promoDigitCount   = 4
	promoLeadingLimit = 6
)

// Config is the immutable setup of one game.
type Config struct {
	DigitCount int
	MaxPrice   int // 0 means unlimited
}

// NewConfig validates and returns a Config.
func NewConfig(digitCount, maxPrice int) (Config, error) {
	cfg := Config{DigitCount: digitCount, MaxPrice: maxPrice}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the digit count and maximum price.
func (c Config) Validate() error {
	if c.DigitCount < MinDigits || c.DigitCount > MaxDigits {
		return &ConfigError{
			Field:  "digit count",
			Value:  strconv.Itoa(c.DigitCount),
			Reason: "must be between " + strconv.Itoa(MinDigits) + " and " + strconv.Itoa(MaxDigits),
		}
	}
	if c.MaxPrice < 0 {
		return &ConfigError{Field: "max price", Value: strconv.Itoa(c.MaxPrice), Reason: "must be a positive integer"}
	}
	return nil
}

// Limited reports whether a maximum price is set.
func (c Config) Limited() bool {
	return c.MaxPrice > 0
}

// Leading returns the position of the most significant digit.
func (c Config) Leading() int {
	return c.DigitCount - 1
}

// ParseMaxPrice parses the raw maximum-price input. Blank input means
// unlimited and yields 0. Anything that is not a whole number >= 1 is a
// ConfigError.
func ParseMaxPrice(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, &ConfigError{Field: "max price", Value: raw, Reason: "not a number"}
	}
	if f != math.Trunc(f) {
		return 0, &ConfigError{Field: "max price", Value: raw, Reason: "must be a whole number"}
	}
	if f < 1 {
		return 0, &ConfigError{Field: "max price", Value: raw, Reason: "must be at least 1"}
	}
	if f > math.MaxInt32 {
		return 0, &ConfigError{Field: "max price", Value: raw, Reason: "too large"}
	}
	return int(f), nil
}

var positionNames = []string{
	"units",
	"tens",
	"hundreds",
	"thousands",
	"ten-thousands",
	"hundred-thousands",
	"millions",
}

// PositionName returns a display label such as "hundreds" for position 2.
func PositionName(position int) string {
	if position >= 0 && position < len(positionNames) {
		return positionNames[position]
	}
	return "position " + strconv.Itoa(position)
}

func pow10(n int) int {
	p := 1
	for range n {
		p *= 10
	}
	return p
}
