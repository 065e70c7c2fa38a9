package game

import (
	"fmt"
	"strconv"
	"strings"
)

// Outcome classifies a finished draw relative to the maximum price.
type Outcome int

const (
	// Neutral means no maximum price was set.
	Neutral Outcome = iota
	// Delight means the total landed above half the maximum price.
	Delight
	// Tease means the total landed at or below half the maximum price.
	Tease
)

func (o Outcome) String() string {
	switch o {
	case Neutral:
		return "neutral"
	case Delight:
		return "delight"
	case Tease:
		return "tease"
	default:
		return "unknown"
	}
}

func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

func (o *Outcome) UnmarshalText(text []byte) error {
	for _, v := range []Outcome{Neutral, Delight, Tease} {
		if v.String() == string(text) {
			*o = v
			return nil
		}
	}
	return fmt.Errorf("unknown outcome %q", text)
}

// Mood is the line shown next to the result.
func (o Outcome) Mood() string {
	switch o {
	case Delight:
		return "Ouch, my wallet!"
	case Tease:
		return "Ha! Better luck next time~"
	default:
		return ""
	}
}

// Evaluate classifies total against maxPrice (0 = unlimited). Exactly half
// is a Tease.
func Evaluate(total, maxPrice int) Outcome {
	if maxPrice <= 0 {
		return Neutral
	}
	if 2*total > maxPrice {
		return Delight
	}
	return Tease
}

// Result is the outcome of a fully locked session.
type Result struct {
	Total    int     `json:"total"`
	Digits   []int   `json:"digits"` // most significant first
	MaxPrice int     `json:"maxPrice,omitempty"`
	Outcome  Outcome `json:"outcome"`
}

// DigitString renders the digits, keeping any leading zeros of lower places.
func (r Result) DigitString() string {
	var b strings.Builder
	for _, d := range r.Digits {
		b.WriteString(strconv.Itoa(d))
	}
	return b.String()
}

// ClaimMessage is the text a player shares after claiming the envelope.
func (r Result) ClaimMessage() string {
	return fmt.Sprintf("I drew red envelope %s, total %d!", r.DigitString(), r.Total)
}
