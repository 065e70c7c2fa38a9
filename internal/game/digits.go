package game

import (
	"math/bits"
	"strconv"
	"strings"
)

// DigitSet is a set of decimal digits, bit d set meaning digit d is present.
type DigitSet uint16

const (
	// EmptySet contains no digits.
	EmptySet DigitSet = 0
	// AllDigits contains 0 through 9.
	AllDigits DigitSet = 1<<10 - 1
)

// DigitRange returns the set {lo..hi}. Bounds are clamped to 0..9.
func DigitRange(lo, hi int) DigitSet {
	lo = max(lo, 0)
	hi = min(hi, 9)
	var s DigitSet
	for d := lo; d <= hi; d++ {
		s |= 1 << d
	}
	return s
}

// DigitsOf returns the set containing exactly the given digits. Values outside
// 0..9 are ignored.
func DigitsOf(digits ...int) DigitSet {
	var s DigitSet
	for _, d := range digits {
		if d >= 0 && d <= 9 {
			s |= 1 << d
		}
	}
	return s
}

// Contains reports whether d is in the set.
func (s DigitSet) Contains(d int) bool {
	return d >= 0 && d <= 9 && s&(1<<d) != 0
}

// Intersect returns the digits present in both sets.
func (s DigitSet) Intersect(o DigitSet) DigitSet {
	return s & o
}

// Without returns s with digit d removed.
func (s DigitSet) Without(d int) DigitSet {
	if d < 0 || d > 9 {
		return s
	}
	return s &^ (1 << d)
}

// Len returns the number of digits in the set.
func (s DigitSet) Len() int {
	return bits.OnesCount16(uint16(s & AllDigits))
}

// IsEmpty reports whether the set has no digits.
func (s DigitSet) IsEmpty() bool {
	return s&AllDigits == 0
}

// Min returns the smallest digit, or -1 for an empty set.
func (s DigitSet) Min() int {
	if s.IsEmpty() {
		return -1
	}
	return bits.TrailingZeros16(uint16(s))
}

// Max returns the largest digit, or -1 for an empty set.
func (s DigitSet) Max() int {
	if s.IsEmpty() {
		return -1
	}
	return 15 - bits.LeadingZeros16(uint16(s&AllDigits))
}

// Digits returns the members in ascending order.
func (s DigitSet) Digits() []int {
	out := make([]int, 0, s.Len())
	for d := 0; d <= 9; d++ {
		if s.Contains(d) {
			out = append(out, d)
		}
	}
	return out
}

// String formats the set as {1,2,3}.
func (s DigitSet) String() string {
	var b strings.Builder
	b.WriteByte('{')
	for i, d := range s.Digits() {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Itoa(d))
	}
	b.WriteByte('}')
	return b.String()
}
